package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps subscriptions in memory. A single mutex serialises
// transactions, so conditional updates are atomic.
type MemoryStore struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]*Subscription // by tenant
	invoices []*ProrationInvoice
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

func (s *MemoryStore) Get(_ context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tenantID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.TenantID]; ok {
		return false, nil
	}
	s.subs[sub.TenantID] = sub.Clone()
	return true, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, after DueCursor, limit int) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Subscription
	for _, sub := range s.subs {
		if sub.IsDue(now) && after.Before(sub) {
			due = append(due, sub.Clone())
		}
	}
	slices.SortFunc(due, func(a, b *Subscription) int {
		return compareDue(a.CurrentPeriodEnd, a.ID, b.CurrentPeriodEnd, b.ID)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// WithTx holds the store lock for the whole of fn. Writes become visible
// only when fn returns nil.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, pending: make(map[uuid.UUID]*Subscription)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, sub := range tx.pending {
		s.subs[id] = sub
	}
	s.invoices = append(s.invoices, tx.invoices...)
	return nil
}

func (s *MemoryStore) ApplyCancellation(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.byID(id)
	if sub == nil || !sub.CancelAtPeriodEnd || sub.Status == StatusCancelled {
		return false, nil
	}
	sub.Status = StatusCancelled
	sub.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ApplyDowngrade(_ context.Context, upd DowngradeUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.byID(upd.ID)
	if sub == nil || sub.NextTier == nil || *sub.NextTier != upd.TargetTier || sub.CurrentPeriodEnd.After(upd.Now) {
		return false, nil
	}
	sub.CurrentTier = upd.TargetTier
	sub.NextTier = nil
	sub.CurrentPeriodStart = upd.PeriodStart
	sub.CurrentPeriodEnd = upd.PeriodEnd
	sub.SoftLimited = upd.Verdict.SoftLimited
	sub.SoftLimitReason = upd.Verdict.Reason
	sub.SoftLimitSnapshot = upd.Verdict.Snapshot
	sub.UpdatedAt = upd.Now
	return true, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, upd StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.byID(upd.ID)
	if sub == nil || sub.Status != upd.From {
		return false, nil
	}
	sub.Status = upd.To
	sub.GraceEndAt = clonePtr(upd.GraceEndAt)
	sub.UpdatedAt = upd.Now
	return true, nil
}

// Invoices returns stored invoices for a tenant.
func (s *MemoryStore) Invoices(tenantID uuid.UUID) []*ProrationInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ProrationInvoice
	for _, inv := range s.invoices {
		if inv.TenantID == tenantID {
			out = append(out, inv)
		}
	}
	return out
}

func (s *MemoryStore) byID(id uuid.UUID) *Subscription {
	for _, sub := range s.subs {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

type memoryTx struct {
	store    *MemoryStore
	pending  map[uuid.UUID]*Subscription
	invoices []*ProrationInvoice
}

func (tx *memoryTx) GetForUpdate(_ context.Context, tenantID uuid.UUID) (*Subscription, error) {
	if sub, ok := tx.pending[tenantID]; ok {
		return sub.Clone(), nil
	}
	sub, ok := tx.store.subs[tenantID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (tx *memoryTx) Update(_ context.Context, sub *Subscription) error {
	if _, ok := tx.store.subs[sub.TenantID]; !ok {
		return ErrSubscriptionNotFound
	}
	tx.pending[sub.TenantID] = sub.Clone()
	return nil
}

func (tx *memoryTx) CreateInvoice(_ context.Context, inv *ProrationInvoice) error {
	c := *inv
	c.Items = slices.Clone(inv.Items)
	tx.invoices = append(tx.invoices, &c)
	return nil
}
