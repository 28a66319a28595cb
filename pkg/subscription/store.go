package subscription

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscriptions and proration invoices.
//
// The Apply* and UpdateStatus methods are conditional updates: they report
// false, nil when the row no longer matches the expected state.
type Store interface {
	// Get returns ErrSubscriptionNotFound when the tenant has no subscription.
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// Create inserts sub unless the tenant already has one, reporting whether it did.
	Create(ctx context.Context, sub *Subscription) (bool, error)

	// ListDue returns up to limit non-cancelled subscriptions whose period
	// ended at or before now and that carry a pending downgrade or
	// cancellation. Rows are ordered by (CurrentPeriodEnd, ID) and start
	// strictly after the after cursor.
	ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]*Subscription, error)

	// WithTx runs fn in a transaction. A returned error rolls it back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// ApplyCancellation sets status CANCELLED where the row still has
	// cancel_at_period_end and is not already cancelled.
	ApplyCancellation(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// ApplyDowngrade moves the row to the target tier and next window where
	// next_tier still equals the target and the period ended at or before Now.
	ApplyDowngrade(ctx context.Context, upd DowngradeUpdate) (bool, error)

	// UpdateStatus changes status where the row is still in upd.From.
	UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error)
}

// Tx is the transactional view used by single-tenant commands.
type Tx interface {
	// GetForUpdate loads and locks the tenant's subscription.
	GetForUpdate(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	CreateInvoice(ctx context.Context, inv *ProrationInvoice) error
}

// DueCursor is a keyset position in the due list. The zero value starts
// from the beginning.
type DueCursor struct {
	PeriodEnd time.Time
	ID        uuid.UUID
}

// CursorOf returns the cursor positioned at sub.
func CursorOf(sub *Subscription) DueCursor {
	return DueCursor{PeriodEnd: sub.CurrentPeriodEnd, ID: sub.ID}
}

// Before reports whether the cursor sorts strictly before sub.
func (c DueCursor) Before(sub *Subscription) bool {
	return compareDue(c.PeriodEnd, c.ID, sub.CurrentPeriodEnd, sub.ID) < 0
}

func compareDue(aEnd time.Time, aID uuid.UUID, bEnd time.Time, bID uuid.UUID) int {
	if c := aEnd.Compare(bEnd); c != 0 {
		return c
	}
	return bytes.Compare(aID[:], bID[:])
}

// DowngradeUpdate carries the fields written when a scheduled downgrade applies.
type DowngradeUpdate struct {
	ID          uuid.UUID
	TargetTier  Tier
	Now         time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Verdict     SoftLimitVerdict
}

// StatusUpdate carries a conditional status change.
type StatusUpdate struct {
	ID         uuid.UUID
	From       Status
	To         Status
	GraceEndAt *time.Time
	Now        time.Time
}
