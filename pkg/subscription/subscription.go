package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription is the commercial state of one tenant.
type Subscription struct {
	ID                 uuid.UUID          `json:"id"`
	TenantID           uuid.UUID          `json:"tenant_id"`
	Status             Status             `json:"status"`
	CurrentTier        Tier               `json:"current_tier"`
	NextTier           *Tier              `json:"next_tier,omitempty"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	TrialEndAt         *time.Time         `json:"trial_end_at,omitempty"`
	GraceEndAt         *time.Time         `json:"grace_end_at,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	SoftLimited        bool               `json:"soft_limited"`
	SoftLimitReason    string             `json:"soft_limit_reason,omitempty"`
	SoftLimitSnapshot  *SoftLimitSnapshot `json:"soft_limit_snapshot,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsCancelled reports whether the subscription reached the terminal status.
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// IsRestricted reports whether restricted mode applies.
func (s *Subscription) IsRestricted() bool {
	return s.Status == StatusRestricted
}

// HasPendingChange reports a scheduled downgrade or cancellation.
func (s *Subscription) HasPendingChange() bool {
	return s.NextTier != nil || s.CancelAtPeriodEnd
}

// IsDue reports whether a pending change should be applied at now.
func (s *Subscription) IsDue(now time.Time) bool {
	return s.HasPendingChange() && !s.IsCancelled() && !s.CurrentPeriodEnd.After(now)
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.NextTier = clonePtr(s.NextTier)
	c.TrialEndAt = clonePtr(s.TrialEndAt)
	c.GraceEndAt = clonePtr(s.GraceEndAt)
	c.CancelledAt = clonePtr(s.CancelledAt)
	if s.SoftLimitSnapshot != nil {
		snap := *s.SoftLimitSnapshot
		snap.Exceeded = append([]ExceededMetric(nil), s.SoftLimitSnapshot.Exceeded...)
		c.SoftLimitSnapshot = &snap
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ProrationInvoice is created for immediate upgrades. Immutable once stored.
type ProrationInvoice struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	FromTier       Tier            `json:"from_tier"`
	ToTier         Tier            `json:"to_tier"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	EffectiveAt    time.Time       `json:"effective_at"`
	RemainingRatio decimal.Decimal `json:"remaining_ratio"`
	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
	Items          []InvoiceItem   `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

// InvoiceItem is a signed line of a proration invoice.
type InvoiceItem struct {
	Kind        InvoiceItemKind `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}
