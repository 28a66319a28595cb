package subscription

import (
	"fmt"
	"strings"
)

// Tier is a named entitlement level.
type Tier string

const (
	TierC1 Tier = "C1"
	TierC2 Tier = "C2"
	TierC3 Tier = "C3"
)

// Tiers lists all tiers in ascending rank.
var Tiers = []Tier{TierC1, TierC2, TierC3}

// Rank orders tiers. Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierC1:
		return 1
	case TierC2:
		return 2
	case TierC3:
		return 3
	}
	return 0
}

// Valid reports whether t is one of C1, C2 or C3.
func (t Tier) Valid() bool { return t.Rank() > 0 }

func (t Tier) String() string { return string(t) }

// ParseTier accepts tier names case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// Status is the state of a subscription.
type Status string

const (
	StatusTrialActive Status = "TRIAL_ACTIVE"
	StatusActivePaid  Status = "ACTIVE_PAID"
	StatusPastDue     Status = "PAST_DUE"
	StatusGrace       Status = "GRACE"
	StatusRestricted  Status = "RESTRICTED"
	StatusCancelled   Status = "CANCELLED"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialActive, StatusActivePaid, StatusPastDue, StatusGrace, StatusRestricted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts status names case-insensitively and returns
// ErrInvalidStatus for anything else.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Direction of a plan change relative to the current tier.
type Direction string

const (
	DirectionNone      Direction = "NONE"
	DirectionUpgrade   Direction = "UPGRADE"
	DirectionDowngrade Direction = "DOWNGRADE"
)

// InvoiceItemKind identifies a proration line item.
type InvoiceItemKind string

const (
	ItemCreditUnusedTime InvoiceItemKind = "CREDIT_UNUSED_TIME"
	ItemChargeNewPlan    InvoiceItemKind = "CHARGE_NEW_PLAN"
)

// Audit actions emitted by the engine.
const (
	ActionUpgrade            = "subscription.plan.upgrade"
	ActionDowngradeScheduled = "subscription.plan.downgrade_scheduled"
	ActionDowngradeApplied   = "subscription.plan.downgrade_applied"
	ActionCancelScheduled    = "subscription.cancel_scheduled"
	ActionCancelApplied      = "subscription.cancel_applied"
	ActionReactivated        = "subscription.reactivated"
	ActionProvisioned        = "subscription.provisioned"
	ActionStatusChanged      = "subscription.status.changed"
)
