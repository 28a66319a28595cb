package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/proration"
	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

// Estimate previews a plan change. Computing it has no side effects.
type Estimate struct {
	TenantID       uuid.UUID       `json:"tenant_id"`
	Direction      Direction       `json:"direction"`
	Immediate      bool            `json:"immediate"`
	FromTier       Tier            `json:"from_tier"`
	ToTier         Tier            `json:"to_tier"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	EffectiveAt    time.Time       `json:"effective_at"`
	RemainingRatio decimal.Decimal `json:"remaining_ratio"`
	Currency       string          `json:"currency"`
	Credit         decimal.Decimal `json:"credit"`
	Charge         decimal.Decimal `json:"charge"`
	Total          decimal.Decimal `json:"total"`
	Items          []InvoiceItem   `json:"items"`
}

// PlanChangeResult is returned by Upgrade and Downgrade.
type PlanChangeResult struct {
	Estimate     Estimate          `json:"estimate"`
	DryRun       bool              `json:"dry_run"`
	Subscription *Subscription     `json:"subscription"`
	Invoice      *ProrationInvoice `json:"invoice,omitempty"`
}

// ScheduleResult is returned by Cancel and Reactivate.
type ScheduleResult struct {
	EffectiveAt  time.Time     `json:"effective_at"`
	DryRun       bool          `json:"dry_run"`
	Subscription *Subscription `json:"subscription"`
}

// Engine runs subscription lifecycle commands.
type Engine struct {
	store     Store
	catalog   CatalogStore
	usage     usage.Provider
	audit     AuditLogger
	log       *slog.Logger
	observer  Observer
	loc       *time.Location
	now       func() time.Time
	trialDays int
	graceDays int
	batchSize int
	listeners []StatusListener
}

// NewEngine creates an Engine. Panics if a required dependency is nil.
func NewEngine(store Store, catalog CatalogStore, usageProvider usage.Provider, opts ...EngineOption) *Engine {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: CatalogStore is required")
	}
	if usageProvider == nil {
		panic("subscription: usage.Provider is required")
	}

	e := &Engine{
		store:     store,
		catalog:   catalog,
		usage:     usageProvider,
		audit:     noopAudit{},
		log:       slog.Default(),
		observer:  noopObserver{},
		loc:       time.UTC,
		now:       time.Now,
		trialDays: 30,
		graceDays: 7,
		batchSize: 500,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns the tenant's subscription.
func (e *Engine) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return e.store.Get(ctx, tenantID)
}

// Estimate previews moving the tenant to target at now.
func (e *Engine) Estimate(ctx context.Context, tenantID uuid.UUID, target Tier, now time.Time) (Estimate, error) {
	if !target.Valid() {
		return Estimate{}, fmt.Errorf("%w: %q", ErrInvalidTier, target)
	}
	sub, err := e.store.Get(ctx, tenantID)
	if err != nil {
		return Estimate{}, err
	}
	return e.estimate(ctx, sub, target, now)
}

// Upgrade moves the tenant to a higher tier immediately and issues a
// proration invoice in the same transaction.
func (e *Engine) Upgrade(ctx context.Context, tenantID uuid.UUID, target Tier, actor string, dryRun bool) (*PlanChangeResult, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, target)
	}
	now := e.now().UTC()

	var res PlanChangeResult
	sub, err := e.mutate(ctx, tenantID, now, dryRun, func(tx Tx, sub *Subscription) error {
		est, err := e.estimate(ctx, sub, target, now)
		if err != nil {
			return err
		}
		if est.Direction != DirectionUpgrade {
			return fmt.Errorf("%w: %s to %s is %s", ErrWrongDirection, sub.CurrentTier, target, est.Direction)
		}
		res.Estimate = est
		if dryRun {
			return nil
		}

		res.Invoice = newInvoice(sub, est, now)
		if err := tx.CreateInvoice(ctx, res.Invoice); err != nil {
			return err
		}

		sub.CurrentTier = target
		sub.NextTier = nil
		sub.SoftLimited = false
		sub.SoftLimitReason = ""
		sub.SoftLimitSnapshot = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Subscription = sub
	res.DryRun = dryRun

	if !dryRun {
		e.record(ctx, ActionUpgrade, tenantID, actor,
			audit.WithMetadata("invoiceId", res.Invoice.ID.String()),
			audit.WithMetadata("fromTier", res.Estimate.FromTier),
			audit.WithMetadata("toTier", target),
			audit.WithMetadata("total", res.Invoice.Total.StringFixed(2)),
		)
	}
	return &res, nil
}

// Downgrade schedules a move to a lower tier at the end of the current period.
// It clears a pending cancellation.
func (e *Engine) Downgrade(ctx context.Context, tenantID uuid.UUID, target Tier, actor string, dryRun bool) (*PlanChangeResult, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, target)
	}
	now := e.now().UTC()

	var res PlanChangeResult
	sub, err := e.mutate(ctx, tenantID, now, dryRun, func(_ Tx, sub *Subscription) error {
		est, err := e.estimate(ctx, sub, target, now)
		if err != nil {
			return err
		}
		if est.Direction != DirectionDowngrade {
			return fmt.Errorf("%w: %s to %s is %s", ErrWrongDirection, sub.CurrentTier, target, est.Direction)
		}
		res.Estimate = est

		next := target
		sub.NextTier = &next
		sub.CancelAtPeriodEnd = false
		sub.CancelledAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Subscription = sub
	res.DryRun = dryRun

	if !dryRun {
		e.record(ctx, ActionDowngradeScheduled, tenantID, actor,
			audit.WithMetadata("fromTier", res.Estimate.FromTier),
			audit.WithMetadata("toTier", target),
			audit.WithMetadata("effectiveAt", res.Estimate.EffectiveAt),
		)
	}
	return &res, nil
}

// Cancel schedules cancellation at the end of the current period.
// There is no immediate cancellation and no refund.
func (e *Engine) Cancel(ctx context.Context, tenantID uuid.UUID, actor string, dryRun bool) (*ScheduleResult, error) {
	now := e.now().UTC()

	sub, err := e.mutate(ctx, tenantID, now, dryRun, func(_ Tx, sub *Subscription) error {
		end := sub.CurrentPeriodEnd
		sub.CancelAtPeriodEnd = true
		sub.CancelledAt = &end
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ScheduleResult{EffectiveAt: sub.CurrentPeriodEnd, DryRun: dryRun, Subscription: sub}
	if !dryRun {
		e.record(ctx, ActionCancelScheduled, tenantID, actor,
			audit.WithMetadata("effectiveAt", res.EffectiveAt),
		)
	}
	return res, nil
}

// Reactivate withdraws a scheduled cancellation.
func (e *Engine) Reactivate(ctx context.Context, tenantID uuid.UUID, actor string, dryRun bool) (*ScheduleResult, error) {
	now := e.now().UTC()

	sub, err := e.mutate(ctx, tenantID, now, dryRun, func(_ Tx, sub *Subscription) error {
		sub.CancelAtPeriodEnd = false
		sub.CancelledAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ScheduleResult{EffectiveAt: now, DryRun: dryRun, Subscription: sub}
	if !dryRun {
		e.record(ctx, ActionReactivated, tenantID, actor)
	}
	return res, nil
}

// Provision creates a trial subscription for a new tenant. When the tenant
// already has a subscription it is returned unchanged.
func (e *Engine) Provision(ctx context.Context, tenantID uuid.UUID, tier Tier, actor string) (*Subscription, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if _, err := e.catalog.Get(ctx, tier); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	end := e.addDays(now, e.trialDays)
	sub := &Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Status:             StatusTrialActive,
		CurrentTier:        tier,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   end,
		TrialEndAt:         &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := e.store.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !created {
		return e.store.Get(ctx, tenantID)
	}

	e.record(ctx, ActionProvisioned, tenantID, actor,
		audit.WithMetadata("tier", tier),
		audit.WithMetadata("trialEndAt", end),
	)
	e.notify(ctx, tenantID, sub.Status)
	return sub, nil
}

// TransitionStatus applies a billing-provider status signal. Moving to the
// current status is a no-op.
func (e *Engine) TransitionStatus(ctx context.Context, tenantID uuid.UUID, to Status, actor, reason string) (*Subscription, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	sub, err := e.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == to {
		return sub, nil
	}
	if !CanTransition(sub.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, sub.Status, to)
	}

	now := e.now().UTC()
	var grace *time.Time
	switch to {
	case StatusGrace:
		g := e.addDays(now, e.graceDays)
		grace = &g
	case StatusRestricted:
		grace = sub.GraceEndAt
	}

	ok, err := e.store.UpdateStatus(ctx, StatusUpdate{ID: sub.ID, From: sub.Status, To: to, GraceEndAt: grace, Now: now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStatusChanged
	}

	from := sub.Status
	sub.Status = to
	sub.GraceEndAt = grace
	sub.UpdatedAt = now

	e.record(ctx, ActionStatusChanged, tenantID, actor,
		audit.WithReason(reason),
		audit.WithMetadata("from", from),
		audit.WithMetadata("to", to),
	)
	e.notify(ctx, tenantID, to)
	return sub, nil
}

// RecordInvoicePaid marks the subscription as paid.
func (e *Engine) RecordInvoicePaid(ctx context.Context, tenantID uuid.UUID, actor string) (*Subscription, error) {
	return e.TransitionStatus(ctx, tenantID, StatusActivePaid, actor, "invoice_paid")
}

// mutate loads the subscription under lock, applies fn and persists the
// result unless dryRun is set. Cancelled subscriptions are rejected.
func (e *Engine) mutate(ctx context.Context, tenantID uuid.UUID, now time.Time, dryRun bool, fn func(tx Tx, sub *Subscription) error) (*Subscription, error) {
	var out *Subscription
	err := e.store.WithTx(ctx, func(tx Tx) error {
		sub, err := tx.GetForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		if sub.IsCancelled() {
			return ErrSubscriptionCanceled
		}
		if err := fn(tx, sub); err != nil {
			return err
		}
		if !dryRun {
			sub.UpdatedAt = now
			if err := tx.Update(ctx, sub); err != nil {
				return err
			}
		}
		out = sub
		return nil
	})
	return out, err
}

func (e *Engine) estimate(ctx context.Context, sub *Subscription, target Tier, now time.Time) (Estimate, error) {
	from, err := e.catalog.Get(ctx, sub.CurrentTier)
	if err != nil {
		return Estimate{}, err
	}
	to, err := e.catalog.Get(ctx, target)
	if err != nil {
		return Estimate{}, err
	}

	est := Estimate{
		TenantID:       sub.TenantID,
		Direction:      DirectionNone,
		FromTier:       sub.CurrentTier,
		ToTier:         target,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		EffectiveAt:    now,
		RemainingRatio: decimal.Zero,
		Currency:       to.Currency,
		Credit:         decimal.Zero,
		Charge:         decimal.Zero,
		Total:          decimal.Zero,
		Items:          []InvoiceItem{},
	}

	switch {
	case target == sub.CurrentTier:
		return est, nil
	case target.Rank() > sub.CurrentTier.Rank():
		p := proration.Calculate(proration.Input{
			FromAmount:  from.MonthlyPrice,
			ToAmount:    to.MonthlyPrice,
			PeriodStart: sub.CurrentPeriodStart,
			PeriodEnd:   sub.CurrentPeriodEnd,
			EffectiveAt: now,
		})
		est.Direction = DirectionUpgrade
		est.Immediate = true
		est.RemainingRatio = p.RemainingRatio
		est.Credit = p.Credit
		est.Charge = p.Charge
		est.Total = p.Total
		est.Items = []InvoiceItem{
			{Kind: ItemCreditUnusedTime, Description: "Unused time on " + planLabel(from), Amount: p.Credit.Neg()},
			{Kind: ItemChargeNewPlan, Description: "Remaining time on " + planLabel(to), Amount: p.Charge},
		}
	default:
		est.Direction = DirectionDowngrade
		est.EffectiveAt = sub.CurrentPeriodEnd
	}
	return est, nil
}

func newInvoice(sub *Subscription, est Estimate, now time.Time) *ProrationInvoice {
	return &ProrationInvoice{
		ID:             uuid.New(),
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		FromTier:       est.FromTier,
		ToTier:         est.ToTier,
		PeriodStart:    est.PeriodStart,
		PeriodEnd:      est.PeriodEnd,
		EffectiveAt:    est.EffectiveAt,
		RemainingRatio: est.RemainingRatio,
		Currency:       est.Currency,
		Subtotal:       est.Total,
		Total:          est.Total,
		Items:          est.Items,
		CreatedAt:      now,
	}
}

func planLabel(e PlanEntitlement) string {
	if e.Name == "" {
		return string(e.Tier)
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Tier)
}

// addDays adds n calendar days in the business timezone so the local
// hour-of-day is kept across DST changes.
func (e *Engine) addDays(t time.Time, n int) time.Time {
	return t.In(e.loc).AddDate(0, 0, n).UTC()
}

func (e *Engine) record(ctx context.Context, action string, tenantID uuid.UUID, actor string, opts ...audit.RecordOption) {
	opts = append([]audit.RecordOption{audit.WithActor(actor)}, opts...)
	e.audit.Log(ctx, audit.New(action, tenantID, opts...))
}

func (e *Engine) notify(ctx context.Context, tenantID uuid.UUID, status Status) {
	for _, l := range e.listeners {
		l(ctx, tenantID, status)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, sub *Subscription, err error) {
	e.log.ErrorContext(ctx, msg,
		logger.Component("subscription"),
		logger.TenantID(sub.TenantID),
		logger.SubscriptionID(sub.ID),
		logger.Error(err),
	)
}

var errPanic = errors.New("panic while applying scheduled change")
