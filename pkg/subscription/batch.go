package subscription

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
	"github.com/dmitrymomot/tenantplans/pkg/logger"
)

// ChangeKind identifies which scheduled change a batch row carried.
type ChangeKind string

const (
	ChangeCancellation ChangeKind = "cancellation"
	ChangeDowngrade    ChangeKind = "downgrade"
)

// Outcome of one batch row.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// BatchItem reports what happened to one due subscription.
type BatchItem struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	Kind           ChangeKind `json:"kind"`
	Outcome        Outcome    `json:"outcome"`
	FromTier       Tier       `json:"from_tier,omitempty"`
	ToTier         Tier       `json:"to_tier,omitempty"`
	SoftLimited    bool       `json:"soft_limited,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// BatchResult summarises one ApplyDueScheduledChanges run.
type BatchResult struct {
	Scanned int         `json:"scanned"`
	Applied int         `json:"applied"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Results []BatchItem `json:"results"`
}

// ApplyDueScheduledChanges applies pending cancellations and downgrades whose
// period ended at or before now. Due rows are read in pages of the batch size
// with a keyset cursor, so rows that keep failing never hide the rest. Each
// row is isolated: a failing or panicking row is reported and the batch
// continues. Rows already handled by a concurrent run are reported as skipped.
func (e *Engine) ApplyDueScheduledChanges(ctx context.Context, now time.Time, actor string) (*BatchResult, error) {
	now = now.UTC()

	res := &BatchResult{Results: []BatchItem{}}
	var cursor DueCursor
	for page := 0; ; page++ {
		due, err := e.store.ListDue(ctx, now, cursor, e.batchSize)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			return res, err
		}

		for _, sub := range due {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			cursor = CursorOf(sub)

			item := e.applyDue(ctx, sub, now, actor)
			e.observer.ScheduledChange(item.Kind, item.Outcome)
			res.Scanned++
			res.Results = append(res.Results, item)

			switch item.Outcome {
			case OutcomeApplied:
				res.Applied++
			case OutcomeSkipped:
				res.Skipped++
			case OutcomeFailed:
				res.Failed++
			}
		}

		if e.batchSize <= 0 || len(due) < e.batchSize {
			break
		}
	}

	if res.Scanned > 0 {
		e.log.InfoContext(ctx, "scheduled subscription changes processed",
			logger.Component("subscription"),
			logger.Actor(actor),
			"scanned", res.Scanned,
			"applied", res.Applied,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res, nil
}

func (e *Engine) applyDue(ctx context.Context, sub *Subscription, now time.Time, actor string) (item BatchItem) {
	item = BatchItem{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Kind:           ChangeDowngrade,
		FromTier:       sub.CurrentTier,
	}
	if sub.CancelAtPeriodEnd {
		item.Kind = ChangeCancellation
	} else if sub.NextTier != nil {
		item.ToTier = *sub.NextTier
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", errPanic, r)
			e.logError(ctx, "scheduled change panicked", sub, err)
			item.Outcome = OutcomeFailed
			item.Error = err.Error()
		}
	}()

	var (
		applied bool
		err     error
	)
	if item.Kind == ChangeCancellation {
		applied, err = e.applyCancellation(ctx, sub, now, actor)
	} else {
		applied, item.SoftLimited, err = e.applyDowngrade(ctx, sub, now, actor)
	}

	switch {
	case err != nil:
		e.logError(ctx, "failed to apply scheduled change", sub, err)
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
	case !applied:
		item.Outcome = OutcomeSkipped
		item.Error = ErrNotProcessed.Error()
	default:
		item.Outcome = OutcomeApplied
	}
	return item
}

func (e *Engine) applyCancellation(ctx context.Context, sub *Subscription, now time.Time, actor string) (bool, error) {
	ok, err := e.store.ApplyCancellation(ctx, sub.ID, now)
	if err != nil || !ok {
		return false, err
	}

	e.record(ctx, ActionCancelApplied, sub.TenantID, actor,
		audit.WithMetadata("subscriptionId", sub.ID.String()),
		audit.WithMetadata("periodEnd", sub.CurrentPeriodEnd),
	)
	e.notify(ctx, sub.TenantID, StatusCancelled)
	return true, nil
}

func (e *Engine) applyDowngrade(ctx context.Context, sub *Subscription, now time.Time, actor string) (bool, bool, error) {
	if sub.NextTier == nil {
		return false, false, nil
	}
	target := *sub.NextTier

	ent, err := e.catalog.Get(ctx, target)
	if err != nil {
		return false, false, err
	}
	snap, err := e.usage.Snapshot(ctx, sub.TenantID, now)
	if err != nil {
		return false, false, err
	}
	verdict := EvaluateSoftLimits(ent, snap, now)

	nextStart := sub.CurrentPeriodEnd
	nextEnd := e.addDays(nextStart, periodDays(sub.CurrentPeriodStart, sub.CurrentPeriodEnd))

	ok, err := e.store.ApplyDowngrade(ctx, DowngradeUpdate{
		ID:          sub.ID,
		TargetTier:  target,
		Now:         now,
		PeriodStart: nextStart,
		PeriodEnd:   nextEnd,
		Verdict:     verdict,
	})
	if err != nil || !ok {
		return false, false, err
	}

	opts := []audit.RecordOption{
		audit.WithMetadata("subscriptionId", sub.ID.String()),
		audit.WithMetadata("fromTier", sub.CurrentTier),
		audit.WithMetadata("toTier", target),
		audit.WithMetadata("periodStart", nextStart),
		audit.WithMetadata("periodEnd", nextEnd),
		audit.WithMetadata("noDataDeletion", true),
		audit.WithMetadata("softLimited", verdict.SoftLimited),
	}
	if verdict.SoftLimited {
		opts = append(opts,
			audit.WithReason(verdict.Reason),
			audit.WithMetadata("softLimitSnapshot", verdict.Snapshot),
		)
	}
	e.record(ctx, ActionDowngradeApplied, sub.TenantID, actor, opts...)
	return true, verdict.SoftLimited, nil
}

// periodDays is the period length rounded to whole days, at least one.
func periodDays(start, end time.Time) int {
	days := int(math.Round(end.Sub(start).Hours() / 24))
	return max(1, days)
}
