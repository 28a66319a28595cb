package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
)

// AuditLogger receives lifecycle audit records. *audit.Recorder satisfies it.
type AuditLogger interface {
	Log(ctx context.Context, rec audit.Record)
}

// StatusListener is notified after a subscription status changes.
type StatusListener func(ctx context.Context, tenantID uuid.UUID, status Status)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAudit sets where lifecycle events are recorded. Defaults to a no-op.
func WithAudit(a AuditLogger) EngineOption {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithLocation sets the business timezone used for calendar arithmetic.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTrialDays sets the trial length used by Provision. Default 30.
func WithTrialDays(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.trialDays = days
		}
	}
}

// WithGraceDays sets how long GRACE lasts before restriction. Default 7.
func WithGraceDays(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.graceDays = days
		}
	}
}

// WithBatchSize sets how many due rows ApplyDueScheduledChanges loads per page.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithStatusListener registers a callback for status changes, e.g. to
// invalidate a status cache.
func WithStatusListener(l StatusListener) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.listeners = append(e.listeners, l)
		}
	}
}

// WithObserver receives batch outcome telemetry.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

type noopAudit struct{}

func (noopAudit) Log(context.Context, audit.Record) {}
