package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
)

// Recorder writes records to a sink on a best-effort basis.
type Recorder struct {
	sink     Sink
	log      *slog.Logger
	observer Observer
	now      func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets where swallowed write failures are logged.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver reports write failures. Nil observers are ignored.
func WithObserver(o Observer) RecorderOption {
	return func(r *Recorder) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a Recorder. Panics if sink is nil.
func NewRecorder(sink Sink, opts ...RecorderOption) *Recorder {
	if sink == nil {
		panic("audit: sink is required")
	}
	r := &Recorder{
		sink:     sink,
		log:      slog.Default(),
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log appends rec to the sink. Failures are logged and counted, never returned.
func (r *Recorder) Log(ctx context.Context, rec Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	err := rec.Validate()
	if err == nil {
		err = r.sink.Append(ctx, rec)
	}
	if err != nil {
		r.observer.AuditWriteFailed(rec.Action)
		r.log.WarnContext(ctx, "audit write failed",
			logger.Component("audit"),
			logger.EventType(rec.Action),
			logger.TenantID(rec.TenantID),
			logger.Error(err),
		)
	}
}
