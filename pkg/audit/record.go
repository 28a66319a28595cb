package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a single append-only audit entry.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	Actor     string         `json:"actor,omitempty"`
	Action    string         `json:"action"`
	Method    string         `json:"method,omitempty"`
	Route     string         `json:"route,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks required fields.
func (r Record) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	}
	return nil
}

// RecordOption configures a Record built with New.
type RecordOption func(*Record)

// New builds a record for action on tenantID.
func New(action string, tenantID uuid.UUID, opts ...RecordOption) Record {
	r := Record{TenantID: tenantID, Action: action}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithActor sets who performed the action, e.g. "user:42" or "system:scheduler".
func WithActor(actor string) RecordOption {
	return func(r *Record) { r.Actor = actor }
}

// WithRequest sets the HTTP method and route that triggered the record.
func WithRequest(method, route string) RecordOption {
	return func(r *Record) {
		r.Method = method
		r.Route = route
	}
}

// WithReason sets the machine readable reason, such as a deny code.
func WithReason(reason string) RecordOption {
	return func(r *Record) { r.Reason = reason }
}

// WithMetadata adds a single metadata entry. Empty keys are ignored.
func WithMetadata(key string, value any) RecordOption {
	return func(r *Record) {
		if key == "" {
			return
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[key] = value
	}
}

// Sink persists audit records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// BatchSink persists many records at once. Implementations write all or nothing.
type BatchSink interface {
	Sink
	AppendBatch(ctx context.Context, recs []Record) error
}
