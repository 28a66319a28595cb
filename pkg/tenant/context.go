package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithIdentity adds an identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the identity from the context.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}

// IDFromContext retrieves just the tenant id.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := FromContext(ctx)
	if !ok || id.Tenant == nil {
		return uuid.Nil, false
	}
	return id.Tenant.ID, true
}

// LoggerExtractor returns a logger.ContextExtractor adding tenant_id and actor.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := FromContext(ctx)
		if !ok || id.Tenant == nil {
			return slog.Attr{}, false
		}
		return slog.Group("caller",
			slog.String("tenant_id", id.Tenant.ID.String()),
			slog.String("actor", id.Actor),
		), true
	}
}
