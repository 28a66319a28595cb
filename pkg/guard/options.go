package guard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
	"github.com/dmitrymomot/tenantplans/pkg/ratelimit"
	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/tenant"
)

// Option configures a Guard.
type Option func(*Guard)

// WithResolver sets the resolver used when no identity is on the request
// context yet.
func WithResolver(r tenant.Resolver) Option {
	return func(g *Guard) {
		g.resolver = r
	}
}

// WithStorefrontFallback resolves anonymous storefront checkout requests to
// a single tenant.
func WithStorefrontFallback(r tenant.Resolver) Option {
	return func(g *Guard) {
		g.storefront = r
	}
}

// WithPolicy replaces the restricted-mode capabilities per variant.
// Defaults to restriction.Policy.
func WithPolicy(fn func(restriction.Variant) restriction.Capabilities) Option {
	return func(g *Guard) {
		if fn != nil {
			g.policy = fn
		}
	}
}

// WithStatusCache replaces the default in-process cache.
func WithStatusCache(c StatusCache) Option {
	return func(g *Guard) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithRateLimitStore keeps developer API counters in store instead of memory.
func WithRateLimitStore(store ratelimit.Store) Option {
	return func(g *Guard) {
		g.limitStore = store
	}
}

// WithLimiter replaces the developer API limiter entirely.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(g *Guard) {
		g.limiter = l
	}
}

// WithAudit records every block.
func WithAudit(r *audit.Recorder) Option {
	return func(g *Guard) {
		g.audit = r
	}
}

// WithObserver receives one call per decision, e.g. a PrometheusObserver.
func WithObserver(o Observer) Option {
	return func(g *Guard) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock sets the time source for the default rate limiter.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithClientIP overrides how the client IP is read from a request.
func WithClientIP(fn func(r *http.Request) string) Option {
	return func(g *Guard) {
		if fn != nil {
			g.clientIP = fn
		}
	}
}
