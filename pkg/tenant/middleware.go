package tenant

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
)

// Middleware resolves the caller and stores the Identity on the request
// context. Requests without credentials pass through without an identity;
// use RequireIdentity or RequireScope on routes that need one.
func Middleware(resolver Resolver, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			id, err := resolver.Resolve(r)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "tenant resolution failed",
					logger.Component("tenant"),
					logger.Error(err),
				)
				cfg.errorHandler(w, r, err)
				return
			}
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity rejects requests without a resolved identity.
func RequireIdentity(opts ...Option) func(http.Handler) http.Handler {
	return RequireScope("", opts...)
}

// RequireScope rejects requests whose identity lacks scope. An empty scope
// only requires an identity.
func RequireScope(scope string, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				cfg.errorHandler(w, r, ErrNoIdentity)
				return
			}
			if scope != "" && !id.HasScope(scope) {
				cfg.errorHandler(w, r, ErrMissingScope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
