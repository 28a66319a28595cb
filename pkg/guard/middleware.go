package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/tenantplans/core"
)

// Middleware blocks requests the guard denies and passes the rest through.
func Middleware(g *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Authorize(r)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			core.Render(w, r, Response(d))
		})
	}
}

// Forward-auth headers set by the gateway for the original request.
const (
	HeaderForwardedMethod = "X-Forwarded-Method"
	HeaderForwardedURI    = "X-Forwarded-Uri"
)

// ForwardAuthHandler authorizes the request a gateway is about to proxy.
// The original method and URI come from forward-auth headers; credentials
// and the client address are read from the subrequest itself. Allowed
// requests get 204, blocked ones the same JSON error Middleware writes.
func ForwardAuthHandler(g *Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.Header.Get(HeaderForwardedMethod)
		uri := r.Header.Get(HeaderForwardedURI)
		if method == "" || uri == "" {
			core.Render(w, r, core.JSONError(core.ErrBadRequest.WithDetails("forward-auth headers are required", nil)))
			return
		}
		target, err := url.ParseRequestURI(uri)
		if err != nil {
			core.Render(w, r, core.JSONError(core.ErrBadRequest.WithDetails("invalid forwarded uri", nil)))
			return
		}

		orig := r.Clone(r.Context())
		orig.Method = strings.ToUpper(method)
		orig.URL = target
		orig.RequestURI = uri

		if d := g.Authorize(orig); !d.Allowed {
			core.Render(w, r, Response(d))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Response renders a blocking decision as a JSON error.
func Response(d Decision) core.Response {
	details := map[string]any{
		"scope": d.Scope,
	}
	if d.Variant != "" {
		details["restrictedVariant"] = d.Variant
	}
	if d.CTA != "" {
		details["cta"] = d.CTA
	}

	var opts []core.JSONOption
	if d.RetryAfterSeconds > 0 {
		details["retryAfterSeconds"] = d.RetryAfterSeconds
		opts = append(opts, core.RetryAfter(d.RetryAfterSeconds))
	}

	base := core.NewHTTPError(d.Status, d.Code)
	return core.JSONError(base.WithDetails(d.Message, details), opts...)
}
