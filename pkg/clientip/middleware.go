package clientip

import "net/http"

// Middleware stores the address resolved by e in the request context so
// GetIP returns it downstream. A nil e uses DefaultHeaders.
func Middleware(e *Extractor) func(http.Handler) http.Handler {
	if e == nil {
		e = defaultExtractor
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := SetIPToContext(r.Context(), e.IP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
