package core

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
)

// ErrNilResponse is reported when a handler returns no response.
var ErrNilResponse = errors.New("handler returned nil response")

// HandlerFunc handles a request already bound into R.
type HandlerFunc[R any] func(r *http.Request, req R) Response

// Bind populates v from the request.
type Bind func(r *http.Request, v any) error

// BindJSON decodes the body strictly. See DecodeJSON.
func BindJSON(allowEmpty bool) Bind {
	return func(r *http.Request, v any) error {
		return DecodeJSON(r, v, allowEmpty)
	}
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	binders []Bind
	log     *slog.Logger
}

// WithBinders applies binders in order; the first error aborts the request.
func WithBinders(binders ...Bind) WrapOption {
	return func(c *wrapConfig) { c.binders = append(c.binders, binders...) }
}

// WithErrorLogger logs responses that end in 5xx.
func WithErrorLogger(l *slog.Logger) WrapOption {
	return func(c *wrapConfig) { c.log = l }
}

// Wrap adapts a typed handler to http.HandlerFunc. Bind errors render
// through JSONError.
func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				Render(w, r, JSONError(err))
				return
			}
		}

		resp := h(r, req)
		if resp == nil {
			cfg.log.ErrorContext(r.Context(), "handler failed",
				logger.Component("http"),
				logger.Error(ErrNilResponse),
				slog.String("path", r.URL.Path),
			)
			resp = JSONError(ErrNilResponse)
		}
		if er, ok := resp.(errorResponse); ok && er.status >= http.StatusInternalServerError {
			cfg.log.ErrorContext(r.Context(), "request failed",
				logger.Component("http"),
				logger.Error(er.err),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		Render(w, r, resp)
	}
}
