package core

import "net/http"

// HTTPError is an error with an HTTP status code and a stable machine key.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // Machine readable code, e.g. "not_found"
}

func (e HTTPError) Error() string {
	return e.Key
}

// WithDetails attaches a human message and details to the error.
func (e HTTPError) WithDetails(message string, details map[string]any) *DetailedError {
	return &DetailedError{HTTPError: e, Message: message, Details: details}
}

// DetailedError is an HTTPError carrying a message and structured details.
type DetailedError struct {
	HTTPError
	Message string
	Details map[string]any
}

func (e *DetailedError) Error() string {
	if e.Message != "" {
		return e.Key + ": " + e.Message
	}
	return e.Key
}

func (e *DetailedError) Unwrap() error {
	return e.HTTPError
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrPaymentRequired     = HTTPError{Code: http.StatusPaymentRequired, Key: "payment_required"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMedia    = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
)

// NewHTTPError creates a custom HTTP error.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}
