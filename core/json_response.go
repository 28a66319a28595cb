package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONResponse is the standard JSON envelope.
type JSONResponse struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type jsonResponse struct {
	status  int
	headers http.Header
	body    JSONResponse
}

// Render writes the envelope with its status code and headers.
func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range j.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus overrides the HTTP status code.
func WithStatus(status int) JSONOption {
	return func(j *jsonResponse) {
		j.status = status
	}
}

// WithHeader adds a response header.
func WithHeader(key, value string) JSONOption {
	return func(j *jsonResponse) {
		if j.headers == nil {
			j.headers = make(http.Header)
		}
		j.headers.Add(key, value)
	}
}

// JSON creates a 200 response with data.
func JSON(code string, data any, meta map[string]any, opts ...JSONOption) Response {
	j := jsonResponse{
		status: http.StatusOK,
		body:   JSONResponse{Code: code, Data: data, Meta: meta},
	}
	for _, opt := range opts {
		opt(&j)
	}
	return j
}

// JSONError creates an error response. ValidationError maps to 422,
// HTTPError and DetailedError to their own code, anything else to 500.
func JSONError(err error, opts ...JSONOption) Response {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{Code: ErrInternalServerError.Key, Message: http.StatusText(status)}

	var (
		valErr      ValidationError
		detailedErr *DetailedError
		httpErr     HTTPError
	)
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "validation failed"
		if len(valErr) > 0 {
			detail.Details = map[string][]string(valErr)
		}
	case errors.As(err, &detailedErr):
		status = detailedErr.Code
		detail.Code = detailedErr.Key
		detail.Message = detailedErr.Message
		if detail.Message == "" {
			detail.Message = http.StatusText(status)
		}
		if len(detailedErr.Details) > 0 {
			detail.Details = detailedErr.Details
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(status)
	}

	j := jsonResponse{
		status: status,
		body:   JSONResponse{Code: detail.Code, Error: detail},
	}
	for _, opt := range opts {
		opt(&j)
	}
	return errorResponse{jsonResponse: j, err: err}
}

// errorResponse keeps the source error so Wrap can log server failures.
type errorResponse struct {
	jsonResponse
	err error
}

// Render writes resp and falls back to a bare 500 if rendering fails before
// anything was written.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// RetryAfter sets the Retry-After header in whole seconds.
func RetryAfter(seconds int) JSONOption {
	return WithHeader("Retry-After", strconv.Itoa(seconds))
}
