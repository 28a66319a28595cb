package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxBodyBytes caps request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// DecodeJSON strictly decodes a JSON request body into v. An empty body is
// accepted when allowEmpty is set so optional payloads work.
func DecodeJSON(r *http.Request, v any, allowEmpty bool) error {
	if r.Body == nil || r.ContentLength == 0 {
		if allowEmpty {
			return nil
		}
		return ErrBadRequest.WithDetails("request body is required", nil)
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return ErrUnsupportedMedia.WithDetails(fmt.Sprintf("got %q, expected application/json", ct), nil)
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return ErrBadRequest.WithDetails("invalid JSON body: "+err.Error(), nil)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrBadRequest.WithDetails("unexpected data after JSON object", nil)
	}
	return nil
}
