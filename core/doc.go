// Package core holds the HTTP error type and JSON envelope shared by the
// service handlers and the access guard.
//
// Handlers build a Response and hand it to Render:
//
//	core.Render(w, r, core.JSON("ok", sub, nil))
//	core.Render(w, r, core.JSONError(core.ErrNotFound))
//
// Errors that carry a DetailedError keep their message and details in the
// "error" object of the envelope.
package core
