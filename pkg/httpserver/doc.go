// Package httpserver runs the service's HTTP listener with configured
// timeouts and a graceful shutdown tied to a context.
//
// Run blocks until the context passed to it is cancelled, then drains
// in-flight requests for at most the shutdown timeout. Signal handling is
// left to the caller, usually via signal.NotifyContext in main.
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz probes.
package httpserver
