// Package requestid tags every HTTP request with a correlation ID.
//
// Middleware honours a client supplied X-Request-ID when it is short and
// limited to [a-zA-Z0-9_-], otherwise it generates a UUID. The ID is stored in
// the request context and copied to the response header. LoggerExtractor
// plugs into logger.WithContextExtractors so every log line written during
// the request carries request_id.
package requestid
