// Package clientip resolves the caller's address for per-client rate limits.
//
// Which proxy headers can be trusted depends on the deployment, so the
// header chain is configurable through NewExtractor. Middleware stores the
// result in the request context and GetIP reads it back:
//
//	r.Use(clientip.Middleware(clientip.NewExtractor(cfg.TrustedIPHeaders...)))
//
// Addresses are normalized: IPv4-mapped IPv6 is unmapped and zones are dropped.
package clientip
