package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders are consulted in order before RemoteAddr.
var DefaultHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Extractor resolves the client address from a fixed list of proxy headers.
type Extractor struct {
	headers []string
}

// NewExtractor returns an Extractor that trusts headers in the given order.
// With no headers only RemoteAddr is used.
func NewExtractor(headers ...string) *Extractor {
	return &Extractor{headers: headers}
}

// IP returns the normalized client address or "" when none parses.
// X-Forwarded-For style lists yield their first valid entry.
func (e *Extractor) IP(r *http.Request) string {
	for _, h := range e.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

var defaultExtractor = NewExtractor(DefaultHeaders...)

// GetIP returns the address stored by Middleware, falling back to the
// default header chain.
func GetIP(r *http.Request) string {
	if ip := GetIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return defaultExtractor.IP(r)
}

func normalize(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
