package scopes

import (
	"slices"
	"strings"
)

const (
	// Wildcard grants every scope.
	Wildcard = "*"
	// Delimiter separates a scope's resource from its action, as in "billing:read".
	Delimiter = ":"
)

// Parse splits a space-separated OAuth2 scope string, dropping empties and
// duplicates while keeping order.
func Parse(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Matches reports whether a granted pattern covers scope. "billing:*" covers
// every "billing:" scope but not "billing" itself.
func Matches(scope, pattern string) bool {
	if pattern == Wildcard || pattern == scope {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, Delimiter+Wildcard); ok {
		return strings.HasPrefix(scope, prefix+Delimiter)
	}
	return false
}

// Has reports whether any granted pattern covers scope.
func Has(granted []string, scope string) bool {
	for _, p := range granted {
		if Matches(scope, p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required scope is covered.
func HasAll(granted, required []string) bool {
	for _, r := range required {
		if !Has(granted, r) {
			return false
		}
	}
	return true
}
