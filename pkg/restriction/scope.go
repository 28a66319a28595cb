package restriction

import (
	"fmt"
	"strings"
)

// Scope is the enforcement class of a route.
type Scope string

const (
	ScopeSystem              Scope = "SYSTEM"
	ScopeStorefrontRead      Scope = "STOREFRONT_READ"
	ScopeStorefrontCheckout  Scope = "STOREFRONT_CHECKOUT"
	ScopeDeveloperAPI        Scope = "DEVELOPER_API"
	ScopeMarketingAutomation Scope = "MARKETING_AUTOMATION"
	ScopeIntegrations        Scope = "INTEGRATIONS"
	ScopeAdmin               Scope = "ADMIN"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeStorefrontRead, ScopeStorefrontCheckout, ScopeDeveloperAPI,
		ScopeMarketingAutomation, ScopeIntegrations, ScopeAdmin:
		return true
	}
	return false
}

// ParseScope accepts scope names case-insensitively.
func ParseScope(s string) (Scope, error) {
	sc := Scope(strings.ToUpper(strings.TrimSpace(s)))
	if !sc.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return sc, nil
}

// Route is the classification of one request.
type Route struct {
	Scope    Scope `json:"scope"`
	Mutation bool  `json:"mutation"`
	// AllowInRestricted routes bypass enforcement entirely.
	AllowInRestricted bool `json:"allowInRestricted,omitempty"`
	// BasicSalesWrite marks checkout writes kept under ALLOW_BASIC_SALES.
	BasicSalesWrite bool `json:"basicSalesWrite,omitempty"`
	// ExportOrReadSafe marks admin writes that only produce exports or PDFs.
	ExportOrReadSafe bool `json:"exportOrReadSafe,omitempty"`
	// Pattern is the rule that matched, empty for the ADMIN fallback.
	Pattern string `json:"pattern,omitempty"`
}

// IsMutation reports whether method changes state.
func IsMutation(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return false
	}
	return true
}
