package restriction

import (
	"fmt"
	"slices"
	"strings"
)

// Variant selects how much of the storefront stays usable in restricted mode.
type Variant string

const (
	VariantCatalogOnly     Variant = "CATALOG_ONLY"
	VariantAllowBasicSales Variant = "ALLOW_BASIC_SALES"
)

// DefaultVariant applies when a tenant has none configured.
const DefaultVariant = VariantCatalogOnly

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantCatalogOnly || v == VariantAllowBasicSales
}

// ParseVariant accepts variant names case-insensitively. Empty input yields DefaultVariant.
func ParseVariant(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVariant, nil
	}
	v := Variant(strings.ToUpper(s))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	return v, nil
}

// Storefront modes reported in Capabilities.
const (
	StorefrontCatalogOnly = "catalog_only"
	StorefrontBasicSales  = "basic_sales"
)

// Actions referenced by Capabilities.
const (
	ActionPremiumFeatures       = "premium_features"
	ActionPluginInstall         = "plugin_install"
	ActionBranchCreate          = "branch_create"
	ActionAdvancedIntegrations  = "advanced_integrations"
	ActionMarketingAutomation   = "marketing_automation_run"
	ActionIntegrationWriteSync  = "integration_write_sync"
	ActionStorefrontCheckout    = "storefront_checkout"
	ActionAdminNonCriticalWrite = "admin_non_critical_write"
	ActionDeveloperAPIRateLimit = "developer_api_rate_limit"
)

// DeveloperAPILimitPerMinute caps developer API reads while restricted.
const DeveloperAPILimitPerMinute = 30

// Capabilities describes a restricted tenant.
type Capabilities struct {
	Variant                    Variant  `json:"variant"`
	KeepsData                  bool     `json:"keepsData"`
	BasicSalesAllowed          bool     `json:"basicSalesAllowed"`
	StorefrontMode             string   `json:"storefrontMode"`
	BlockedActions             []string `json:"blockedActions"`
	DegradedActions            []string `json:"degradedActions"`
	DeveloperAPILimitPerMinute int      `json:"developerApiLimitPerMinute"`
}

// Blocks reports whether action is in BlockedActions.
func (c Capabilities) Blocks(action string) bool {
	return slices.Contains(c.BlockedActions, action)
}

// Policy returns the capabilities of a restricted tenant. Unknown variants
// are treated as DefaultVariant. Data is always kept.
func Policy(v Variant) Capabilities {
	if !v.Valid() {
		v = DefaultVariant
	}
	basicSales := v == VariantAllowBasicSales

	blocked := []string{
		ActionPremiumFeatures,
		ActionPluginInstall,
		ActionBranchCreate,
		ActionAdvancedIntegrations,
		ActionMarketingAutomation,
		ActionIntegrationWriteSync,
	}
	mode := StorefrontBasicSales
	if !basicSales {
		blocked = append(blocked, ActionStorefrontCheckout)
		mode = StorefrontCatalogOnly
	}

	return Capabilities{
		Variant:                    v,
		KeepsData:                  true,
		BasicSalesAllowed:          basicSales,
		StorefrontMode:             mode,
		BlockedActions:             blocked,
		DegradedActions:            []string{ActionAdminNonCriticalWrite, ActionDeveloperAPIRateLimit},
		DeveloperAPILimitPerMinute: DeveloperAPILimitPerMinute,
	}
}
