package restriction

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule maps a path pattern to a scope. Rules are evaluated in order.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Scope   Scope  `yaml:"scope"`
	// Methods restricts the rule to these methods. Empty matches any method.
	Methods []string `yaml:"methods,omitempty"`

	AllowInRestricted bool `yaml:"allow_in_restricted,omitempty"`
	BasicSalesWrite   bool `yaml:"basic_sales_write,omitempty"`
	ExportOrReadSafe  bool `yaml:"export_or_read_safe,omitempty"`
}

var readMethods = []string{"GET", "HEAD", "OPTIONS"}

// DefaultRules returns the built-in route table in priority order:
// system, storefront reads, checkout, developer API, marketing automation,
// integrations, then admin exemptions.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/health", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/health/**", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/healthz", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/readyz", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/metrics", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/guard/**", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/auth/**", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/setup/**", Scope: ScopeSystem, AllowInRestricted: true},
		{Pattern: "/webhooks/**", Scope: ScopeSystem, AllowInRestricted: true},

		{Pattern: "/storefront/catalog/**", Scope: ScopeStorefrontRead, Methods: readMethods, AllowInRestricted: true},
		{Pattern: "/storefront/products/**", Scope: ScopeStorefrontRead, Methods: readMethods, AllowInRestricted: true},
		{Pattern: "/storefront/categories/**", Scope: ScopeStorefrontRead, Methods: readMethods, AllowInRestricted: true},
		{Pattern: "/storefront/theme/**", Scope: ScopeStorefrontRead, Methods: readMethods, AllowInRestricted: true},
		{Pattern: "/storefront/pages/**", Scope: ScopeStorefrontRead, Methods: readMethods, AllowInRestricted: true},

		{Pattern: "/checkout/orders", Scope: ScopeStorefrontCheckout, BasicSalesWrite: true},
		{Pattern: "/checkout/orders/*/status", Scope: ScopeStorefrontCheckout, BasicSalesWrite: true},
		{Pattern: "/checkout/quote", Scope: ScopeStorefrontCheckout, BasicSalesWrite: true},
		{Pattern: "/storefront/checkout/orders", Scope: ScopeStorefrontCheckout, BasicSalesWrite: true},
		{Pattern: "/storefront/checkout/quote", Scope: ScopeStorefrontCheckout, BasicSalesWrite: true},
		{Pattern: "/checkout/**", Scope: ScopeStorefrontCheckout},
		{Pattern: "/storefront/checkout/**", Scope: ScopeStorefrontCheckout},
		{Pattern: "/payment-preferences/**", Scope: ScopeStorefrontCheckout},

		{Pattern: "/developer/**", Scope: ScopeDeveloperAPI},
		{Pattern: "/dev-api/**", Scope: ScopeDeveloperAPI},

		{Pattern: "/marketing/automations/**", Scope: ScopeMarketingAutomation},
		{Pattern: "/automations/**", Scope: ScopeMarketingAutomation},

		{Pattern: "/plugins/**", Scope: ScopeIntegrations},
		{Pattern: "/integrations/**", Scope: ScopeIntegrations},
		{Pattern: "/integration-builder/**", Scope: ScopeIntegrations},

		{Pattern: "/billing/**", Scope: ScopeAdmin, AllowInRestricted: true},
		{Pattern: "/plans/**", Scope: ScopeAdmin, AllowInRestricted: true},
		{Pattern: "/subscription/**", Scope: ScopeAdmin, AllowInRestricted: true},
		{Pattern: "/licensing/**", Scope: ScopeAdmin, AllowInRestricted: true},

		{Pattern: "/**/export", Scope: ScopeAdmin, ExportOrReadSafe: true},
		{Pattern: "/**/export/**", Scope: ScopeAdmin, ExportOrReadSafe: true},
		{Pattern: "/**/exports/**", Scope: ScopeAdmin, ExportOrReadSafe: true},
		{Pattern: "/**/pdf", Scope: ScopeAdmin, ExportOrReadSafe: true},
		{Pattern: "/**/*.pdf", Scope: ScopeAdmin, ExportOrReadSafe: true},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesYAML reads a rule table:
//
//	rules:
//	  - pattern: /pos/**
//	    scope: STOREFRONT_CHECKOUT
//	    basic_sales_write: true
//
// Rules are validated by NewClassifier.
func LoadRulesYAML(r io.Reader) ([]Rule, error) {
	var doc rulesFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidPattern, err)
	}
	return doc.Rules, nil
}

// RulesFromFile prepends the rules in the YAML file at path to DefaultRules,
// so they take priority. An empty path returns DefaultRules.
func RulesFromFile(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	custom, err := LoadRulesYAML(f)
	if err != nil {
		return nil, err
	}
	return append(custom, DefaultRules()...), nil
}
