package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

// Unlimited marks a cap that is never exceeded.
const Unlimited int64 = -1

// PlanEntitlement holds the price and usage caps of a tier.
type PlanEntitlement struct {
	Tier          Tier            `json:"tier"`
	Name          string          `json:"name"`
	MonthlyPrice  decimal.Decimal `json:"monthly_price"`
	Currency      string          `json:"currency"`
	OrdersMonth   int64           `json:"orders_month"`
	APICallsMonth int64           `json:"api_calls_month"`
	StorageGB     int64           `json:"storage_gb"`
	Plugins       int64           `json:"plugins"`
	Branches      int64           `json:"branches"`
	AdminUsers    int64           `json:"admin_users"`
	SLO           string          `json:"slo,omitempty"`
	Support       string          `json:"support,omitempty"`
}

// Limit returns the cap for m, or Unlimited.
func (e PlanEntitlement) Limit(m usage.Metric) int64 {
	switch m {
	case usage.MetricOrdersMonth:
		return e.OrdersMonth
	case usage.MetricAPICallsMonth:
		return e.APICallsMonth
	case usage.MetricStorageGB:
		return e.StorageGB
	case usage.MetricPlugins:
		return e.Plugins
	case usage.MetricBranches:
		return e.Branches
	case usage.MetricAdminUsers:
		return e.AdminUsers
	}
	return Unlimited
}

// Validate checks the tier, price, currency and caps.
func (e PlanEntitlement) Validate() error {
	if !e.Tier.Valid() {
		return fmt.Errorf("%w: tier %q", ErrInvalidEntitlement, e.Tier)
	}
	if e.MonthlyPrice.IsNegative() {
		return fmt.Errorf("%w: %s price is negative", ErrInvalidEntitlement, e.Tier)
	}
	if _, err := currency.ParseISO(e.Currency); err != nil {
		return fmt.Errorf("%w: %s currency %q", ErrInvalidEntitlement, e.Tier, e.Currency)
	}
	for _, m := range usage.Metrics {
		if l := e.Limit(m); l < Unlimited {
			return fmt.Errorf("%w: %s cap %s is %d", ErrInvalidEntitlement, e.Tier, m, l)
		}
	}
	return nil
}

// CatalogStore persists plan entitlements.
type CatalogStore interface {
	// Get returns ErrInvalidCatalog when the tier has no row.
	Get(ctx context.Context, tier Tier) (PlanEntitlement, error)
	List(ctx context.Context) ([]PlanEntitlement, error)
	// Upsert inserts or replaces entitlements by tier.
	Upsert(ctx context.Context, entitlements ...PlanEntitlement) error
}

// DefaultEntitlements returns the built-in catalog priced in cur.
func DefaultEntitlements(cur string) []PlanEntitlement {
	if cur == "" {
		cur = "BRL"
	}
	return []PlanEntitlement{
		{
			Tier: TierC1, Name: "Essencial", MonthlyPrice: decimal.RequireFromString("99.00"), Currency: cur,
			OrdersMonth: 500, APICallsMonth: 10_000, StorageGB: 5, Plugins: 3, Branches: 1, AdminUsers: 2,
			SLO: "99.5% monthly uptime", Support: "email, business hours",
		},
		{
			Tier: TierC2, Name: "Profissional", MonthlyPrice: decimal.RequireFromString("249.00"), Currency: cur,
			OrdersMonth: 3_000, APICallsMonth: 100_000, StorageGB: 50, Plugins: 10, Branches: 3, AdminUsers: 5,
			SLO: "99.7% monthly uptime", Support: "email and chat, extended hours",
		},
		{
			Tier: TierC3, Name: "Escala", MonthlyPrice: decimal.RequireFromString("599.00"), Currency: cur,
			OrdersMonth: 20_000, APICallsMonth: 1_000_000, StorageGB: 250, Plugins: 30, Branches: 10, AdminUsers: 20,
			SLO: "99.9% monthly uptime", Support: "24x7 priority with named contact",
		},
	}
}

type catalogFile struct {
	Currency string             `yaml:"currency"`
	Plans    []catalogFileEntry `yaml:"plans"`
}

type catalogFileEntry struct {
	Tier          string `yaml:"tier"`
	Name          string `yaml:"name"`
	MonthlyPrice  string `yaml:"monthly_price"`
	Currency      string `yaml:"currency"`
	OrdersMonth   *int64 `yaml:"orders_month"`
	APICallsMonth *int64 `yaml:"api_calls_month"`
	StorageGB     *int64 `yaml:"storage_gb"`
	Plugins       *int64 `yaml:"plugins"`
	Branches      *int64 `yaml:"branches"`
	AdminUsers    *int64 `yaml:"admin_users"`
	SLO           string `yaml:"slo"`
	Support       string `yaml:"support"`
}

// MergeEntitlementsYAML overlays a YAML catalog on base. Plans are matched by
// tier and only the fields present in the document are replaced.
//
//	currency: BRL
//	plans:
//	  - tier: C2
//	    monthly_price: "279.00"
//	    orders_month: 4000
func MergeEntitlementsYAML(base []PlanEntitlement, r io.Reader) ([]PlanEntitlement, error) {
	var doc catalogFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	out := slices.Clone(base)
	index := make(map[Tier]int, len(out))
	for i, e := range out {
		index[e.Tier] = i
	}

	for _, p := range doc.Plans {
		tier, err := ParseTier(p.Tier)
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadCatalog, err)
		}
		i, ok := index[tier]
		if !ok {
			out = append(out, PlanEntitlement{Tier: tier, Currency: doc.Currency})
			i = len(out) - 1
			index[tier] = i
		}
		e := &out[i]

		if p.Name != "" {
			e.Name = p.Name
		}
		if p.MonthlyPrice != "" {
			price, err := decimal.NewFromString(p.MonthlyPrice)
			if err != nil {
				return nil, errors.Join(ErrFailedToLoadCatalog, fmt.Errorf("%s monthly_price: %w", tier, err))
			}
			e.MonthlyPrice = price
		}
		switch {
		case p.Currency != "":
			e.Currency = p.Currency
		case doc.Currency != "":
			e.Currency = doc.Currency
		}
		setIfPresent(&e.OrdersMonth, p.OrdersMonth)
		setIfPresent(&e.APICallsMonth, p.APICallsMonth)
		setIfPresent(&e.StorageGB, p.StorageGB)
		setIfPresent(&e.Plugins, p.Plugins)
		setIfPresent(&e.Branches, p.Branches)
		setIfPresent(&e.AdminUsers, p.AdminUsers)
		if p.SLO != "" {
			e.SLO = p.SLO
		}
		if p.Support != "" {
			e.Support = p.Support
		}
	}

	return out, nil
}

// LoadEntitlementsFile overlays the YAML file at path on base.
// An empty path returns base unchanged.
func LoadEntitlementsFile(base []PlanEntitlement, path string) ([]PlanEntitlement, error) {
	if path == "" {
		return base, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	defer f.Close()
	return MergeEntitlementsYAML(base, f)
}

func setIfPresent(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

// SeedCatalog validates entitlements and upserts them. Every tier must be present.
// Running it repeatedly with the same input leaves the catalog unchanged.
func SeedCatalog(ctx context.Context, store CatalogStore, entitlements []PlanEntitlement) error {
	seen := make(map[Tier]bool, len(entitlements))
	for _, e := range entitlements {
		if err := e.Validate(); err != nil {
			return err
		}
		seen[e.Tier] = true
	}
	for _, t := range Tiers {
		if !seen[t] {
			return fmt.Errorf("%w: %s", ErrInvalidCatalog, t)
		}
	}
	if err := store.Upsert(ctx, entitlements...); err != nil {
		return errors.Join(ErrFailedToLoadCatalog, err)
	}
	return nil
}
