package subscription_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

func TestDefaultEntitlements(t *testing.T) {
	t.Parallel()

	ents := subscription.DefaultEntitlements("")
	require.Len(t, ents, 3)

	for i, e := range ents {
		require.NoError(t, e.Validate(), e.Tier)
		assert.Equal(t, subscription.Tiers[i], e.Tier)
		assert.Equal(t, "BRL", e.Currency)
	}

	c1 := ents[0]
	assert.True(t, decimal.RequireFromString("99").Equal(c1.MonthlyPrice))
	assert.EqualValues(t, 500, c1.Limit(usage.MetricOrdersMonth))
	assert.EqualValues(t, 10_000, c1.Limit(usage.MetricAPICallsMonth))
	assert.Equal(t, subscription.Unlimited, c1.Limit(usage.Metric("unknown")))

	// Prices and caps grow with rank.
	for i := 1; i < len(ents); i++ {
		assert.True(t, ents[i].MonthlyPrice.GreaterThan(ents[i-1].MonthlyPrice))
		for _, m := range usage.Metrics {
			assert.Greater(t, ents[i].Limit(m), ents[i-1].Limit(m), m)
		}
	}
}

func TestPlanEntitlement_Validate(t *testing.T) {
	t.Parallel()

	base := subscription.DefaultEntitlements("BRL")[1]

	tests := []struct {
		name   string
		mutate func(e *subscription.PlanEntitlement)
	}{
		{"unknown tier", func(e *subscription.PlanEntitlement) { e.Tier = "C4" }},
		{"negative price", func(e *subscription.PlanEntitlement) { e.MonthlyPrice = decimal.NewFromInt(-1) }},
		{"bad currency", func(e *subscription.PlanEntitlement) { e.Currency = "REAL" }},
		{"negative cap", func(e *subscription.PlanEntitlement) { e.Plugins = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			assert.ErrorIs(t, e.Validate(), subscription.ErrInvalidEntitlement)
		})
	}

	t.Run("unlimited cap is valid", func(t *testing.T) {
		e := base
		e.APICallsMonth = subscription.Unlimited
		assert.NoError(t, e.Validate())
	})
}

func TestMergeEntitlementsYAML(t *testing.T) {
	t.Parallel()

	base := subscription.DefaultEntitlements("BRL")

	t.Run("overlays present fields only", func(t *testing.T) {
		doc := `
plans:
  - tier: c2
    monthly_price: "279.00"
    orders_month: 4000
  - tier: C3
    api_calls_month: -1
`
		got, err := subscription.MergeEntitlementsYAML(base, strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, got, 3)

		c2 := got[1]
		assert.True(t, decimal.RequireFromString("279").Equal(c2.MonthlyPrice))
		assert.EqualValues(t, 4000, c2.OrdersMonth)
		assert.EqualValues(t, 100_000, c2.APICallsMonth)
		assert.Equal(t, "Profissional", c2.Name)
		assert.Equal(t, subscription.Unlimited, got[2].APICallsMonth)

		// base is untouched
		assert.EqualValues(t, 3000, base[1].OrdersMonth)
	})

	t.Run("document currency applies to listed plans", func(t *testing.T) {
		doc := "currency: USD\nplans:\n  - tier: C1\n    monthly_price: \"19.00\"\n"
		got, err := subscription.MergeEntitlementsYAML(base, strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, "USD", got[0].Currency)
		assert.Equal(t, "BRL", got[1].Currency)
	})

	t.Run("empty document", func(t *testing.T) {
		got, err := subscription.MergeEntitlementsYAML(base, strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := subscription.MergeEntitlementsYAML(base, strings.NewReader("plans:\n  - tier: GOLD\n"))
		assert.ErrorIs(t, err, subscription.ErrFailedToLoadCatalog)
		assert.ErrorIs(t, err, subscription.ErrInvalidTier)
	})

	t.Run("bad price", func(t *testing.T) {
		_, err := subscription.MergeEntitlementsYAML(base, strings.NewReader("plans:\n  - tier: C1\n    monthly_price: cheap\n"))
		assert.ErrorIs(t, err, subscription.ErrFailedToLoadCatalog)
	})
}

func TestLoadEntitlementsFile(t *testing.T) {
	t.Parallel()

	base := subscription.DefaultEntitlements("BRL")

	got, err := subscription.LoadEntitlementsFile(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans:\n  - tier: C1\n    branches: 2\n"), 0o600))

	got, err = subscription.LoadEntitlementsFile(base, path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got[0].Branches)

	_, err = subscription.LoadEntitlementsFile(base, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, subscription.ErrFailedToLoadCatalog)
}

func TestSeedCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		cat := subscription.NewMemoryCatalog()
		ents := subscription.DefaultEntitlements("BRL")

		require.NoError(t, subscription.SeedCatalog(ctx, cat, ents))
		first, err := cat.List(ctx)
		require.NoError(t, err)

		require.NoError(t, subscription.SeedCatalog(ctx, cat, ents))
		second, err := cat.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, second, 3)
	})

	t.Run("missing tier", func(t *testing.T) {
		cat := subscription.NewMemoryCatalog()
		err := subscription.SeedCatalog(ctx, cat, subscription.DefaultEntitlements("BRL")[:2])
		assert.ErrorIs(t, err, subscription.ErrInvalidCatalog)
	})

	t.Run("invalid entitlement", func(t *testing.T) {
		ents := subscription.DefaultEntitlements("BRL")
		ents[0].Currency = "??"
		err := subscription.SeedCatalog(ctx, subscription.NewMemoryCatalog(), ents)
		assert.ErrorIs(t, err, subscription.ErrInvalidEntitlement)
	})
}

func TestPostgresCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	columns := []string{"tier", "name", "monthly_price", "currency", "orders_month", "api_calls_month",
		"storage_gb", "plugins", "branches", "admin_users", "slo", "support"}

	t.Run("get", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT .+ FROM plan_entitlements WHERE tier = \\$1").
			WithArgs(subscription.TierC2).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("C2", "Profissional", "249.00", "BRL", 3000, 100000, 50, 10, 3, 5, "99.7%", "chat"))

		e, err := subscription.NewPostgresCatalog(db).Get(ctx, subscription.TierC2)
		require.NoError(t, err)
		assert.Equal(t, subscription.TierC2, e.Tier)
		assert.True(t, decimal.RequireFromString("249").Equal(e.MonthlyPrice))
		assert.EqualValues(t, 3000, e.OrdersMonth)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get missing tier", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM plan_entitlements").WillReturnRows(sqlmock.NewRows(columns))

		_, err = subscription.NewPostgresCatalog(db).Get(ctx, subscription.TierC3)
		assert.ErrorIs(t, err, subscription.ErrInvalidCatalog)
	})

	t.Run("upsert in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		for range 3 {
			mock.ExpectExec("INSERT INTO plan_entitlements .+ ON CONFLICT \\(tier\\) DO UPDATE").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		require.NoError(t, subscription.NewPostgresCatalog(db).Upsert(ctx, subscription.DefaultEntitlements("BRL")...))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert rolls back on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO plan_entitlements").WillReturnError(errors.New("constraint"))
		mock.ExpectRollback()

		err = subscription.NewPostgresCatalog(db).Upsert(ctx, subscription.DefaultEntitlements("BRL")...)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
