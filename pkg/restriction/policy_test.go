package restriction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
)

func TestPolicy(t *testing.T) {
	t.Parallel()

	t.Run("catalog only", func(t *testing.T) {
		t.Parallel()

		c := restriction.Policy(restriction.VariantCatalogOnly)
		assert.True(t, c.KeepsData)
		assert.False(t, c.BasicSalesAllowed)
		assert.Equal(t, restriction.StorefrontCatalogOnly, c.StorefrontMode)
		assert.True(t, c.Blocks(restriction.ActionStorefrontCheckout))
		assert.True(t, c.Blocks(restriction.ActionPluginInstall))
		assert.Equal(t, 30, c.DeveloperAPILimitPerMinute)
	})

	t.Run("allow basic sales", func(t *testing.T) {
		t.Parallel()

		c := restriction.Policy(restriction.VariantAllowBasicSales)
		assert.True(t, c.KeepsData)
		assert.True(t, c.BasicSalesAllowed)
		assert.Equal(t, restriction.StorefrontBasicSales, c.StorefrontMode)
		assert.False(t, c.Blocks(restriction.ActionStorefrontCheckout))
		for _, a := range []string{
			restriction.ActionPremiumFeatures,
			restriction.ActionPluginInstall,
			restriction.ActionBranchCreate,
			restriction.ActionAdvancedIntegrations,
			restriction.ActionMarketingAutomation,
			restriction.ActionIntegrationWriteSync,
		} {
			assert.True(t, c.Blocks(a), a)
		}
		assert.Contains(t, c.DegradedActions, restriction.ActionDeveloperAPIRateLimit)
	})

	t.Run("unknown variant falls back", func(t *testing.T) {
		t.Parallel()

		c := restriction.Policy("WHATEVER")
		assert.Equal(t, restriction.DefaultVariant, c.Variant)
	})
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	v, err := restriction.ParseVariant("allow_basic_sales")
	require.NoError(t, err)
	assert.Equal(t, restriction.VariantAllowBasicSales, v)

	v, err = restriction.ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, restriction.VariantCatalogOnly, v)

	_, err = restriction.ParseVariant("full")
	assert.ErrorIs(t, err, restriction.ErrInvalidVariant)
}
