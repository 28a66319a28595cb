package scopes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tenantplans/pkg/scopes"
)

func TestParse(t *testing.T) {
	t.Parallel()

	assert.Nil(t, scopes.Parse(""))
	assert.Nil(t, scopes.Parse("   "))
	assert.Equal(t, []string{"billing:read", "reports:read"}, scopes.Parse(" billing:read  reports:read billing:read "))
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scope, pattern string
		want           bool
	}{
		{"billing:read", "billing:read", true},
		{"billing:read", "*", true},
		{"billing:operator", "billing:*", true},
		{"billing", "billing:*", false},
		{"billingx:read", "billing:*", false},
		{"billing:read", "billing:write", false},
		{"billing:read", "bill*", false},
	}
	for _, tt := range tests {
		t.Run(tt.scope+"/"+tt.pattern, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scopes.Matches(tt.scope, tt.pattern))
		})
	}
}

func TestHasAll(t *testing.T) {
	t.Parallel()

	granted := []string{"billing:*", "reports:read"}
	assert.True(t, scopes.Has(granted, "billing:operator"))
	assert.False(t, scopes.Has(nil, "billing:read"))
	assert.True(t, scopes.HasAll(granted, []string{"billing:read", "reports:read"}))
	assert.False(t, scopes.HasAll(granted, []string{"billing:read", "reports:write"}))
	assert.True(t, scopes.HasAll(nil, nil))
}
