package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/config"
	"github.com/dmitrymomot/tenantplans/pkg/environment"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/billing",
		"JWT_SECRET":   "dev-secret",
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load[Config](config.WithEnvironment(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, environment.Development, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "@hourly", cfg.ApplyDueSchedule)
	assert.Equal(t, 15*time.Second, cfg.StatusCacheTTL)
	assert.Equal(t, []string{"X-Forwarded-For"}, cfg.TrustedIPHeaders)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.OpenSearch.Enabled())
	assert.Equal(t, uuid.Nil, cfg.SingleTenantID)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "postgres", cfg.AuditBackend)
}

func TestConfigOverrides(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	vars := baseEnv()
	vars["APP_ENV"] = "prod"
	vars["JWT_SECRET"] = "0123456789abcdef0123456789abcdef"
	vars["SINGLE_TENANT_ID"] = id.String()
	vars["BILLING_TIMEZONE"] = "UTC"
	vars["GUARD_CACHE_BACKEND"] = "redis"
	vars["AUDIT_BACKEND"] = "both"
	vars["REDIS_URL"] = "redis://localhost:6379/0"
	vars["OPENSEARCH_ADDRESSES"] = "http://a:9200,http://b:9200"

	cfg, err := config.Load[Config](config.WithEnvironment(vars))
	require.NoError(t, err)

	assert.True(t, cfg.Env.IsProduction())
	assert.Equal(t, id, cfg.SingleTenantID)
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.OpenSearch.Addresses)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"short production secret":  {"APP_ENV": "production"},
		"unknown time zone":        {"BILLING_TIMEZONE": "Mars/Olympus"},
		"zero trial":               {"BILLING_TRIAL_DAYS": "0"},
		"unknown environment":      {"APP_ENV": "qa"},
		"redis cache without url":  {"GUARD_CACHE_BACKEND": "redis"},
		"opensearch without hosts": {"AUDIT_BACKEND": "opensearch"},
		"unknown audit backend":    {"AUDIT_BACKEND": "mongo"},
	}
	for name, extra := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			vars := baseEnv()
			for k, v := range extra {
				vars[k] = v
			}
			_, err := config.Load[Config](config.WithEnvironment(vars))
			assert.Error(t, err)
		})
	}

	t.Run("missing secret", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load[Config](config.WithEnvironment(map[string]string{"DATABASE_URL": "postgres://x"}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
