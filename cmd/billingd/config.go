package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/environment"
	"github.com/dmitrymomot/tenantplans/pkg/httpserver"
	"github.com/dmitrymomot/tenantplans/pkg/opensearch"
	"github.com/dmitrymomot/tenantplans/pkg/pg"
	"github.com/dmitrymomot/tenantplans/pkg/redis"
)

const serviceName = "billingd"

const (
	cacheMemory = "memory"
	cacheRedis  = "redis"

	auditPostgres   = "postgres"
	auditOpenSearch = "opensearch"
	auditBoth       = "both"
)

type Config struct {
	Env        environment.Environment `env:"APP_ENV" envDefault:"development"`
	HTTP       httpserver.Config
	Database   pg.Config
	Redis      redis.Config
	OpenSearch opensearch.Config

	JWTSecret string `env:"JWT_SECRET,required"`

	// SingleTenantID enables the single-tenant fallback for anonymous
	// checkout requests.
	SingleTenantID   uuid.UUID `env:"SINGLE_TENANT_ID"`
	TrustedIPHeaders []string  `env:"TRUSTED_IP_HEADERS" envSeparator:"," envDefault:"X-Forwarded-For"`

	Currency         string        `env:"BILLING_CURRENCY" envDefault:"BRL"`
	TimeZone         string        `env:"BILLING_TIMEZONE" envDefault:"America/Sao_Paulo"`
	TrialDays        int           `env:"BILLING_TRIAL_DAYS" envDefault:"30"`
	GraceDays        int           `env:"BILLING_GRACE_DAYS" envDefault:"7"`
	CatalogFile      string        `env:"PLAN_CATALOG_FILE"`
	RouteRulesFile   string        `env:"ROUTE_RULES_FILE"`
	ApplyDueSchedule string        `env:"BILLING_SCHEDULE" envDefault:"@hourly"`
	ApplyDueTimeout  time.Duration `env:"BILLING_SCHEDULE_TIMEOUT" envDefault:"10m"`

	CacheBackend      string        `env:"GUARD_CACHE_BACKEND" envDefault:"memory"`
	AuditBackend      string        `env:"AUDIT_BACKEND" envDefault:"postgres"`
	StatusCacheTTL    time.Duration `env:"GUARD_STATUS_TTL" envDefault:"15s"`
	DirectoryCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	MetricsNamespace  string        `env:"METRICS_NAMESPACE" envDefault:"tenantplans"`

	location *time.Location
}

func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("BILLING_TIMEZONE: %w", err)
	}
	c.location = loc

	var errs []error
	if c.Env.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	switch c.CacheBackend {
	case cacheMemory:
	case cacheRedis:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("GUARD_CACHE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("GUARD_CACHE_BACKEND: unknown backend %q", c.CacheBackend))
	}
	switch c.AuditBackend {
	case auditPostgres:
	case auditOpenSearch, auditBoth:
		if !c.OpenSearch.Enabled() {
			errs = append(errs, fmt.Errorf("AUDIT_BACKEND=%s requires OPENSEARCH_ADDRESSES", c.AuditBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("AUDIT_BACKEND: unknown backend %q", c.AuditBackend))
	}
	if c.TrialDays < 1 {
		errs = append(errs, errors.New("BILLING_TRIAL_DAYS must be positive"))
	}
	if c.GraceDays < 1 {
		errs = append(errs, errors.New("BILLING_GRACE_DAYS must be positive"))
	}
	return errors.Join(errs...)
}

// Location is the billing time zone, valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
