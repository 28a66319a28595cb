package pg

import "time"

// Config configures the Postgres pool and migrations.
type Config struct {
	URL               string        `env:"DATABASE_URL,required"`
	MaxConns          int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"2s"`

	// AutoMigrate applies embedded migrations at startup.
	AutoMigrate     bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
	MigrationsTable string `env:"DATABASE_MIGRATIONS_TABLE" envDefault:"goose_db_version"`
}
