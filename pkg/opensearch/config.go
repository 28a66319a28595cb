package opensearch

// Config holds the OpenSearch connection used as an optional audit sink.
// No addresses means the sink is disabled.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	AuditIndex   string   `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"access-audit"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
}

// Enabled reports whether at least one address is configured.
func (c Config) Enabled() bool {
	return len(c.Addresses) > 0
}
