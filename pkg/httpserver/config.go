package httpserver

import "time"

// Config holds listener and timeout settings loaded from HTTP_* variables.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// NewFromConfig creates a Server from cfg. Zero values keep the defaults and
// explicit opts win over cfg.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	base := []Option{}
	if cfg.Addr != "" {
		base = append(base, WithAddr(cfg.Addr))
	}
	base = append(base, func(c *config) {
		c.readTimeout = orDefault(cfg.ReadTimeout, c.readTimeout)
		c.readHeaderTimeout = orDefault(cfg.ReadHeaderTimeout, c.readHeaderTimeout)
		c.writeTimeout = orDefault(cfg.WriteTimeout, c.writeTimeout)
		c.idleTimeout = orDefault(cfg.IdleTimeout, c.idleTimeout)
		c.shutdownTimeout = orDefault(cfg.ShutdownTimeout, c.shutdownTimeout)
	})
	return New(append(base, opts...)...)
}

func orDefault(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
