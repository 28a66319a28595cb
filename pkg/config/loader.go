package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configs that check themselves after parsing.
type Validator interface {
	Validate() error
}

type options struct {
	envFiles    []string
	prefix      string
	environment map[string]string
}

// Option configures Load.
type Option func(*options)

// WithEnvFiles loads the given .env files before parsing. Missing files are
// an error, unlike the default ".env" which is optional.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// WithPrefix prepends prefix to every env key of the struct.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvironment parses from vars instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) {
		o.environment = vars
	}
}

var defaultEnvLoaded sync.Once

// Load parses environment variables into a new T. Nested structs use their
// own env tags, so infrastructure configs can be embedded as-is:
//
//	type Config struct {
//		Postgres pg.Config
//		Redis    redis.Config
//		Timezone string `env:"BILLING_TIMEZONE" envDefault:"America/Sao_Paulo"`
//	}
//
//	cfg, err := config.Load[Config]()
//
// If T implements Validator, Validate runs after parsing.
func Load[T any](opts ...Option) (T, error) {
	var (
		cfg T
		o   options
	)
	for _, opt := range opts {
		opt(&o)
	}

	if o.environment == nil {
		defaultEnvLoaded.Do(func() {
			// the default .env is optional
			_ = godotenv.Load()
		})
		if len(o.envFiles) > 0 {
			if err := godotenv.Load(o.envFiles...); err != nil {
				return cfg, errors.Join(ErrEnvFile, err)
			}
		}
	}

	envOpts := env.Options{Prefix: o.prefix}
	if o.environment != nil {
		envOpts.Environment = o.environment
	} else {
		envOpts.Environment = env.ToMap(os.Environ())
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}

	if v, ok := any(&cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error. Use it in main.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
