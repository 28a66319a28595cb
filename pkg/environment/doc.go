// Package environment parses the deployment environment from configuration.
//
//	type Config struct {
//		Env environment.Environment `env:"APP_ENV" envDefault:"development"`
//	}
//
// Short forms such as "prod" and "dev" are accepted and normalized.
package environment
