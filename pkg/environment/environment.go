package environment

import (
	"fmt"
	"strings"
)

// Environment names the deployment the service runs in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

var aliases = map[string]Environment{
	"dev":         Development,
	"development": Development,
	"local":       Development,
	"stage":       Staging,
	"staging":     Staging,
	"prod":        Production,
	"production":  Production,
}

// Parse accepts canonical names and their short forms, case-insensitively.
func Parse(s string) (Environment, error) {
	if env, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return env, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, s)
}

// UnmarshalText lets env tags parse APP_ENV directly.
func (e *Environment) UnmarshalText(text []byte) error {
	env, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = env
	return nil
}

func (e Environment) IsProduction() bool  { return e == Production }
func (e Environment) IsDevelopment() bool { return e == Development }
func (e Environment) String() string      { return string(e) }
