package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrEnvFile is returned when an explicitly requested .env file cannot be read.
	ErrEnvFile = errors.New("failed to load env file")

	// ErrInvalidConfig wraps errors returned by a config's Validate method.
	ErrInvalidConfig = errors.New("invalid configuration")
)
