package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when a tenant cannot be found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInactiveTenant is returned when the tenant is deactivated.
	ErrInactiveTenant = errors.New("tenant is inactive")

	// ErrInvalidToken is returned for malformed, expired or badly signed bearer tokens.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrInvalidAPIKey is returned for malformed, unknown or revoked API keys.
	ErrInvalidAPIKey = errors.New("invalid api key")

	// ErrNoIdentity is returned when a handler requires an identity and none was resolved.
	ErrNoIdentity = errors.New("no tenant identity in context")

	// ErrMissingScope is returned when the identity lacks a required scope.
	ErrMissingScope = errors.New("identity lacks required scope")

	// ErrDirectoryFailure wraps storage errors from a Directory.
	ErrDirectoryFailure = errors.New("tenant directory failure")
)
