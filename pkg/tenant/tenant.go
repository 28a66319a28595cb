package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
	"github.com/dmitrymomot/tenantplans/pkg/scopes"
)

// Tenant is the minimal tenant view needed for enforcement.
type Tenant struct {
	ID     uuid.UUID `json:"id"`
	Slug   string    `json:"slug"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
	// Variant is the restricted-mode variant chosen for this tenant.
	Variant   restriction.Variant `json:"restrictedVariant"`
	CreatedAt time.Time           `json:"created_at"`
}

// RestrictedVariant returns Variant, or the default when unset.
func (t *Tenant) RestrictedVariant() restriction.Variant {
	if t == nil || !t.Variant.Valid() {
		return restriction.DefaultVariant
	}
	return t.Variant
}

// Source tells how an identity was resolved.
type Source string

const (
	SourceBearer       Source = "bearer"
	SourceAPIKey       Source = "api_key"
	SourceSingleTenant Source = "single_tenant"
)

// Identity is the resolved caller of a request.
type Identity struct {
	Tenant *Tenant
	// Actor is the user id from the token subject, or "apikey:<prefix>".
	Actor  string
	Source Source
	// Scopes granted by the token. API keys and the single-tenant fallback carry none.
	Scopes []string
}

// TenantID returns the tenant id, or uuid.Nil.
func (i *Identity) TenantID() uuid.UUID {
	if i == nil || i.Tenant == nil {
		return uuid.Nil
	}
	return i.Tenant.ID
}

// HasScope reports whether the identity was granted scope. A granted "*"
// matches everything and "billing:*" matches any "billing:" scope.
func (i *Identity) HasScope(scope string) bool {
	if i == nil {
		return false
	}
	return scopes.Has(i.Scopes, scope)
}

// APIKey is a developer API key. Only the SHA-256 of the secret is stored.
type APIKey struct {
	Prefix     string
	TenantID   uuid.UUID
	SecretHash []byte
	RevokedAt  *time.Time
}

// Directory loads tenants and their API keys.
type Directory interface {
	// ByID returns ErrTenantNotFound for unknown tenants.
	ByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// APIKey returns ErrInvalidAPIKey for unknown prefixes.
	APIKey(ctx context.Context, prefix string) (*APIKey, error)
}
