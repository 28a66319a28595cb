package tenant

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantplans/pkg/scopes"
)

// APIKeyHeader carries developer API keys in the form <prefix>_<secret>.
const APIKeyHeader = "X-API-Key"

// Resolver extracts the caller identity from a request.
// It returns nil, nil when the request carries no credentials it understands.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// ResolverFunc is an adapter to allow ordinary functions as resolvers.
type ResolverFunc func(r *http.Request) (*Identity, error)

func (f ResolverFunc) Resolve(r *http.Request) (*Identity, error) {
	return f(r)
}

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	// Scope is a space-separated list, as in OAuth2.
	Scope string `json:"scope,omitempty"`
}

// BearerResolver validates HS256 tokens from the Authorization header.
type BearerResolver struct {
	secret []byte
	dir    Directory
}

// NewBearerResolver verifies HS256 tokens with secret and loads the tenant
// named by the tenant_id claim from dir.
func NewBearerResolver(secret []byte, dir Directory) *BearerResolver {
	if len(secret) == 0 {
		panic("tenant: bearer secret is required")
	}
	return &BearerResolver{secret: secret, dir: dir}
}

// Resolve returns nil, nil when no bearer token is present.
func (b *BearerResolver) Resolve(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, nil
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant_id claim", ErrInvalidToken)
	}
	t, err := activeTenant(r, b.dir, id)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Tenant: t,
		Actor:  claims.Subject,
		Source: SourceBearer,
		Scopes: scopes.Parse(claims.Scope),
	}, nil
}

// APIKeyResolver authenticates developer API keys.
type APIKeyResolver struct {
	dir Directory
}

// NewAPIKeyResolver looks keys up by prefix in dir.
func NewAPIKeyResolver(dir Directory) *APIKeyResolver {
	return &APIKeyResolver{dir: dir}
}

func (a *APIKeyResolver) Resolve(r *http.Request) (*Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if raw == "" {
		return nil, nil
	}
	prefix, secret, ok := strings.Cut(raw, "_")
	if !ok || prefix == "" || secret == "" {
		return nil, ErrInvalidAPIKey
	}

	key, err := a.dir.APIKey(r.Context(), prefix)
	if err != nil {
		return nil, err
	}
	if key.RevokedAt != nil || subtle.ConstantTimeCompare(key.SecretHash, HashSecret(secret)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	t, err := activeTenant(r, a.dir, key.TenantID)
	if err != nil {
		return nil, err
	}
	return &Identity{Tenant: t, Actor: "apikey:" + key.Prefix, Source: SourceAPIKey}, nil
}

// SingleTenantResolver resolves every request to one tenant.
type SingleTenantResolver struct {
	id  uuid.UUID
	dir Directory
}

// NewSingleTenantResolver always resolves to tenant id.
func NewSingleTenantResolver(id uuid.UUID, dir Directory) *SingleTenantResolver {
	return &SingleTenantResolver{id: id, dir: dir}
}

func (s *SingleTenantResolver) Resolve(r *http.Request) (*Identity, error) {
	t, err := activeTenant(r, s.dir, s.id)
	if err != nil {
		return nil, err
	}
	return &Identity{Tenant: t, Actor: "anonymous", Source: SourceSingleTenant}, nil
}

// CompositeResolver tries resolvers in order. The first identity wins and the
// first error stops the chain.
type CompositeResolver struct {
	resolvers []Resolver
}

// NewCompositeResolver tries resolvers in order.
func NewCompositeResolver(resolvers ...Resolver) *CompositeResolver {
	return &CompositeResolver{resolvers: resolvers}
}

// Resolve returns the first identity found. An error stops the chain.
func (c *CompositeResolver) Resolve(r *http.Request) (*Identity, error) {
	for _, res := range c.resolvers {
		id, err := res.Resolve(r)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, nil
}

func activeTenant(r *http.Request, dir Directory, id uuid.UUID) (*Tenant, error) {
	t, err := dir.ByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, ErrInactiveTenant
	}
	return t, nil
}
