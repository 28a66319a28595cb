package tenant

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
)

// HashSecret returns the stored form of an API key secret.
func HashSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// MemoryDirectory is a Directory backed by maps. Useful for tests and
// single-tenant installs.
type MemoryDirectory struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*Tenant
	keys    map[string]*APIKey
}

// NewMemoryDirectory returns a directory holding tenants.
func NewMemoryDirectory(tenants ...*Tenant) *MemoryDirectory {
	d := &MemoryDirectory{
		tenants: make(map[uuid.UUID]*Tenant),
		keys:    make(map[string]*APIKey),
	}
	for _, t := range tenants {
		d.tenants[t.ID] = t
	}
	return d
}

// Put adds or replaces a tenant.
func (d *MemoryDirectory) Put(t *Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants[t.ID] = t
}

// AddAPIKey registers a key with the given prefix and plaintext secret.
func (d *MemoryDirectory) AddAPIKey(tenantID uuid.UUID, prefix, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[prefix] = &APIKey{Prefix: prefix, TenantID: tenantID, SecretHash: HashSecret(secret)}
}

func (d *MemoryDirectory) ByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	c := *t
	return &c, nil
}

func (d *MemoryDirectory) APIKey(_ context.Context, prefix string) (*APIKey, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	k, ok := d.keys[prefix]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	c := *k
	return &c, nil
}

const (
	tenantByIDQuery = `SELECT id, slug, name, active, restricted_variant, created_at
FROM tenants WHERE id = $1`
	apiKeyQuery = `SELECT prefix, tenant_id, secret_hash, revoked_at
FROM tenant_api_keys WHERE prefix = $1`
)

// PostgresDirectory reads the tenants and tenant_api_keys tables.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory panics when db is nil.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	if db == nil {
		panic("tenant: db is required")
	}
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) ByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var (
		t       Tenant
		variant sql.NullString
	)
	err := d.db.QueryRowContext(ctx, tenantByIDQuery, id).
		Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &variant, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrDirectoryFailure, err)
	}
	if variant.Valid {
		t.Variant = restriction.Variant(variant.String)
	}
	return &t, nil
}

func (d *PostgresDirectory) APIKey(ctx context.Context, prefix string) (*APIKey, error) {
	var (
		k       APIKey
		revoked sql.NullTime
	)
	err := d.db.QueryRowContext(ctx, apiKeyQuery, prefix).
		Scan(&k.Prefix, &k.TenantID, &k.SecretHash, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, errors.Join(ErrDirectoryFailure, err)
	}
	if revoked.Valid {
		at := revoked.Time.UTC()
		k.RevokedAt = &at
	}
	return &k, nil
}

// CachedDirectory caches tenant lookups in an expiring LRU. API keys are not
// cached so revocation takes effect immediately.
type CachedDirectory struct {
	next  Directory
	cache *expirable.LRU[uuid.UUID, *Tenant]
}

// NewCachedDirectory wraps next. size <= 0 defaults to 1000 entries and
// ttl <= 0 to five minutes.
func NewCachedDirectory(next Directory, size int, ttl time.Duration) *CachedDirectory {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[uuid.UUID, *Tenant](size, nil, ttl),
	}
}

// ByID serves from cache. Lookup errors are not cached.
func (d *CachedDirectory) ByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	if t, ok := d.cache.Get(id); ok {
		c := *t
		return &c, nil
	}
	t, err := d.next.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *t
	d.cache.Add(id, &c)
	return t, nil
}

func (d *CachedDirectory) APIKey(ctx context.Context, prefix string) (*APIKey, error) {
	return d.next.APIKey(ctx, prefix)
}

// Invalidate drops a cached tenant.
func (d *CachedDirectory) Invalidate(id uuid.UUID) {
	d.cache.Remove(id)
}
