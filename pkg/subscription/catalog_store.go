package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MemoryCatalog keeps entitlements in memory.
type MemoryCatalog struct {
	mu   sync.RWMutex
	byID map[Tier]PlanEntitlement
}

// NewMemoryCatalog creates a catalog pre-filled with entitlements.
func NewMemoryCatalog(entitlements ...PlanEntitlement) *MemoryCatalog {
	c := &MemoryCatalog{byID: make(map[Tier]PlanEntitlement)}
	for _, e := range entitlements {
		c.byID[e.Tier] = e
	}
	return c
}

func (c *MemoryCatalog) Get(_ context.Context, tier Tier) (PlanEntitlement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[tier]
	if !ok {
		return PlanEntitlement{}, fmt.Errorf("%w: %s", ErrInvalidCatalog, tier)
	}
	return e, nil
}

// List returns entitlements ordered by tier rank.
func (c *MemoryCatalog) List(_ context.Context) ([]PlanEntitlement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]PlanEntitlement, 0, len(c.byID))
	for _, e := range c.byID {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b PlanEntitlement) int { return a.Tier.Rank() - b.Tier.Rank() })
	return out, nil
}

func (c *MemoryCatalog) Upsert(_ context.Context, entitlements ...PlanEntitlement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entitlements {
		c.byID[e.Tier] = e
	}
	return nil
}

const (
	entitlementColumns = `tier, name, monthly_price, currency, orders_month, api_calls_month, storage_gb,
plugins, branches, admin_users, slo, support`
	getEntitlementQuery    = `SELECT ` + entitlementColumns + ` FROM plan_entitlements WHERE tier = $1`
	listEntitlementsQuery  = `SELECT ` + entitlementColumns + ` FROM plan_entitlements ORDER BY tier`
	upsertEntitlementQuery = `INSERT INTO plan_entitlements (` + entitlementColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (tier) DO UPDATE SET
	name = EXCLUDED.name,
	monthly_price = EXCLUDED.monthly_price,
	currency = EXCLUDED.currency,
	orders_month = EXCLUDED.orders_month,
	api_calls_month = EXCLUDED.api_calls_month,
	storage_gb = EXCLUDED.storage_gb,
	plugins = EXCLUDED.plugins,
	branches = EXCLUDED.branches,
	admin_users = EXCLUDED.admin_users,
	slo = EXCLUDED.slo,
	support = EXCLUDED.support,
	updated_at = now()`
)

// PostgresCatalog reads and seeds the plan_entitlements table.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog panics when db is nil.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	if db == nil {
		panic("subscription: db is required")
	}
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) Get(ctx context.Context, tier Tier) (PlanEntitlement, error) {
	e, err := scanEntitlement(c.db.QueryRowContext(ctx, getEntitlementQuery, tier))
	if errors.Is(err, sql.ErrNoRows) {
		return PlanEntitlement{}, fmt.Errorf("%w: %s", ErrInvalidCatalog, tier)
	}
	if err != nil {
		return PlanEntitlement{}, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return e, nil
}

func (c *PostgresCatalog) List(ctx context.Context) ([]PlanEntitlement, error) {
	rows, err := c.db.QueryContext(ctx, listEntitlementsQuery)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	defer rows.Close()

	var out []PlanEntitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadCatalog, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return out, nil
}

// Upsert writes all entitlements in one transaction.
func (c *PostgresCatalog) Upsert(ctx context.Context, entitlements ...PlanEntitlement) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range entitlements {
		if _, err := tx.ExecContext(ctx, upsertEntitlementQuery,
			e.Tier, e.Name, e.MonthlyPrice, e.Currency, e.OrdersMonth, e.APICallsMonth, e.StorageGB,
			e.Plugins, e.Branches, e.AdminUsers, e.SLO, e.Support,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func scanEntitlement(row rowScanner) (PlanEntitlement, error) {
	var e PlanEntitlement
	err := row.Scan(&e.Tier, &e.Name, &e.MonthlyPrice, &e.Currency, &e.OrdersMonth, &e.APICallsMonth,
		&e.StorageGB, &e.Plugins, &e.Branches, &e.AdminUsers, &e.SLO, &e.Support)
	return e, err
}
