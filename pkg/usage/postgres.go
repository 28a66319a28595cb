package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const selectSnapshotQuery = `SELECT orders_month, api_calls_month, storage_gb, plugins, branches, admin_users
FROM usage_counters
WHERE tenant_id = $1 AND period_key = $2`

// PostgresProvider reads the usage_counters table.
type PostgresProvider struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresProvider creates a provider bucketing periods in loc.
func NewPostgresProvider(db *sql.DB, loc *time.Location) *PostgresProvider {
	if db == nil {
		panic("usage: db is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresProvider{db: db, loc: loc}
}

// Snapshot reads the counters row for the period containing at. A missing
// row is an all-zero snapshot.
func (p *PostgresProvider) Snapshot(ctx context.Context, tenantID uuid.UUID, at time.Time) (Snapshot, error) {
	s := Snapshot{TenantID: tenantID, PeriodKey: PeriodKey(at, p.loc)}

	err := p.db.QueryRowContext(ctx, selectSnapshotQuery, tenantID, s.PeriodKey).Scan(
		&s.OrdersMonth,
		&s.APICalls,
		&s.StorageGB,
		&s.Plugins,
		&s.Branches,
		&s.AdminUsers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return Snapshot{}, errors.Join(ErrSnapshotFailed, err)
	}
	return s, nil
}
