package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, tenant_id, status, current_tier, next_tier, current_period_start, current_period_end,
trial_end_at, grace_end_at, cancel_at_period_end, cancelled_at, soft_limited, soft_limit_reason, soft_limit_snapshot,
created_at, updated_at`

const (
	getSubscriptionQuery      = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1`
	getSubscriptionForUpdateQ = getSubscriptionQuery + ` FOR UPDATE`
	listDueSubscriptionsQuery = `SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE current_period_end <= $1 AND status <> 'CANCELLED' AND (next_tier IS NOT NULL OR cancel_at_period_end)
AND (current_period_end, id) > ($2, $3)
ORDER BY current_period_end, id
LIMIT $4`
	insertSubscriptionQuery = `INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (tenant_id) DO NOTHING`
	updateSubscriptionQuery = `UPDATE subscriptions SET status = $2, current_tier = $3, next_tier = $4,
current_period_start = $5, current_period_end = $6, trial_end_at = $7, grace_end_at = $8,
cancel_at_period_end = $9, cancelled_at = $10, soft_limited = $11, soft_limit_reason = $12,
soft_limit_snapshot = $13, updated_at = $14
WHERE id = $1`
	applyCancellationQuery = `UPDATE subscriptions SET status = 'CANCELLED', updated_at = $2
WHERE id = $1 AND cancel_at_period_end AND status <> 'CANCELLED'`
	applyDowngradeQuery = `UPDATE subscriptions SET current_tier = $2, next_tier = NULL,
current_period_start = $4, current_period_end = $5, soft_limited = $6, soft_limit_reason = $7,
soft_limit_snapshot = $8, updated_at = $3
WHERE id = $1 AND next_tier = $2 AND current_period_end <= $3`
	updateStatusQuery = `UPDATE subscriptions SET status = $3, grace_end_at = $4, updated_at = $5
WHERE id = $1 AND status = $2`
	insertInvoiceQuery = `INSERT INTO proration_invoices (id, tenant_id, subscription_id, from_tier, to_tier,
period_start, period_end, effective_at, remaining_ratio, currency, subtotal, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	insertInvoiceItemQuery = `INSERT INTO proration_invoice_items (invoice_id, kind, description, amount)
VALUES ($1, $2, $3, $4)`
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on top of database/sql.
// Use pg.OpenDB to obtain a *sql.DB backed by a pgx pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore panics when db is nil.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("subscription: db is required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return getSubscription(ctx, s.db, getSubscriptionQuery, tenantID)
}

// Create relies on the unique tenant_id constraint, so concurrent
// provisioning inserts one row.
func (s *PostgresStore) Create(ctx context.Context, sub *Subscription) (bool, error) {
	snap, err := marshalSnapshot(sub.SoftLimitSnapshot)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, insertSubscriptionQuery,
		sub.ID, sub.TenantID, sub.Status, sub.CurrentTier, nullTier(sub.NextTier),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndAt, sub.GraceEndAt,
		sub.CancelAtPeriodEnd, sub.CancelledAt, sub.SoftLimited, sub.SoftLimitReason, snap,
		sub.CreatedAt, sub.UpdatedAt,
	)
	return affected(res, err)
}

// ListDue pages through due rows by (current_period_end, id). A non-positive
// limit reads 500 rows.
func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]*Subscription, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, listDueSubscriptionsQuery, now, after.PeriodEnd, after.ID, limit)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return out, nil
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if err := fn(&postgresTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *PostgresStore) ApplyCancellation(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx, applyCancellationQuery, id, now))
}

func (s *PostgresStore) ApplyDowngrade(ctx context.Context, upd DowngradeUpdate) (bool, error) {
	snap, err := marshalSnapshot(upd.Verdict.Snapshot)
	if err != nil {
		return false, err
	}
	return affected(s.db.ExecContext(ctx, applyDowngradeQuery,
		upd.ID, upd.TargetTier, upd.Now, upd.PeriodStart, upd.PeriodEnd,
		upd.Verdict.SoftLimited, upd.Verdict.Reason, snap,
	))
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error) {
	return affected(s.db.ExecContext(ctx, updateStatusQuery, upd.ID, upd.From, upd.To, upd.GraceEndAt, upd.Now))
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) GetForUpdate(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return getSubscription(ctx, t.tx, getSubscriptionForUpdateQ, tenantID)
}

func (t *postgresTx) Update(ctx context.Context, sub *Subscription) error {
	snap, err := marshalSnapshot(sub.SoftLimitSnapshot)
	if err != nil {
		return err
	}
	ok, err := affected(t.tx.ExecContext(ctx, updateSubscriptionQuery,
		sub.ID, sub.Status, sub.CurrentTier, nullTier(sub.NextTier),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndAt, sub.GraceEndAt,
		sub.CancelAtPeriodEnd, sub.CancelledAt, sub.SoftLimited, sub.SoftLimitReason, snap,
		sub.UpdatedAt,
	))
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (t *postgresTx) CreateInvoice(ctx context.Context, inv *ProrationInvoice) error {
	_, err := t.tx.ExecContext(ctx, insertInvoiceQuery,
		inv.ID, inv.TenantID, inv.SubscriptionID, inv.FromTier, inv.ToTier,
		inv.PeriodStart, inv.PeriodEnd, inv.EffectiveAt, inv.RemainingRatio, inv.Currency,
		inv.Subtotal, inv.Total, inv.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	for _, item := range inv.Items {
		if _, err := t.tx.ExecContext(ctx, insertInvoiceItemQuery, inv.ID, item.Kind, item.Description, item.Amount); err != nil {
			return errors.Join(ErrStoreFailure, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getSubscription(ctx context.Context, q dbtx, query string, tenantID uuid.UUID) (*Subscription, error) {
	sub, err := scanSubscription(q.QueryRowContext(ctx, query, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var (
		sub         Subscription
		nextTier    sql.NullString
		trialEndAt  sql.NullTime
		graceEndAt  sql.NullTime
		cancelledAt sql.NullTime
		reason      sql.NullString
		snapshot    []byte
	)
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.Status, &sub.CurrentTier, &nextTier,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &trialEndAt, &graceEndAt,
		&sub.CancelAtPeriodEnd, &cancelledAt, &sub.SoftLimited, &reason, &snapshot,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	if nextTier.Valid {
		t := Tier(nextTier.String)
		sub.NextTier = &t
	}
	sub.TrialEndAt = nullTimePtr(trialEndAt)
	sub.GraceEndAt = nullTimePtr(graceEndAt)
	sub.CancelledAt = nullTimePtr(cancelledAt)
	sub.SoftLimitReason = reason.String
	if len(snapshot) > 0 && string(snapshot) != "null" {
		var snap SoftLimitSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		sub.SoftLimitSnapshot = &snap
	}
	return &sub, nil
}

func marshalSnapshot(snap *SoftLimitSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return b, nil
}

func nullTier(t *Tier) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, errors.Join(ErrStoreFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Join(ErrStoreFailure, err)
	}
	return n > 0, nil
}
