package subscription_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/subscription"
	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

var subscriptionColumns = []string{
	"id", "tenant_id", "status", "current_tier", "next_tier", "current_period_start", "current_period_end",
	"trial_end_at", "grace_end_at", "cancel_at_period_end", "cancelled_at", "soft_limited", "soft_limit_reason",
	"soft_limit_snapshot", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		tenantID := uuid.New()
		mock.ExpectQuery("SELECT .+ FROM subscriptions WHERE tenant_id = \\$1").
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns))

		_, err := subscription.NewPostgresStore(db).Get(ctx, tenantID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scans nullable columns and snapshot", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		id, tenantID := uuid.New(), uuid.New()
		snap := `{"policy":"soft_limit_no_data_deletion","targetTier":"C1","exceeded":[{"metric":"orders_month","used":742,"limit":500}],"checkedAt":"2025-04-01T03:00:00Z"}`

		mock.ExpectQuery("FROM subscriptions WHERE tenant_id").
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(
				id.String(), tenantID.String(), "ACTIVE_PAID", "C1", nil, periodStart, periodEnd,
				nil, nil, false, nil, true, subscription.SoftLimitReasonDowngradeQuota,
				[]byte(snap), periodStart, periodStart,
			))

		sub, err := subscription.NewPostgresStore(db).Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)
		assert.Equal(t, subscription.StatusActivePaid, sub.Status)
		assert.Nil(t, sub.NextTier)
		assert.Nil(t, sub.TrialEndAt)
		assert.True(t, sub.SoftLimited)
		require.NotNil(t, sub.SoftLimitSnapshot)
		require.Len(t, sub.SoftLimitSnapshot.Exceeded, 1)
		assert.Equal(t, usage.MetricOrdersMonth, sub.SoftLimitSnapshot.Exceeded[0].Metric)
	})

	t.Run("driver error", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM subscriptions").WillReturnError(errors.New("connection reset"))

		_, err := subscription.NewPostgresStore(db).Get(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrStoreFailure)
	})
}

func TestPostgresStore_ListDue(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	now := periodEnd.Add(time.Hour)

	mock.ExpectQuery("WHERE current_period_end <= \\$1 AND status <> 'CANCELLED'").
		WithArgs(now, time.Time{}, uuid.Nil, 500).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).
			AddRow(uuid.NewString(), uuid.NewString(), "ACTIVE_PAID", "C2", "C1", periodStart, periodEnd,
				nil, nil, false, nil, false, nil, nil, periodStart, periodStart).
			AddRow(uuid.NewString(), uuid.NewString(), "PAST_DUE", "C3", nil, periodStart, periodEnd,
				nil, nil, true, periodEnd, false, nil, nil, periodStart, periodStart))

	due, err := subscription.NewPostgresStore(db).ListDue(context.Background(), now, subscription.DueCursor{}, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.NotNil(t, due[0].NextTier)
	assert.Equal(t, subscription.TierC1, *due[0].NextTier)
	assert.True(t, due[1].CancelAtPeriodEnd)
	require.NotNil(t, due[1].CancelledAt)
	assert.Equal(t, periodEnd, *due[1].CancelledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDueAfterCursor(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	now := periodEnd.Add(time.Hour)
	after := subscription.DueCursor{PeriodEnd: periodEnd, ID: uuid.New()}

	mock.ExpectQuery("AND \\(current_period_end, id\\) > \\(\\$2, \\$3\\)\\s+ORDER BY current_period_end, id\\s+LIMIT \\$4").
		WithArgs(now, periodEnd, after.ID, 2).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns))

	due, err := subscription.NewPostgresStore(db).ListDue(context.Background(), now, after, 2)
	require.NoError(t, err)
	assert.Empty(t, due)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConditionalUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := periodEnd.Add(time.Minute)

	t.Run("cancellation already applied", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE subscriptions SET status = 'CANCELLED'.+AND cancel_at_period_end AND status <> 'CANCELLED'").
			WithArgs(id, now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := subscription.NewPostgresStore(db).ApplyCancellation(ctx, id, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("downgrade writes verdict", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		id := uuid.New()
		next := periodEnd.AddDate(0, 0, 30)
		mock.ExpectExec("UPDATE subscriptions SET current_tier = \\$2, next_tier = NULL.+WHERE id = \\$1 AND next_tier = \\$2 AND current_period_end <= \\$3").
			WithArgs(id, subscription.TierC1, now, periodEnd, next, true, subscription.SoftLimitReasonDowngradeQuota, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		verdict := subscription.EvaluateSoftLimits(subscription.DefaultEntitlements("BRL")[0], usage.Snapshot{OrdersMonth: 900}, now)
		ok, err := subscription.NewPostgresStore(db).ApplyDowngrade(ctx, subscription.DowngradeUpdate{
			ID: id, TargetTier: subscription.TierC1, Now: now, PeriodStart: periodEnd, PeriodEnd: next, Verdict: verdict,
		})
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status compare and swap", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE subscriptions SET status = \\$3.+WHERE id = \\$1 AND status = \\$2").
			WithArgs(id, subscription.StatusPastDue, subscription.StatusRestricted, nil, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := subscription.NewPostgresStore(db).UpdateStatus(ctx, subscription.StatusUpdate{
			ID: id, From: subscription.StatusPastDue, To: subscription.StatusRestricted, Now: now,
		})
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestPostgresStore_UpgradeTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("commits invoice and tier together", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		id, tenantID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM subscriptions WHERE tenant_id = \\$1 FOR UPDATE").
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(
				id.String(), tenantID.String(), "ACTIVE_PAID", "C1", nil, periodStart, periodEnd,
				nil, nil, false, nil, false, nil, nil, periodStart, periodStart,
			))
		mock.ExpectExec("INSERT INTO proration_invoices").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO proration_invoice_items").
			WithArgs(sqlmock.AnyArg(), subscription.ItemCreditUnusedTime, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO proration_invoice_items").
			WithArgs(sqlmock.AnyArg(), subscription.ItemChargeNewPlan, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE subscriptions SET status = \\$2, current_tier = \\$3").
			WithArgs(id, subscription.StatusActivePaid, subscription.TierC2, nil,
				periodStart, periodEnd, nil, nil, false, nil, false, "", sqlmock.AnyArg(), midCycle).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eng := subscription.NewEngine(
			subscription.NewPostgresStore(db),
			subscription.NewMemoryCatalog(subscription.DefaultEntitlements("BRL")...),
			usage.NewMemoryProvider(time.UTC),
			subscription.WithClock(func() time.Time { return midCycle }),
		)
		res, err := eng.Upgrade(ctx, tenantID, subscription.TierC2, "admin", false)
		require.NoError(t, err)
		assert.Equal(t, subscription.TierC2, res.Subscription.CurrentTier)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when invoice insert fails", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		tenantID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(
			uuid.NewString(), tenantID.String(), "ACTIVE_PAID", "C1", nil, periodStart, periodEnd,
			nil, nil, false, nil, false, nil, nil, periodStart, periodStart,
		))
		mock.ExpectExec("INSERT INTO proration_invoices").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		eng := subscription.NewEngine(
			subscription.NewPostgresStore(db),
			subscription.NewMemoryCatalog(subscription.DefaultEntitlements("BRL")...),
			usage.NewMemoryProvider(time.UTC),
			subscription.WithClock(func() time.Time { return midCycle }),
		)
		_, err := eng.Upgrade(ctx, tenantID, subscription.TierC2, "admin", false)
		assert.ErrorIs(t, err, subscription.ErrStoreFailure)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
