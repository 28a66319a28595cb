package usage_test

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

	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

func TestPeriodKey(t *testing.T) {
	t.Parallel()

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 02:00 UTC on the 1st is still the previous month in Sao Paulo
	at := time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-04", usage.PeriodKey(at, nil))
	assert.Equal(t, "2025-03", usage.PeriodKey(at, saoPaulo))
}

func TestSnapshotUsed(t *testing.T) {
	t.Parallel()

	s := usage.Snapshot{OrdersMonth: 10, APICalls: 20, StorageGB: 1.5, Plugins: 2, Branches: 3, AdminUsers: 4}

	assert.Equal(t, 10.0, s.Used(usage.MetricOrdersMonth))
	assert.Equal(t, 20.0, s.Used(usage.MetricAPICallsMonth))
	assert.Equal(t, 1.5, s.Used(usage.MetricStorageGB))
	assert.Equal(t, 2.0, s.Used(usage.MetricPlugins))
	assert.Equal(t, 3.0, s.Used(usage.MetricBranches))
	assert.Equal(t, 4.0, s.Used(usage.MetricAdminUsers))
	assert.Zero(t, s.Used(usage.Metric("unknown")))
}

func TestMemoryProvider(t *testing.T) {
	t.Parallel()

	p := usage.NewMemoryProvider(time.UTC)
	tenantID := uuid.New()
	at := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	t.Run("missing period is zero", func(t *testing.T) {
		s, err := p.Snapshot(context.Background(), tenantID, at)
		require.NoError(t, err)
		assert.Equal(t, "2025-05", s.PeriodKey)
		assert.Zero(t, s.OrdersMonth)
	})

	t.Run("stored period is returned", func(t *testing.T) {
		p.Set(usage.Snapshot{TenantID: tenantID, PeriodKey: "2025-05", OrdersMonth: 900})

		s, err := p.Snapshot(context.Background(), tenantID, at)
		require.NoError(t, err)
		assert.EqualValues(t, 900, s.OrdersMonth)
	})
}

func TestPostgresProvider(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	columns := []string{"orders_month", "api_calls_month", "storage_gb", "plugins", "branches", "admin_users"}

	t.Run("returns stored counters", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT orders_month").
			WithArgs(tenantID, "2025-06").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(650, 1200, 2.5, 1, 1, 2))

		s, err := usage.NewPostgresProvider(db, time.UTC).Snapshot(context.Background(), tenantID, at)
		require.NoError(t, err)
		assert.EqualValues(t, 650, s.OrdersMonth)
		assert.InDelta(t, 2.5, s.StorageGB, 0.0001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row yields zero snapshot", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT orders_month").WillReturnError(sql.ErrNoRows)

		s, err := usage.NewPostgresProvider(db, time.UTC).Snapshot(context.Background(), tenantID, at)
		require.NoError(t, err)
		assert.Equal(t, tenantID, s.TenantID)
		assert.Zero(t, s.OrdersMonth)
	})

	t.Run("query failure is wrapped", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT orders_month").WillReturnError(errors.New("boom"))

		_, err = usage.NewPostgresProvider(db, time.UTC).Snapshot(context.Background(), tenantID, at)
		assert.ErrorIs(t, err, usage.ErrSnapshotFailed)
	})
}
