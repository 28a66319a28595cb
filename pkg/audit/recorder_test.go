package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
)

type countingObserver struct {
	mu      sync.Mutex
	actions []string
}

func (o *countingObserver) AuditWriteFailed(action string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.actions = append(o.actions, action)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	rec := audit.New("guard.blocked", tenantID,
		audit.WithActor("user-1"),
		audit.WithRequest("POST", "/customers"),
		audit.WithReason("subscription_restricted"),
		audit.WithMetadata("scope", "ADMIN"),
		audit.WithMetadata("", "ignored"),
	)

	assert.Equal(t, "guard.blocked", rec.Action)
	assert.Equal(t, tenantID, rec.TenantID)
	assert.Equal(t, "user-1", rec.Actor)
	assert.Equal(t, "POST", rec.Method)
	assert.Equal(t, "/customers", rec.Route)
	assert.Equal(t, "subscription_restricted", rec.Reason)
	assert.Equal(t, map[string]any{"scope": "ADMIN"}, rec.Metadata)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fills id and timestamp", func(t *testing.T) {
		t.Parallel()

		sink := audit.NewMemorySink()
		rec := audit.NewRecorder(sink, audit.WithClock(func() time.Time { return fixed }))

		rec.Log(context.Background(), audit.New("subscription.reactivated", uuid.New()))

		got := sink.Records()
		require.Len(t, got, 1)
		assert.NotEqual(t, uuid.Nil, got[0].ID)
		assert.Equal(t, fixed, got[0].CreatedAt)
	})

	t.Run("sink failure is swallowed, logged and counted", func(t *testing.T) {
		t.Parallel()

		sink := audit.NewMemorySink()
		sink.FailWith(errors.New("disk full"))
		obs := &countingObserver{}
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		rec := audit.NewRecorder(sink, audit.WithObserver(obs), audit.WithLogger(log))

		assert.NotPanics(t, func() {
			rec.Log(context.Background(), audit.New("guard.blocked", uuid.New()))
		})
		assert.Equal(t, []string{"guard.blocked"}, obs.actions)
		assert.Contains(t, buf.String(), "audit write failed")
		assert.Contains(t, buf.String(), "disk full")
	})

	t.Run("invalid record is counted as failure", func(t *testing.T) {
		t.Parallel()

		sink := audit.NewMemorySink()
		obs := &countingObserver{}
		rec := audit.NewRecorder(sink, audit.WithObserver(obs), audit.WithLogger(slog.New(slog.DiscardHandler)))

		rec.Log(context.Background(), audit.Record{})

		assert.Empty(t, sink.Records())
		assert.Len(t, obs.actions, 1)
	})

	t.Run("nil sink panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { audit.NewRecorder(nil) })
	})
}

func TestPrometheusObserver(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs, err := audit.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.AuditWriteFailed("guard.blocked")
	obs.AuditWriteFailed("guard.blocked")

	// registering twice reuses the collector
	again, err := audit.NewPrometheusObserver("test", reg)
	require.NoError(t, err)
	again.AuditWriteFailed("guard.blocked")

	count, err := testutil.GatherAndCount(reg, "test_audit_write_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var nilObs *audit.PrometheusObserver
	assert.NotPanics(t, func() { nilObs.AuditWriteFailed("x") })
}
