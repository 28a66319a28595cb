package audit_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/audit"
)

func TestPostgresSink(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	recs := []audit.Record{
		{ID: uuid.New(), TenantID: uuid.New(), Action: "guard.blocked", Method: "POST", Route: "/customers", CreatedAt: now},
		{ID: uuid.New(), TenantID: uuid.New(), Action: "guard.rate_limited", Metadata: map[string]any{"retryAfterSeconds": 12}, CreatedAt: now},
	}

	t.Run("batch insert", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO access_audit_log .* VALUES \(\$1, .*\), \(\$10, .*\$18\)`).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, audit.NewPostgresSink(db).AppendBatch(context.Background(), recs))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, audit.NewPostgresSink(db).AppendBatch(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec failure is wrapped", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO access_audit_log").WillReturnError(errors.New("conn reset"))

		err = audit.NewPostgresSink(db).Append(context.Background(), recs[0])
		assert.ErrorIs(t, err, audit.ErrWriteFailed)
	})

	t.Run("invalid record rejected", func(t *testing.T) {
		t.Parallel()

		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		err = audit.NewPostgresSink(db).Append(context.Background(), audit.Record{})
		assert.ErrorIs(t, err, audit.ErrInvalidRecord)
	})
}

func TestOpenSearchSink(t *testing.T) {
	t.Parallel()

	type call struct {
		method string
		path   string
		body   string
	}

	newServer := func(t *testing.T, bulkErrors bool) (*opensearch.Client, *[]call, *sync.Mutex) {
		var (
			mu    sync.Mutex
			calls []call
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			calls = append(calls, call{method: r.Method, path: r.URL.Path, body: string(body)})
			mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			switch {
			case strings.HasSuffix(r.URL.Path, "/_bulk"):
				if bulkErrors {
					_, _ = w.Write([]byte(`{"errors":true,"items":[]}`))
					return
				}
				_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
			case strings.Contains(r.URL.Path, "/_doc/"):
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"result":"created"}`))
			default:
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"unexpected"}`))
			}
		}))
		t.Cleanup(srv.Close)

		client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{srv.URL}})
		require.NoError(t, err)
		return client, &calls, &mu
	}

	rec := audit.Record{ID: uuid.New(), TenantID: uuid.New(), Action: "guard.blocked", CreatedAt: time.Now().UTC()}

	t.Run("index single record", func(t *testing.T) {
		t.Parallel()

		client, calls, mu := newServer(t, false)
		require.NoError(t, audit.NewOpenSearchSink(client, "audit").Append(context.Background(), rec))

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, *calls, 1)
		assert.Equal(t, "/audit/_doc/"+rec.ID.String(), (*calls)[0].path)
		assert.Contains(t, (*calls)[0].body, `"action":"guard.blocked"`)
	})

	t.Run("bulk batch", func(t *testing.T) {
		t.Parallel()

		client, calls, mu := newServer(t, false)
		require.NoError(t, audit.NewOpenSearchSink(client, "audit").AppendBatch(context.Background(), []audit.Record{rec, rec}))

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, *calls, 1)
		assert.Equal(t, "/audit/_bulk", (*calls)[0].path)
		assert.Equal(t, 4, strings.Count((*calls)[0].body, "\n"))
	})

	t.Run("bulk item errors fail the batch", func(t *testing.T) {
		t.Parallel()

		client, _, _ := newServer(t, true)
		err := audit.NewOpenSearchSink(client, "audit").AppendBatch(context.Background(), []audit.Record{rec})
		assert.ErrorIs(t, err, audit.ErrWriteFailed)
	})
}

type batchCounter struct {
	mu      sync.Mutex
	batches int
	err     error
}

func (b *batchCounter) Append(ctx context.Context, rec audit.Record) error {
	return b.AppendBatch(ctx, []audit.Record{rec})
}

func (b *batchCounter) AppendBatch(context.Context, []audit.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches++
	return b.err
}

func TestTeeSink(t *testing.T) {
	t.Parallel()

	failing := &batchCounter{err: errors.New("index unavailable")}
	healthy := &batchCounter{}
	tee := audit.TeeSink{failing, healthy}

	err := tee.Append(context.Background(), audit.New("access.blocked", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
	assert.Equal(t, 1, failing.batches)
	assert.Equal(t, 1, healthy.batches)

	require.Error(t, tee.AppendBatch(context.Background(), []audit.Record{audit.New("a", uuid.New())}))
	assert.Equal(t, 2, healthy.batches)
}
