package scheduler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantplans/pkg/logger"
	"github.com/dmitrymomot/tenantplans/pkg/scheduler"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestScheduler_Add(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("apply-due", "@hourly", noop))
	require.NoError(t, s.Add("nightly", "5 0 * * *", noop))
	assert.ErrorIs(t, s.Add("apply-due", "@daily", noop), scheduler.ErrDuplicateJob)
	assert.ErrorIs(t, s.Add("bad", "every hour", noop), scheduler.ErrInvalidSchedule)
	assert.ErrorIs(t, s.Add("seconds", "*/5 * * * * *", noop), scheduler.ErrInvalidSchedule)
}

func TestScheduler_Trigger(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	boom := errors.New("boom")
	var runs atomic.Int32
	require.NoError(t, s.Add("apply-due", "@hourly", func(context.Context) error {
		runs.Add(1)
		return boom
	}))

	assert.ErrorIs(t, s.Trigger(context.Background(), "apply-due"), boom)
	assert.EqualValues(t, 1, runs.Load())
	assert.ErrorIs(t, s.Trigger(context.Background(), "missing"), scheduler.ErrUnknownJob)
}

func TestScheduler_StartRunsAndRecovers(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	log := logger.New(logger.WithOutput(&out), logger.WithFormat(logger.FormatJSON), logger.WithLevel(slog.LevelDebug))
	s := scheduler.New(scheduler.WithLogger(log), scheduler.WithJobTimeout(time.Second))

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return errors.New("missing deadline")
		}
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("panics", "@every 1s", func(context.Context) error {
		panic("bad row")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Contains(t, out.String(), "scheduler started")
	assert.Contains(t, out.String(), "panic")
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyStarted)
}
