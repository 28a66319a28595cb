package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps timestamps in process memory. Limits enforced with it
// are per instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type window struct {
	timestamps []time.Time
	span       time.Duration
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle keys are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates a new in-memory store with background cleanup.
// Call Close to stop it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         make(map[string]*window),
		cleanupInterval: time.Minute,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, span time.Duration, limit int) (bool, int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{span: span}
		s.windows[key] = w
	}
	w.span = span
	w.trim(now)

	allowed := len(w.timestamps) < limit
	if allowed {
		w.timestamps = append(w.timestamps, now)
	}
	return allowed, int64(len(w.timestamps)), w.oldest(), nil
}

func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, span time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	w.span = span
	w.trim(now)
	return int64(len(w.timestamps)), w.oldest(), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Close stops background cleanup. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.windows {
		w.trim(now)
		if len(w.timestamps) == 0 {
			delete(s.windows, key)
		}
	}
}

// trim drops timestamps at or before now-span.
func (w *window) trim(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

func (w *window) oldest() time.Time {
	if len(w.timestamps) == 0 {
		return time.Time{}
	}
	return w.timestamps[0]
}
