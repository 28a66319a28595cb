package audit

import (
	"context"
	"slices"
	"sync"
)

// MemorySink keeps records in memory. Useful for tests and single-node setups.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
	err     error
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes subsequent appends return err. Pass nil to recover.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySink) Append(ctx context.Context, rec Record) error {
	return s.AppendBatch(ctx, []Record{rec})
}

func (s *MemorySink) AppendBatch(_ context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, recs...)
	return nil
}

// Records returns a copy of all stored records in append order.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// ByAction returns stored records with the given action.
func (s *MemorySink) ByAction(action string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}
