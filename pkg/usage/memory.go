package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider keeps snapshots in process memory.
type MemoryProvider struct {
	mu   sync.RWMutex
	loc  *time.Location
	data map[string]Snapshot
}

// NewMemoryProvider creates an empty provider bucketing periods in loc.
func NewMemoryProvider(loc *time.Location) *MemoryProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryProvider{loc: loc, data: make(map[string]Snapshot)}
}

// Set stores s for its tenant and period, replacing any previous value.
func (p *MemoryProvider) Set(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[s.TenantID.String()+"/"+s.PeriodKey] = s
}

func (p *MemoryProvider) Snapshot(_ context.Context, tenantID uuid.UUID, at time.Time) (Snapshot, error) {
	key := PeriodKey(at, p.loc)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if s, ok := p.data[tenantID.String()+"/"+key]; ok {
		return s, nil
	}
	return Snapshot{TenantID: tenantID, PeriodKey: key}, nil
}
