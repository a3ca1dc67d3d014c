package eventsub

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tmi/internal/domain"
)

const sweepInterval = time.Minute

// MemoryDeduper remembers message ids in process. It serves single-instance
// deployments without Redis.
type MemoryDeduper struct {
	clock clockwork.Clock

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

var _ domain.Deduper = (*MemoryDeduper)(nil)

func NewMemoryDeduper(clock clockwork.Clock) *MemoryDeduper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryDeduper{
		clock:     clock,
		seen:      make(map[string]time.Time),
		lastSweep: clock.Now(),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, id string, ttl time.Duration) (bool, error) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastSweep) >= sweepInterval {
		d.sweep(now)
	}
	if expires, ok := d.seen[id]; ok && now.Before(expires) {
		return true, nil
	}
	d.seen[id] = now.Add(ttl)
	return false, nil
}

// Len returns the number of remembered ids, expired ones included until the next sweep.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *MemoryDeduper) sweep(now time.Time) {
	for id, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, id)
		}
	}
	d.lastSweep = now
}
