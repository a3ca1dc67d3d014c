package connection

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	backoffFloor    = time.Second
	backoffCeiling  = 16 * time.Second
	backoffResetGap = 60 * time.Second
)

// Backoff yields reconnect delays 0, 1s, 2s, 4s, 8s, 16s, 16s, ... and starts
// over at 0 once more than a minute passed since the last delay was produced.
type Backoff struct {
	clock clockwork.Clock

	mu      sync.Mutex
	started bool
	delay   time.Duration
	last    time.Time
}

func NewBackoff(clock clockwork.Clock) *Backoff {
	return &Backoff{clock: clock}
}

// Next returns the delay to wait before the next reconnect attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if b.started && now.Sub(b.last) > backoffResetGap {
		b.started = false
	}

	if !b.started {
		b.started = true
		b.delay = 0
	} else {
		b.delay = min(max(b.delay*2, backoffFloor), backoffCeiling)
	}
	b.last = now
	return b.delay
}

// Reset makes the next call return 0.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
}
