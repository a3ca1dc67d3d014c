package eventsub

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper_SeenWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemoryDeduper(clock)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "a", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduper_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemoryDeduper(clock)
	ctx := context.Background()

	_, _ = d.Seen(ctx, "a", 10*time.Second)
	clock.Advance(10 * time.Second)

	seen, err := d.Seen(ctx, "a", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, seen, "expired ids are accepted again")
}

func TestMemoryDeduper_SweepsExpiredIDs(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemoryDeduper(clock)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, _ = d.Seen(ctx, id, time.Second)
	}
	assert.Equal(t, 3, d.Len())

	clock.Advance(sweepInterval)
	_, _ = d.Seen(ctx, "d", time.Second)

	assert.Equal(t, 1, d.Len())
}
