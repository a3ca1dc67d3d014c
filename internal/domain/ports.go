package domain

import (
	"context"
	"time"
)

// ChannelSource provides channel logins to join, e.g. the top live channels.
type ChannelSource interface {
	TopChannels(ctx context.Context, n int) ([]string, error)
}

// Deduper records webhook message ids. Seen reports true when id was already
// recorded within ttl.
type Deduper interface {
	Seen(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// ChannelJoiner is what the webhook receiver drives on stream online/offline.
type ChannelJoiner interface {
	JoinChannels(ctx context.Context, logins ...string) error
	PartChannels(ctx context.Context, logins ...string) error
}
