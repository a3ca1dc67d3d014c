package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tmi/internal/domain"
)

const dedupKeyPrefix = "tmi:eventsub:"

// Deduper records webhook message ids with SET NX so every instance sharing
// the Redis sees each delivery once.
type Deduper struct {
	rdb *goredis.Client
}

var _ domain.Deduper = (*Deduper)(nil)

func NewDeduper(rdb *goredis.Client) *Deduper {
	return &Deduper{rdb: rdb}
}

func (d *Deduper) Seen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	err := d.rdb.SetArgs(ctx, dedupKeyPrefix+id, 1, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, goredis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("record message id: %w", err)
	}
	return false, nil
}
