package cache

import (
	"context"
	"time"
)

// Entry is a single cached value with its freshness metadata. An entry is
// valid iff now - CreatedAt < TTL; expired entries are logically absent.
type Entry struct {
	Value     []byte        `msgpack:"value"`
	CreatedAt time.Time     `msgpack:"created_at"`
	TTL       time.Duration `msgpack:"ttl"`
}

// Expired reports whether the entry is stale at the given instant
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Tier is a single cache tier. Get returns (nil, nil) on a miss; expired
// entries are treated as misses and removed lazily.
type Tier interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
}
