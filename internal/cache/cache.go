package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/lega/pkg/models"
)

const (
	keyPrefix = "lega:feed:"
	genKey    = keyPrefix + "gen"
)

// Feed caches rendered feed pages in Redis. Invalidation bumps a
// generation counter so stale pages are never read again and simply expire.
// Get reports the generation it looked in; Set writes under that generation,
// so a page built from a read that raced an invalidation is never served.
// A Feed with a nil client is a no-op.
type Feed struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeed(rdb *redis.Client, ttl time.Duration) *Feed {
	return &Feed{rdb: rdb, ttl: ttl}
}

// Key identifies a feed page for f.
func Key(f models.FeedFilter) string {
	f = f.Normalize()
	v := url.Values{}
	v.Set("sector", string(f.Sector))
	v.Set("state", f.State)
	v.Set("tag", f.Tag)
	v.Set("limit", strconv.Itoa(f.Limit))
	return v.Encode()
}

func (c *Feed) generation(ctx context.Context) (int64, error) {
	n, err := c.rdb.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func pageKey(gen int64, f models.FeedFilter) string {
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, Key(f))
}

// Get returns the cached page for f and the generation it was looked up
// in. ok is false on a miss.
func (c *Feed) Get(ctx context.Context, f models.FeedFilter) (items []models.FeedItem, gen int64, ok bool, err error) {
	if c == nil || c.rdb == nil {
		return nil, 0, false, nil
	}
	gen, err = c.generation(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("cache: generation: %w", err)
	}
	raw, err := c.rdb.Get(ctx, pageKey(gen, f)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("cache: get: %w", err)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, gen, false, fmt.Errorf("cache: decode: %w", err)
	}
	return items, gen, true, nil
}

// Set stores items for f under gen, the generation returned by the Get
// that preceded the read of items.
func (c *Feed) Set(ctx context.Context, f models.FeedFilter, gen int64, items []models.FeedItem) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	key := pageKey(gen, f)
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Invalidate makes every cached page unreachable.
func (c *Feed) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if err := c.rdb.Incr(ctx, genKey).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}
