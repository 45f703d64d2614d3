package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadingCache stores recent oracle readings so repeated resolution attempts
// within the TTL do not hammer the upstream feed. Readings are stored as
// plain integer strings at key "marketd:oracle:{ref}".
type ReadingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReadingCache creates a ReadingCache with the given entry TTL.
func NewReadingCache(c *Client, ttl time.Duration) *ReadingCache {
	return &ReadingCache{rdb: c.rdb, ttl: ttl}
}

func readingKey(ref string) string {
	return "marketd:oracle:" + ref
}

// Get returns the cached reading for ref. The second return is false when no
// fresh entry exists.
func (rc *ReadingCache) Get(ctx context.Context, ref string) (int64, bool, error) {
	val, err := rc.rdb.Get(ctx, readingKey(ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis: get reading %s: %w", ref, err)
	}
	reading, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse reading %s: %w", ref, err)
	}
	return reading, true, nil
}

// Set stores the reading for ref with the cache's TTL.
func (rc *ReadingCache) Set(ctx context.Context, ref string, reading int64) error {
	val := strconv.FormatInt(reading, 10)
	if err := rc.rdb.Set(ctx, readingKey(ref), val, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set reading %s: %w", ref, err)
	}
	return nil
}
