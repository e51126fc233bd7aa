// Package redis holds the Redis-backed read cache and analytics counters.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

func availabilityKey(offeringID string) string {
	return fmt.Sprintf("offering:%s:availability", offeringID)
}

// floorKey holds the newest version an invalidation has announced. Snapshots
// older than it are never written back.
func floorKey(offeringID string) string {
	return fmt.Sprintf("offering:%s:availability:floor", offeringID)
}

// setIfCurrent writes the snapshot unless an invalidation for a newer
// version arrived while it was being read.
var setIfCurrent = goredis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '0')
if tonumber(ARGV[2]) < floor then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// invalidate raises the floor to the announced version and drops the
// snapshot.
var invalidate = goredis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '0')
if tonumber(ARGV[1]) > floor then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
redis.call('DEL', KEYS[1])
return 1
`)

// AvailabilityCache keeps offering snapshots for the read path. It is never
// consulted when deciding whether slots can be taken.
type AvailabilityCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewAvailabilityCache(client goredis.Cmdable, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &AvailabilityCache{client: client, ttl: ttl}
}

func (c *AvailabilityCache) Get(ctx context.Context, offeringID string) (*domain.Offering, error) {
	raw, err := c.client.Get(ctx, availabilityKey(offeringID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached availability: %w", err)
	}

	var offering domain.Offering
	if err := json.Unmarshal(raw, &offering); err != nil {
		return nil, fmt.Errorf("decode cached availability: %w", err)
	}

	return &offering, nil
}

// Set stores the snapshot unless an invalidation for a newer version has
// been seen, so a slow reader cannot put back a value that was just dropped.
func (c *AvailabilityCache) Set(ctx context.Context, offering *domain.Offering) error {
	raw, err := json.Marshal(offering)
	if err != nil {
		return err
	}

	keys := []string{availabilityKey(offering.ID), floorKey(offering.ID)}
	return setIfCurrent.Run(ctx, c.client, keys, string(raw), offering.Version, c.ttl.Milliseconds()).Err()
}

// Invalidate drops the snapshot and rejects later writes of versions older
// than version.
func (c *AvailabilityCache) Invalidate(ctx context.Context, offeringID string, version int) error {
	keys := []string{availabilityKey(offeringID), floorKey(offeringID)}
	return invalidate.Run(ctx, c.client, keys, version, c.ttl.Milliseconds()).Err()
}
