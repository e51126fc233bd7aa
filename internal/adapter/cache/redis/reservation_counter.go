package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// appliedTTL bounds how long an event id is remembered; redelivery after
// that is already prevented by the processor's event record.
const appliedTTL = 7 * 24 * time.Hour

func ReservedKey(offeringID string) string {
	return fmt.Sprintf("analytics:offering:%s:reserved", offeringID)
}

func appliedKey(eventID uuid.UUID) string {
	return fmt.Sprintf("analytics:applied:%s", eventID)
}

// ReservationCounter tracks reserved slots per offering for reporting.
type ReservationCounter struct {
	client goredis.Cmdable
}

func NewReservationCounter(client goredis.Cmdable) *ReservationCounter {
	return &ReservationCounter{client: client}
}

func (c *ReservationCounter) Apply(ctx context.Context, eventID uuid.UUID, offeringID string, delta int) (bool, error) {
	first, err := c.client.SetNX(ctx, appliedKey(eventID), offeringID, appliedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("guard counter update: %w", err)
	}

	if !first {
		return false, nil
	}

	if err := c.client.IncrBy(ctx, ReservedKey(offeringID), int64(delta)).Err(); err != nil {
		// release the guard so a redelivery can apply the delta
		c.client.Del(ctx, appliedKey(eventID))
		return false, fmt.Errorf("update reserved counter: %w", err)
	}

	return true, nil
}

// Reserved returns the net number of slots counted for the offering.
func (c *ReservationCounter) Reserved(ctx context.Context, offeringID string) (int64, error) {
	n, err := c.client.Get(ctx, ReservedKey(offeringID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read reserved counter: %w", err)
	}

	return n, nil
}
