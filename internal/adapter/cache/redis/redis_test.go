package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	rediscache "github.com/nick2726/mandir-reservation-hub/internal/adapter/cache/redis"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityCache_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := rediscache.NewAvailabilityCache(db, time.Minute)

	mock.ExpectGet("offering:o1:availability").RedisNil()

	offering, err := cache.Get(context.Background(), "o1")
	assert.NoError(t, err)
	assert.Nil(t, offering)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityCache_SetThenGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := rediscache.NewAvailabilityCache(db, time.Minute)
	ctx := context.Background()

	offering, err := domain.NewOffering("Babadham Mandir", "Standard", time.Date(2023, 8, 7, 0, 0, 0, 0, time.UTC), 100, 500)
	require.NoError(t, err)

	raw, err := json.Marshal(offering)
	require.NoError(t, err)

	key := "offering:" + offering.ID + ":availability"
	keys := []string{key, key + ":floor"}
	mock.ExpectEvalSha(rediscache.SetIfCurrentHash, keys, string(raw), offering.Version, time.Minute.Milliseconds()).SetVal(int64(1))
	mock.ExpectGet(key).SetVal(string(raw))

	require.NoError(t, cache.Set(ctx, offering))

	cached, err := cache.Get(ctx, offering.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.AvailableSlots, cached.AvailableSlots)
	assert.Equal(t, offering.Version, cached.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityCache_Invalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := rediscache.NewAvailabilityCache(db, 0)

	keys := []string{"offering:o1:availability", "offering:o1:availability:floor"}
	mock.ExpectEvalSha(rediscache.InvalidateHash, keys, 4, (30 * time.Second).Milliseconds()).SetVal(int64(1))

	assert.NoError(t, cache.Invalidate(context.Background(), "o1", 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityCache_SetSkippedAfterNewerInvalidation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := rediscache.NewAvailabilityCache(db, time.Minute)
	ctx := context.Background()

	stale := &domain.Offering{ID: "o1", TotalSlots: 10, AvailableSlots: 4, Version: 3}
	raw, err := json.Marshal(stale)
	require.NoError(t, err)

	keys := []string{"offering:o1:availability", "offering:o1:availability:floor"}
	mock.ExpectEvalSha(rediscache.InvalidateHash, keys, 4, time.Minute.Milliseconds()).SetVal(int64(1))
	mock.ExpectEvalSha(rediscache.SetIfCurrentHash, keys, string(raw), 3, time.Minute.Milliseconds()).SetVal(int64(0))
	mock.ExpectGet("offering:o1:availability").RedisNil()

	require.NoError(t, cache.Invalidate(ctx, "o1", 4))
	require.NoError(t, cache.Set(ctx, stale))

	cached, err := cache.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCounter_AppliesOncePerEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	counter := rediscache.NewReservationCounter(db)
	ctx := context.Background()
	eventID := uuid.New()

	guard := "analytics:applied:" + eventID.String()
	mock.ExpectSetNX(guard, "o1", 7*24*time.Hour).SetVal(true)
	mock.ExpectIncrBy("analytics:offering:o1:reserved", 3).SetVal(3)
	mock.ExpectSetNX(guard, "o1", 7*24*time.Hour).SetVal(false)

	applied, err := counter.Apply(ctx, eventID, "o1", 3)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = counter.Apply(ctx, eventID, "o1", 3)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCounter_ReleasesGuardOnFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	counter := rediscache.NewReservationCounter(db)
	eventID := uuid.New()

	guard := "analytics:applied:" + eventID.String()
	mock.ExpectSetNX(guard, "o1", 7*24*time.Hour).SetVal(true)
	mock.ExpectIncrBy("analytics:offering:o1:reserved", -2).SetErr(errors.New("READONLY"))
	mock.ExpectDel(guard).SetVal(1)

	applied, err := counter.Apply(context.Background(), eventID, "o1", -2)
	assert.Error(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCounter_ReservedDefaultsToZero(t *testing.T) {
	db, mock := redismock.NewClientMock()
	counter := rediscache.NewReservationCounter(db)

	mock.ExpectGet("analytics:offering:o1:reserved").RedisNil()

	n, err := counter.Reserved(context.Background(), "o1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReservationCounter_Reserved(t *testing.T) {
	db, mock := redismock.NewClientMock()
	counter := rediscache.NewReservationCounter(db)

	mock.ExpectGet("analytics:offering:o1:reserved").SetVal("4")
	mock.ExpectGet("analytics:offering:o2:reserved").SetErr(errors.New("connection refused"))

	n, err := counter.Reserved(context.Background(), "o1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	_, err = counter.Reserved(context.Background(), "o2")
	assert.ErrorContains(t, err, "read reserved counter")
	assert.NoError(t, mock.ExpectationsWereMet())
}
