package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/memory"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOffering(t *testing.T, total int) *domain.Offering {
	t.Helper()

	o, err := domain.NewOffering("babadham", "standard", time.Date(2023, 8, 5, 0, 0, 0, 0, time.UTC), total, 500)
	require.NoError(t, err)
	return o
}

func TestOfferingCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOfferingRepository()
	o := newOffering(t, 5)
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.CompareAndSwapAvailability(ctx, o.ID, 1, 2))

	err := repo.CompareAndSwapAvailability(ctx, o.ID, 1, 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSlots)
	assert.Equal(t, 2, got.Version)

	assert.Error(t, repo.CompareAndSwapAvailability(ctx, o.ID, 2, -1))
	assert.Error(t, repo.CompareAndSwapAvailability(ctx, o.ID, 2, 6))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOfferingNotFound)

	assert.ErrorIs(t, repo.Create(ctx, o), domain.ErrAlreadyExists)
}

func TestReservationCancelAndOutbox(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewReservationRepository()

	res := domain.NewReservation("babadham-standard-2023-08-05", "user-1", 2)
	created, err := domain.ReservationCreatedEvent(res, "test")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, res, []*domain.Event{created}))

	sums, err := repo.ConfirmedQuantities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sums[res.OfferingID])

	pending, err := repo.ListPending(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].ID)

	cancelled, err := domain.ReservationCancelledEvent(res, "test")
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(ctx, res.ID, time.Now(), []*domain.Event{cancelled}))
	assert.ErrorIs(t, repo.Cancel(ctx, res.ID, time.Now(), nil), domain.ErrAlreadyCancelled)

	sums, err = repo.ConfirmedQuantities(ctx)
	require.NoError(t, err)
	assert.Zero(t, sums[res.OfferingID])

	require.NoError(t, repo.MarkPublished(ctx, []uuid.UUID{created.ID}))
	pending, err = repo.ListPending(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, cancelled.ID, pending[0].ID)
}

func TestEventRepositoryClaimRetry(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEventRepository()

	evt, err := domain.NewEvent("custom", "k", "test", map[string]string{"a": "b"})
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, evt))
	assert.ErrorIs(t, repo.Create(ctx, evt), domain.ErrAlreadyExists)

	// a stale attempt count loses the claim
	assert.ErrorIs(t, repo.ClaimRetry(ctx, evt.ID, 0), domain.ErrEventInProgress)

	require.NoError(t, repo.Finish(ctx, evt.ID, domain.EventFailed, "boom", time.Now()))
	require.NoError(t, repo.ClaimRetry(ctx, evt.ID, 1))
	assert.ErrorIs(t, repo.ClaimRetry(ctx, evt.ID, 1), domain.ErrEventInProgress)

	claimed, err := repo.Get(ctx, evt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventProcessing, claimed.Status)
	assert.Equal(t, 2, claimed.Attempts)

	require.NoError(t, repo.Finish(ctx, evt.ID, domain.EventCompleted, "", time.Now()))
	require.NoError(t, repo.Finish(ctx, evt.ID, domain.EventFailed, "late", time.Now()))
	assert.ErrorIs(t, repo.ClaimRetry(ctx, evt.ID, 2), domain.ErrEventInProgress)

	stored, err := repo.Get(ctx, evt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCompleted, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}
