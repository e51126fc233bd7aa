package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports/mocks"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingEvents(t *testing.T, n int) []domain.Event {
	t.Helper()

	events := make([]domain.Event, 0, n)
	for i := 0; i < n; i++ {
		evt := reservationCreated(t)
		evt.CreatedAt = time.Now().Add(-time.Minute)
		events = append(events, *evt)
	}
	return events
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	outbox := mocks.NewOutboxRepository(t)
	publisher := mocks.NewEventPublisher(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	events := pendingEvents(t, 2)

	outbox.On("ListPending", ctx, mock.AnythingOfType("time.Time"), 25).Return(events, nil)
	publisher.On("Publish", ctx, mock.Anything).Return(nil).Twice()
	outbox.On("MarkPublished", ctx, []uuid.UUID{events[0].ID, events[1].ID}).Return(nil)

	relay := services.NewOutboxRelay(outbox, publisher, 30*time.Second, 25, logger)

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelayOnce_StopsAtFirstPublishFailure(t *testing.T) {
	outbox := mocks.NewOutboxRepository(t)
	publisher := mocks.NewEventPublisher(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	events := pendingEvents(t, 3)

	outbox.On("ListPending", ctx, mock.Anything, 100).Return(events, nil)
	publisher.On("Publish", ctx, mock.Anything).Return(nil).Once()
	publisher.On("Publish", ctx, mock.Anything).Return(errors.New("broker unavailable")).Once()
	outbox.On("MarkPublished", ctx, []uuid.UUID{events[0].ID}).Return(nil)

	relay := services.NewOutboxRelay(outbox, publisher, time.Second, 0, logger)

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelayOnce_NothingPending(t *testing.T) {
	outbox := mocks.NewOutboxRepository(t)
	publisher := mocks.NewEventPublisher(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	outbox.On("ListPending", ctx, mock.Anything, 100).Return(nil, nil)

	n, err := services.NewOutboxRelay(outbox, publisher, time.Second, 0, logger).RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
