package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports/mocks"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationCounterHandler(t *testing.T) {
	counter := mocks.NewReservationCounter(t)
	ctx := context.Background()

	res := domain.NewReservation("babadham-mandir-vip-2023-08-07", "devotee", 3)
	created, err := domain.ReservationCreatedEvent(res, "test")
	require.NoError(t, err)

	counter.On("Apply", ctx, created.ID, res.OfferingID, 3).Return(true, nil).Once()
	counter.On("Apply", ctx, created.ID, res.OfferingID, 3).Return(false, nil).Once()

	handler := services.ReservationCounterHandler(counter, 1)

	result, err := handler(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "counter_updated", result.Action)

	result, err = handler(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "counter_already_applied", result.Action)
}

func TestReservationCounterHandler_CancelSubtracts(t *testing.T) {
	counter := mocks.NewReservationCounter(t)
	ctx := context.Background()

	res := domain.NewReservation("babadham-mandir-vip-2023-08-07", "devotee", 2)
	res.Status = domain.ReservationCancelled
	cancelled, err := domain.ReservationCancelledEvent(res, "test")
	require.NoError(t, err)

	counter.On("Apply", ctx, cancelled.ID, res.OfferingID, -2).Return(true, nil)

	_, err = services.ReservationCounterHandler(counter, -1)(ctx, cancelled)
	assert.NoError(t, err)
}

func TestReservationCounterHandler_MalformedPayload(t *testing.T) {
	counter := mocks.NewReservationCounter(t)

	evt, err := domain.NewEvent(domain.EventReservationCreated, "k", "test", map[string]any{"offeringId": "x", "quantity": "two"})
	require.NoError(t, err)

	_, err = services.ReservationCounterHandler(counter, 1)(context.Background(), evt)
	assert.True(t, domain.IsPermanent(err))
}

func TestAvailabilityCacheHandler(t *testing.T) {
	cache := mocks.NewAvailabilityCache(t)
	ctx := context.Background()

	offering, err := domain.NewOffering("Babadham Mandir", "Standard", offeringAt(1, 1).Date, 100, 500)
	require.NoError(t, err)
	evt, err := domain.AvailabilityChangedEvent(offering, "test")
	require.NoError(t, err)

	cache.On("Invalidate", ctx, offering.ID, offering.Version).Return(nil).Once()
	cache.On("Invalidate", ctx, offering.ID, offering.Version).Return(errors.New("redis down")).Once()

	handler := services.AvailabilityCacheHandler(cache)

	result, err := handler(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, "cache_invalidated", result.Action)

	_, err = handler(ctx, evt)
	assert.Error(t, err)
	assert.False(t, domain.IsPermanent(err))

	_, err = handler(ctx, &domain.Event{Type: domain.EventAvailabilityChanged, Payload: []byte(`{"offeringId":"o1"}`)})
	assert.True(t, domain.IsPermanent(err))
}

func TestGatewayAuditHandlerLogsRequest(t *testing.T) {
	logger, hook := test.NewNullLogger()

	evt := &domain.Event{
		Type:    domain.EventGatewayRequest,
		Payload: json.RawMessage(`{"method":"POST","path":"/api/reservations/reservations","destination":"reservations","status":201,"subject":"devotee"}`),
	}

	result, err := services.GatewayAuditHandler(logger)(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "reservations", hook.LastEntry().Data["destination"])
	assert.Equal(t, int64(201), hook.LastEntry().Data["status"])
}
