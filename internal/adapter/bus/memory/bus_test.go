package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/adapter/bus/memory"
	repomemory "github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/memory"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func availabilityEvents(t *testing.T, offeringID string, n int) []*domain.Event {
	t.Helper()

	events := make([]*domain.Event, 0, n)
	for v := 1; v <= n; v++ {
		evt, err := domain.AvailabilityChangedEvent(&domain.Offering{ID: offeringID, TotalSlots: 10, AvailableSlots: 10 - v, Version: v}, "test")
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := memory.NewBus(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := availabilityEvents(t, "o1", 5)
	require.NoError(t, bus.Publish(ctx, events[:2]...))

	var mu sync.Mutex
	var seen []string
	go bus.Subscribe(ctx, func(_ context.Context, evt *domain.Event) error {
		mu.Lock()
		seen = append(seen, evt.ID.String())
		mu.Unlock()
		return nil
	})

	require.NoError(t, bus.Publish(ctx, events[2:]...))

	require.Eventually(t, func() bool { return bus.Pending() == 0 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
	for i, evt := range events {
		assert.Equal(t, evt.ID.String(), seen[i])
	}
}

func TestBus_RetriesFailingEventBeforeNext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := memory.NewBus(logger).WithRetryBase(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := availabilityEvents(t, "o1", 2)

	var mu sync.Mutex
	var order []int
	var failures atomic.Int32
	go bus.Subscribe(ctx, func(_ context.Context, evt *domain.Event) error {
		if evt.ID == events[0].ID && failures.Add(1) <= 2 {
			return errors.New("cache unavailable")
		}
		mu.Lock()
		defer mu.Unlock()
		if evt.ID == events[0].ID {
			order = append(order, 1)
		} else {
			order = append(order, 2)
		}
		return nil
	})

	require.NoError(t, bus.Publish(ctx, events...))
	require.Eventually(t, func() bool { return bus.Pending() == 0 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

// A reservation event delivered three times must only move the counter once.
func TestBus_TripleRedeliveryIsProcessedOnce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := memory.NewBus(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := services.NewProcessor(repomemory.NewEventRepository(), logger)

	var counted atomic.Int32
	processor.Register(domain.EventReservationCreated, func(_ context.Context, evt *domain.Event) (services.HandlerResult, error) {
		counted.Add(1)
		return services.HandlerResult{Processed: true, Action: "counted"}, nil
	})

	go bus.Subscribe(ctx, processor.Handle)

	evt, err := domain.ReservationCreatedEvent(domain.NewReservation("o1", "devotee", 1), "test")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, evt))
	require.NoError(t, bus.Redeliver(ctx, evt))
	require.NoError(t, bus.Redeliver(ctx, evt))

	require.Eventually(t, func() bool { return bus.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), counted.Load())
}

func TestBus_SubscribeReturnsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := memory.NewBus(logger)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bus.Subscribe(ctx, func(context.Context, *domain.Event) error { return nil }) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestBus_BacklogWithoutSubscriberIsBounded(t *testing.T) {
	logger, hook := test.NewNullLogger()
	bus := memory.NewBus(logger).WithBacklogLimit(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := availabilityEvents(t, "o1", 10)
	for _, evt := range events {
		require.NoError(t, bus.Publish(ctx, evt))
	}

	assert.Equal(t, 3, bus.Pending())
	assert.Len(t, hook.AllEntries(), 1)

	var mu sync.Mutex
	var seen []string
	go bus.Subscribe(ctx, func(_ context.Context, evt *domain.Event) error {
		mu.Lock()
		seen = append(seen, evt.ID.String())
		mu.Unlock()
		return nil
	})

	require.Eventually(t, func() bool { return bus.Pending() == 0 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	for i, evt := range events[7:] {
		assert.Equal(t, evt.ID.String(), seen[i])
	}
}

func TestBus_DefaultBacklogLimit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := memory.NewBus(logger)

	evt := availabilityEvents(t, "o1", 1)[0]
	for i := 0; i < 5000; i++ {
		require.NoError(t, bus.Publish(context.Background(), evt))
	}

	assert.Equal(t, 1024, bus.Pending())
}
