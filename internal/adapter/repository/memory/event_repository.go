package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type EventRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]domain.Event
}

func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[uuid.UUID]domain.Event)}
}

func (r *EventRepository) Get(_ context.Context, eventID uuid.UUID) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evt, ok := r.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	return &evt, nil
}

func (r *EventRepository) Create(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.ID]; ok {
		return domain.ErrAlreadyExists
	}

	stored := *event
	stored.Status = domain.EventProcessing
	stored.Attempts = 1
	stored.ClaimedAt = time.Now().UTC()
	r.events[event.ID] = stored

	return nil
}

func (r *EventRepository) ClaimRetry(_ context.Context, eventID uuid.UUID, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	evt, ok := r.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}

	if evt.Status == domain.EventCompleted || evt.Attempts != attempts {
		return domain.ErrEventInProgress
	}

	evt.Status = domain.EventProcessing
	evt.Attempts++
	evt.ClaimedAt = time.Now().UTC()
	r.events[eventID] = evt

	return nil
}

func (r *EventRepository) Finish(_ context.Context, eventID uuid.UUID, status domain.EventStatus, errMsg string, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	evt, ok := r.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}

	if evt.Status == domain.EventCompleted {
		return nil
	}

	evt.Status = status
	evt.Error = errMsg
	evt.ProcessedAt = &processedAt
	r.events[eventID] = evt

	return nil
}
