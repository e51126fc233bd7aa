package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type OfferingRepository interface {
	Create(ctx context.Context, offering *domain.Offering) error
	GetByID(ctx context.Context, offeringID string) (*domain.Offering, error)
	List(ctx context.Context) ([]domain.Offering, error)
	// CompareAndSwapAvailability sets available slots and bumps the version
	// only if the stored version equals expectedVersion. It returns
	// domain.ErrVersionConflict otherwise.
	CompareAndSwapAvailability(ctx context.Context, offeringID string, expectedVersion int, available int) error
}

type ReservationRepository interface {
	// Create stores the reservation and its outbox events atomically.
	Create(ctx context.Context, reservation *domain.Reservation, outbox []*domain.Event) error
	GetByID(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error)
	ListByRequester(ctx context.Context, requesterID string) ([]domain.Reservation, error)
	// Cancel flips a confirmed reservation to cancelled and stores the outbox
	// events atomically. It returns domain.ErrAlreadyCancelled when the
	// reservation was not confirmed.
	Cancel(ctx context.Context, reservationID uuid.UUID, cancelledAt time.Time, outbox []*domain.Event) error
	ConfirmedQuantities(ctx context.Context) (map[string]int, error)
}

type OutboxRepository interface {
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error
}

type EventRepository interface {
	Get(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)
	// Create inserts the event if absent, returning domain.ErrAlreadyExists
	// when another delivery stored it first.
	Create(ctx context.Context, event *domain.Event) error
	// ClaimRetry takes ownership of a failed or stale processing event for
	// one more attempt and marks it processing. It returns
	// domain.ErrEventInProgress if the event is completed or the attempt
	// count moved on.
	ClaimRetry(ctx context.Context, eventID uuid.UUID, attempts int) error
	// Finish records the outcome; completed events are never changed.
	Finish(ctx context.Context, eventID uuid.UUID, status domain.EventStatus, errMsg string, processedAt time.Time) error
}
