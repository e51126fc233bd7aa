package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type outboxEntry struct {
	event       domain.Event
	publishedAt *time.Time
}

// ReservationRepository keeps reservations and their outbox under one lock so
// both are written together, like the Postgres transaction.
type ReservationRepository struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]domain.Reservation
	outbox       map[uuid.UUID]*outboxEntry
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{
		reservations: make(map[uuid.UUID]domain.Reservation),
		outbox:       make(map[uuid.UUID]*outboxEntry),
	}
}

func (r *ReservationRepository) Create(_ context.Context, reservation *domain.Reservation, outbox []*domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[reservation.ID]; ok {
		return domain.ErrAlreadyExists
	}

	r.reservations[reservation.ID] = *reservation
	r.appendOutbox(outbox)

	return nil
}

// appendOutbox keeps the first copy of an event id, like ON CONFLICT DO NOTHING.
func (r *ReservationRepository) appendOutbox(events []*domain.Event) {
	for _, evt := range events {
		if _, ok := r.outbox[evt.ID]; ok {
			continue
		}
		r.outbox[evt.ID] = &outboxEntry{event: *evt}
	}
}

func (r *ReservationRepository) GetByID(_ context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}

	return &res, nil
}

func (r *ReservationRepository) ListByRequester(_ context.Context, requesterID string) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []domain.Reservation
	for _, res := range r.reservations {
		if res.RequesterID == requesterID {
			list = append(list, res)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	return list, nil
}

func (r *ReservationRepository) Cancel(_ context.Context, reservationID uuid.UUID, cancelledAt time.Time, outbox []*domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}

	if !res.IsConfirmed() {
		return domain.ErrAlreadyCancelled
	}

	res.Status = domain.ReservationCancelled
	res.CancelledAt = &cancelledAt
	r.reservations[reservationID] = res
	r.appendOutbox(outbox)

	return nil
}

func (r *ReservationRepository) ConfirmedQuantities(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sums := make(map[string]int)
	for _, res := range r.reservations {
		if res.IsConfirmed() {
			sums[res.OfferingID] += res.Quantity
		}
	}

	return sums, nil
}

func (r *ReservationRepository) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []domain.Event
	for _, entry := range r.outbox {
		if entry.publishedAt == nil && entry.event.CreatedAt.Before(createdBefore) {
			pending = append(pending, entry.event)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

func (r *ReservationRepository) MarkPublished(_ context.Context, eventIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range eventIDs {
		if entry, ok := r.outbox[id]; ok && entry.publishedAt == nil {
			entry.publishedAt = &now
		}
	}

	return nil
}
