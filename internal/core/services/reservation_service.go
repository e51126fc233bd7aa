package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	defaultPersistTimeout      = 10 * time.Second
	defaultCompensationTimeout = 5 * time.Second
)

type ReservationService struct {
	inventory           *Inventory
	reservations        ports.ReservationRepository
	outbox              ports.OutboxRepository
	publisher           ports.EventPublisher
	source              string
	persistTimeout      time.Duration
	compensationTimeout time.Duration
	log                 logrus.FieldLogger
}

func NewReservationService(
	inventory *Inventory,
	reservations ports.ReservationRepository,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	source string,
	log logrus.FieldLogger,
) *ReservationService {
	return &ReservationService{
		inventory:           inventory,
		reservations:        reservations,
		outbox:              outbox,
		publisher:           publisher,
		source:              source,
		persistTimeout:      defaultPersistTimeout,
		compensationTimeout: defaultCompensationTimeout,
		log:                 log,
	}
}

// Reserve grants quantity slots of an offering to requesterID. Either the
// slots are taken and a confirmed reservation is stored, or neither happens.
func (s *ReservationService) Reserve(ctx context.Context, requesterID, offeringID string, quantity int) (*domain.Reservation, error) {
	if requesterID == "" {
		return nil, domain.ErrInvalidRequester
	}

	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	offering, err := s.inventory.TryReserve(ctx, offeringID, quantity)
	if err != nil {
		return nil, err
	}

	reservation := domain.NewReservation(offeringID, requesterID, quantity)

	created, err := domain.ReservationCreatedEvent(reservation, s.source)
	if err != nil {
		s.compensate(ctx, offeringID, quantity, err)
		return nil, fmt.Errorf("build reservation event: %w: %w", domain.ErrTransient, err)
	}

	if err := s.persist(ctx, reservation, created); err != nil {
		switch stored, lookupErr := s.stored(ctx, reservation.ID); {
		case stored:
			s.log.WithError(err).WithField("reservation_id", reservation.ID).
				Warn("reservation stored despite commit error, keeping slots")
		case lookupErr != nil:
			s.log.WithError(lookupErr).WithField("reservation_id", reservation.ID).
				Error("cannot tell whether reservation was stored, slots left for reconciliation")
			return nil, fmt.Errorf("persist reservation: %w: %w", domain.ErrTransient, err)
		default:
			s.compensate(ctx, offeringID, quantity, err)
			return nil, fmt.Errorf("persist reservation: %w: %w", domain.ErrTransient, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"offering_id":    offeringID,
		"requester_id":   requesterID,
		"quantity":       quantity,
		"available":      offering.AvailableSlots,
	}).Info("reservation confirmed")

	s.publish(ctx, created)
	s.announceAvailability(ctx, offering)

	return reservation, nil
}

// persist stores the reservation on a context detached from the caller, so
// a client going away cannot abort the commit halfway.
func (s *ReservationService) persist(ctx context.Context, reservation *domain.Reservation, created *domain.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	return s.reservations.Create(ctx, reservation, []*domain.Event{created})
}

// stored reports whether a reservation whose Create returned an error was
// committed anyway.
func (s *ReservationService) stored(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	_, err := s.reservations.GetByID(ctx, reservationID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrReservationNotFound):
		return false, nil
	default:
		return false, err
	}
}

// compensate undoes a decrement whose reservation could not be stored. It
// runs even if the caller has gone away; a failure here is left to the
// reconciliation sweep.
func (s *ReservationService) compensate(ctx context.Context, offeringID string, quantity int, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	entry := s.log.WithFields(logrus.Fields{
		"offering_id": offeringID,
		"quantity":    quantity,
		"cause":       cause.Error(),
	})

	offering, err := s.inventory.Release(ctx, offeringID, quantity)
	if err != nil {
		entry.WithError(err).Error("compensating release failed, slots left for reconciliation")
		return
	}

	entry.Warn("reservation not stored, slots released")
	s.announceAvailability(ctx, offering)
}

// Cancel marks a confirmed reservation cancelled and returns its slots.
func (s *ReservationService) Cancel(ctx context.Context, reservationID uuid.UUID, requesterID string) (*domain.Reservation, error) {
	reservation, err := s.Get(ctx, reservationID, requesterID)
	if err != nil {
		return nil, err
	}

	if !reservation.IsConfirmed() {
		return nil, domain.ErrAlreadyCancelled
	}

	cancelledAt := time.Now().UTC()
	reservation.Status = domain.ReservationCancelled
	reservation.CancelledAt = &cancelledAt

	cancelled, err := domain.ReservationCancelledEvent(reservation, s.source)
	if err != nil {
		return nil, fmt.Errorf("build cancellation event: %w: %w", domain.ErrTransient, err)
	}

	if err := s.reservations.Cancel(ctx, reservationID, cancelledAt, []*domain.Event{cancelled}); err != nil {
		if errors.Is(err, domain.ErrAlreadyCancelled) || errors.Is(err, domain.ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("persist cancellation: %w: %w", domain.ErrTransient, err)
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	entry := s.log.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"offering_id":    reservation.OfferingID,
		"quantity":       reservation.Quantity,
	})

	offering, err := s.inventory.Release(releaseCtx, reservation.OfferingID, reservation.Quantity)
	if err != nil {
		entry.WithError(err).Error("release after cancellation failed, slots left for reconciliation")
	} else {
		entry.WithField("available", offering.AvailableSlots).Info("reservation cancelled")
		s.announceAvailability(releaseCtx, offering)
	}

	s.publish(ctx, cancelled)

	return reservation, nil
}

func (s *ReservationService) Get(ctx context.Context, reservationID uuid.UUID, requesterID string) (*domain.Reservation, error) {
	if requesterID == "" {
		return nil, domain.ErrInvalidRequester
	}

	reservation, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if !reservation.OwnedBy(requesterID) {
		return nil, domain.ErrForbidden
	}

	return reservation, nil
}

func (s *ReservationService) ListByRequester(ctx context.Context, requesterID string) ([]domain.Reservation, error) {
	if requesterID == "" {
		return nil, domain.ErrInvalidRequester
	}

	return s.reservations.ListByRequester(ctx, requesterID)
}

// publish hands outbox events to the bus. A failure leaves them pending for
// the outbox relay and never affects the caller.
func (s *ReservationService) publish(ctx context.Context, events ...*domain.Event) {
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.log.WithError(err).WithField("events", len(events)).Warn("publish failed, events stay in outbox")
		return
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, evt := range events {
		ids = append(ids, evt.ID)
	}

	if err := s.outbox.MarkPublished(ctx, ids); err != nil {
		s.log.WithError(err).Warn("failed to mark outbox events published")
	}
}

func (s *ReservationService) announceAvailability(ctx context.Context, offering *domain.Offering) {
	evt, err := domain.AvailabilityChangedEvent(offering, s.source)
	if err != nil {
		s.log.WithError(err).Warn("failed to build availability event")
		return
	}

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.WithError(err).WithField("offering_id", offering.ID).Warn("failed to publish availability change")
	}
}
