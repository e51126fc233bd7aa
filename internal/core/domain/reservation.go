package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID          uuid.UUID
	OfferingID  string
	RequesterID string
	Quantity    int
	Status      ReservationStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

func NewReservation(offeringID, requesterID string, quantity int) *Reservation {
	return &Reservation{
		ID:          uuid.New(),
		OfferingID:  offeringID,
		RequesterID: requesterID,
		Quantity:    quantity,
		Status:      ReservationConfirmed,
		CreatedAt:   time.Now().UTC(),
	}
}

func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationConfirmed
}

func (r *Reservation) OwnedBy(requesterID string) bool {
	return r.RequesterID == requesterID
}
