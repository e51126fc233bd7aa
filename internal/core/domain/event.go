package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventProcessing EventStatus = "processing"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventAvailabilityChanged  = "offering.availability_changed"
	EventGatewayRequest       = "gateway.request"
)

// eventNamespace seeds the name-based ids of events that must stay stable
// when the same fact is published again.
var eventNamespace = uuid.MustParse("8f0c5a62-3d0e-4b7c-9a51-6f2e1c7d4b90")

type Event struct {
	ID          uuid.UUID
	Type        string
	Key         string
	Payload     json.RawMessage
	Source      string
	Status      EventStatus
	Attempts    int
	Error       string
	CreatedAt   time.Time
	ClaimedAt   time.Time
	ProcessedAt *time.Time
}

// DeriveEventID returns the same id for the same (type, subject) pair.
func DeriveEventID(eventType, subject string) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(eventType+":"+subject))
}

func NewEvent(eventType, key, source string, payload any) (*Event, error) {
	return newEvent(uuid.New(), eventType, key, source, payload)
}

func NewDerivedEvent(eventType, key, subject, source string, payload any) (*Event, error) {
	return newEvent(DeriveEventID(eventType, subject), eventType, key, source, payload)
}

func newEvent(id uuid.UUID, eventType, key, source string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        id,
		Type:      eventType,
		Key:       key,
		Payload:   raw,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type ReservationPayload struct {
	ReservationID string    `json:"reservationId"`
	OfferingID    string    `json:"offeringId"`
	RequesterID   string    `json:"requesterId"`
	Quantity      int       `json:"quantity"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type AvailabilityPayload struct {
	OfferingID     string `json:"offeringId"`
	AvailableSlots int    `json:"availableSlots"`
	TotalSlots     int    `json:"totalSlots"`
	Version        int    `json:"version"`
	Status         string `json:"status"`
}

func ReservationCreatedEvent(r *Reservation, source string) (*Event, error) {
	return reservationEvent(EventReservationCreated, r, source)
}

func ReservationCancelledEvent(r *Reservation, source string) (*Event, error) {
	return reservationEvent(EventReservationCancelled, r, source)
}

func reservationEvent(eventType string, r *Reservation, source string) (*Event, error) {
	id := r.ID.String()

	return NewDerivedEvent(eventType, id, id, source, ReservationPayload{
		ReservationID: id,
		OfferingID:    r.OfferingID,
		RequesterID:   r.RequesterID,
		Quantity:      r.Quantity,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	})
}

// AvailabilityChangedEvent describes the offering at one version; each
// version is a distinct fact.
func AvailabilityChangedEvent(o *Offering, source string) (*Event, error) {
	subject := fmt.Sprintf("%s@%d", o.ID, o.Version)

	return NewDerivedEvent(EventAvailabilityChanged, o.ID, subject, source, AvailabilityPayload{
		OfferingID:     o.ID,
		AvailableSlots: o.AvailableSlots,
		TotalSlots:     o.TotalSlots,
		Version:        o.Version,
		Status:         string(o.Status()),
	})
}

// Envelope is the wire form of an event on the bus.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *Event) Envelope() Envelope {
	return Envelope{
		ID:        e.ID.String(),
		Type:      e.Type,
		Key:       e.Key,
		Payload:   e.Payload,
		Source:    e.Source,
		CreatedAt: e.CreatedAt,
	}
}

func (env Envelope) Event() (*Event, error) {
	id, err := uuid.Parse(env.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid event id %q: %w", env.ID, err)
	}

	if env.Type == "" {
		return nil, fmt.Errorf("event %s has no type", env.ID)
	}

	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	return &Event{
		ID:        id,
		Type:      env.Type,
		Key:       env.Key,
		Payload:   payload,
		Source:    env.Source,
		CreatedAt: env.CreatedAt,
	}, nil
}
