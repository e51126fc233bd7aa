package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
)

type CreateReservationRequest struct {
	OfferingID string `json:"offeringId" validate:"required,max=255"`
	Quantity   int    `json:"quantity"`
}

type ReservationResponse struct {
	ReservationID uuid.UUID  `json:"reservationId"`
	OfferingID    string     `json:"offeringId"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
}

func newReservationResponse(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ReservationID: r.ID,
		OfferingID:    r.OfferingID,
		Quantity:      r.Quantity,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		CancelledAt:   r.CancelledAt,
	}
}

type OfferingResponse struct {
	ID             string  `json:"id"`
	LocationID     string  `json:"locationId"`
	CategoryID     string  `json:"categoryId"`
	Date           string  `json:"date"`
	Price          float64 `json:"price"`
	TotalSlots     int     `json:"totalSlots"`
	AvailableSlots int     `json:"availableSlots"`
	Status         string  `json:"status"`
	Version        int     `json:"version"`
}

func newOfferingResponse(o *domain.Offering) OfferingResponse {
	return OfferingResponse{
		ID:             o.ID,
		LocationID:     o.LocationID,
		CategoryID:     o.CategoryID,
		Date:           o.Date.Format(domain.DateLayout),
		Price:          o.Price,
		TotalSlots:     o.TotalSlots,
		AvailableSlots: o.AvailableSlots,
		Status:         string(o.Status()),
		Version:        o.Version,
	}
}

type ReservationHandler struct {
	svc       *services.ReservationService
	inventory *services.Inventory
	validate  *validator.Validate
}

func NewReservationHandler(svc *services.ReservationService, inventory *services.Inventory) *ReservationHandler {
	return &ReservationHandler{
		svc:       svc,
		inventory: inventory,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the offering and reservation endpoints on r.
func (h *ReservationHandler) Routes(r chi.Router) {
	r.Get("/offerings", h.ListOfferings)
	r.Get("/offerings/{id}", h.GetOffering)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)

		r.Post("/reservations", h.CreateReservation)
		r.Get("/reservations", h.ListReservations)
		r.Get("/reservations/{id}", h.GetReservation)
		r.Post("/reservations/{id}/cancel", h.CancelReservation)
	})
}

// ListOfferings handles GET /offerings
func (h *ReservationHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.inventory.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]OfferingResponse, 0, len(offerings))
	for i := range offerings {
		resp = append(resp, newOfferingResponse(&offerings[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOffering handles GET /offerings/{id}
func (h *ReservationHandler) GetOffering(w http.ResponseWriter, r *http.Request) {
	offering, err := h.inventory.Availability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOfferingResponse(offering))
}

// CreateReservation handles POST /reservations
func (h *ReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, err.Error())
		return
	}

	reservation, err := h.svc.Reserve(r.Context(), identity.Subject, req.OfferingID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newReservationResponse(reservation))
}

// ListReservations handles GET /reservations and returns the caller's own.
func (h *ReservationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	list, err := h.svc.ListByRequester(r.Context(), identity.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]ReservationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newReservationResponse(&list[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReservation handles GET /reservations/{id}
func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, domain.ErrReservationNotFound)
		return
	}

	reservation, err := h.svc.Get(r.Context(), id, identity.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponse(reservation))
}

// CancelReservation handles POST /reservations/{id}/cancel
func (h *ReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, domain.ErrReservationNotFound)
		return
	}

	reservation, err := h.svc.Cancel(r.Context(), id, identity.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponse(reservation))
}
