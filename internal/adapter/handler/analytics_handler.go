package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

type ReservedCountResponse struct {
	OfferingID string `json:"offeringId"`
	Reserved   int64  `json:"reserved"`
}

// AnalyticsHandler serves the reserved-slot counters kept by the event
// processor.
type AnalyticsHandler struct {
	counter ports.ReservationCounter
	log     logrus.FieldLogger
}

func NewAnalyticsHandler(counter ports.ReservationCounter, log logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{counter: counter, log: log}
}

func (h *AnalyticsHandler) Routes(r chi.Router) {
	r.Get("/analytics/offerings/{id}", h.Reserved)
}

// Reserved handles GET /analytics/offerings/{id}
func (h *AnalyticsHandler) Reserved(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "offering id is required")
		return
	}

	n, err := h.counter.Reserved(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("offering_id", id).Error("failed to read reserved counter")
		writeError(w, http.StatusServiceUnavailable, domain.KindTransient, domain.ErrTransient.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReservedCountResponse{OfferingID: id, Reserved: n})
}
