package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type EventResponse struct {
	Success   bool                    `json:"success"`
	EventID   uuid.UUID               `json:"event_id"`
	EventType string                  `json:"event_type"`
	Result    *services.HandlerResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

type UnsupportedEventResponse struct {
	Error           string   `json:"error"`
	SupportedEvents []string `json:"supported_events"`
}

// EventHandler accepts events pushed over HTTP instead of the bus.
type EventHandler struct {
	processor *services.Processor
	log       logrus.FieldLogger
}

func NewEventHandler(processor *services.Processor, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{processor: processor, log: log}
}

func (h *EventHandler) Routes(r chi.Router) {
	r.Post("/events", h.Ingest)
}

// Ingest handles POST /events
func (h *EventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil || !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "invalid JSON body")
		return
	}

	fields := gjson.GetManyBytes(body, "event_type", "payload", "source", "id")
	eventType, payload, source, rawID := fields[0], fields[1], fields[2], fields[3]

	if eventType.String() == "" {
		writeJSON(w, http.StatusBadRequest, UnsupportedEventResponse{
			Error:           "event_type is required",
			SupportedEvents: h.processor.Supported(),
		})
		return
	}

	if payload.Exists() && !payload.IsObject() {
		writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "payload must be a JSON object")
		return
	}

	raw := []byte(payload.Raw)
	if !payload.Exists() {
		raw = []byte("{}")
	}

	id := uuid.New()
	if rawID.Exists() {
		if id, err = uuid.Parse(rawID.String()); err != nil {
			writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "id must be a UUID")
			return
		}
	}

	evt := &domain.Event{
		ID:      id,
		Type:    eventType.String(),
		Payload: raw,
		Source:  source.String(),
	}
	if evt.Source == "" {
		evt.Source = "webhook"
	}

	result, err := h.processor.Process(r.Context(), evt)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, EventResponse{Success: true, EventID: evt.ID, EventType: evt.Type, Result: &result})
	case errors.Is(err, domain.ErrEventInProgress):
		writeJSON(w, http.StatusConflict, EventResponse{EventID: evt.ID, EventType: evt.Type, Error: err.Error()})
	case errors.Is(err, domain.ErrTransient):
		h.log.WithError(err).WithField("event_id", evt.ID).Error("failed to record event")
		writeError(w, http.StatusInternalServerError, domain.KindTransient, domain.ErrTransient.Error())
	default:
		writeJSON(w, http.StatusOK, EventResponse{EventID: evt.ID, EventType: evt.Type, Error: err.Error()})
	}
}
