// Package handler contains chi HTTP handlers that translate HTTP
// requests and responses to and from the service layer.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type ErrorResponse struct {
	ErrorKind domain.ErrorKind `json:"errorKind"`
	Message   string           `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	writeJSON(w, status, ErrorResponse{ErrorKind: kind, Message: msg})
}

// writeDomainError reports err with the status its kind maps to. Transient
// failures never leak their cause.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if kind == domain.KindTransient {
		msg = domain.ErrTransient.Error()
	}

	writeError(w, status, kind, msg)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidQuantity, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindOfferingNotFound, domain.KindReservationNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientAvailability, domain.KindAlreadyCancelled:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// HealthCheck handles GET /health
func HealthCheck(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": service})
	}
}
