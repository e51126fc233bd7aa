package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/handler"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/memory"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ...*domain.Event) error { return nil }

func newAPI(t *testing.T) (http.Handler, string) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	offerings := memory.NewOfferingRepository()
	reservations := memory.NewReservationRepository()

	offering, err := domain.NewOffering("Babadham Mandir", "VIP", time.Date(2023, 8, 5, 0, 0, 0, 0, time.UTC), 5, 600)
	require.NoError(t, err)
	require.NoError(t, offerings.Create(context.Background(), offering))

	inventory := services.NewInventory(offerings, nil, services.InventoryConfig{}, logger)
	svc := services.NewReservationService(inventory, reservations, reservations, discardPublisher{}, "test", logger)

	r := chi.NewRouter()
	r.Use(handler.RequestLogger(logger))
	r.Get("/health", handler.HealthCheck("reservation-service"))
	handler.NewReservationHandler(svc, inventory).Routes(r)

	return r, offering.ID
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(domain.HeaderUserID, user)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestReservationFlow(t *testing.T) {
	api, offeringID := newAPI(t)

	rec := do(t, api, http.MethodPost, "/reservations", "devotee-1", `{"offeringId":"`+offeringID+`","quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[handler.ReservationResponse](t, rec)
	assert.Equal(t, "confirmed", created.Status)
	assert.Equal(t, 3, created.Quantity)

	rec = do(t, api, http.MethodPost, "/reservations", "devotee-2", `{"offeringId":"`+offeringID+`","quantity":3}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.KindInsufficientAvailability, decodeBody[handler.ErrorResponse](t, rec).ErrorKind)

	rec = do(t, api, http.MethodGet, "/offerings/"+offeringID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	offering := decodeBody[handler.OfferingResponse](t, rec)
	assert.Equal(t, 2, offering.AvailableSlots)
	assert.Equal(t, "2023-08-05", offering.Date)

	rec = do(t, api, http.MethodGet, "/reservations/"+created.ReservationID.String(), "devotee-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, api, http.MethodPost, "/reservations/"+created.ReservationID.String()+"/cancel", "devotee-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody[handler.ReservationResponse](t, rec).Status)

	rec = do(t, api, http.MethodPost, "/reservations/"+created.ReservationID.String()+"/cancel", "devotee-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.KindAlreadyCancelled, decodeBody[handler.ErrorResponse](t, rec).ErrorKind)

	rec = do(t, api, http.MethodGet, "/reservations", "devotee-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]handler.ReservationResponse](t, rec), 1)
}

func TestReservationWireFormat(t *testing.T) {
	api, offeringID := newAPI(t)

	rec := do(t, api, http.MethodPost, "/reservations", "devotee-1", `{"offeringId":"`+offeringID+`","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, offeringID, body["offeringId"])
	assert.Equal(t, float64(2), body["quantity"])
	assert.Equal(t, "confirmed", body["status"])
	assert.NotEmpty(t, body["reservationId"])
	assert.NotEmpty(t, body["createdAt"])

	rec = do(t, api, http.MethodPost, "/reservations", "devotee-1", `{"offering_id":"`+offeringID+`","quantity":2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var failure map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	assert.Equal(t, string(domain.KindInvalidRequest), failure["errorKind"])
	assert.NotEmpty(t, failure["message"])
}

func TestReservationErrors(t *testing.T) {
	api, offeringID := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
		kind   domain.ErrorKind
	}{
		{"no identity", http.MethodPost, "/reservations", "", `{"offeringId":"x","quantity":1}`, http.StatusUnauthorized, domain.KindUnauthorized},
		{"zero quantity", http.MethodPost, "/reservations", "d", `{"offeringId":"` + offeringID + `","quantity":0}`, http.StatusBadRequest, domain.KindInvalidQuantity},
		{"missing offering id", http.MethodPost, "/reservations", "d", `{"quantity":1}`, http.StatusBadRequest, domain.KindInvalidRequest},
		{"unknown field", http.MethodPost, "/reservations", "d", `{"offering":"x"}`, http.StatusBadRequest, domain.KindInvalidRequest},
		{"unknown offering", http.MethodPost, "/reservations", "d", `{"offeringId":"nowhere","quantity":1}`, http.StatusNotFound, domain.KindOfferingNotFound},
		{"bad reservation id", http.MethodGet, "/reservations/not-a-uuid", "d", "", http.StatusNotFound, domain.KindReservationNotFound},
		{"offering not found", http.MethodGet, "/offerings/nowhere", "", "", http.StatusNotFound, domain.KindOfferingNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, api, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decodeBody[handler.ErrorResponse](t, rec).ErrorKind)
		})
	}
}

func TestHealthAndListOfferings(t *testing.T) {
	api, offeringID := newAPI(t)

	rec := do(t, api, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"reservation-service"}`, rec.Body.String())

	rec = do(t, api, http.MethodGet, "/offerings", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]handler.OfferingResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, offeringID, list[0].ID)
	assert.Equal(t, "available", list[0].Status)
}

func newIngress(t *testing.T) http.Handler {
	t.Helper()

	logger, _ := test.NewNullLogger()
	processor := services.NewProcessor(memory.NewEventRepository(), logger)
	processor.Register(domain.EventGatewayRequest, services.GatewayAuditHandler(logger))
	processor.Register("payment.failed", func(context.Context, *domain.Event) (services.HandlerResult, error) {
		return services.HandlerResult{}, assert.AnError
	})

	r := chi.NewRouter()
	handler.NewEventHandler(processor, logger).Routes(r)
	return r
}

func TestIngest(t *testing.T) {
	ingress := newIngress(t)

	body := `{"id":"6f1c7a1e-8f0b-4a52-9d6b-0c2f3e4a5b6c","event_type":"gateway.request","payload":{"path":"/api/x"},"source":"gateway"}`

	rec := do(t, ingress, http.MethodPost, "/events", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[handler.EventResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "audit_logged", resp.Result.Action)

	rec = do(t, ingress, http.MethodPost, "/events", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.ActionDuplicate, decodeBody[handler.EventResponse](t, rec).Result.Action)

	rec = do(t, ingress, http.MethodPost, "/events", "", `{"event_type":"temple.opened"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.ActionNoHandler, decodeBody[handler.EventResponse](t, rec).Result.Action)
}

func TestIngestRejects(t *testing.T) {
	ingress := newIngress(t)

	rec := do(t, ingress, http.MethodPost, "/events", "", `{"payload":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	unsupported := decodeBody[handler.UnsupportedEventResponse](t, rec)
	assert.Equal(t, []string{"gateway.request", "payment.failed"}, unsupported.SupportedEvents)

	rec = do(t, ingress, http.MethodPost, "/events", "", `{"event_type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, ingress, http.MethodPost, "/events", "", `{"event_type":"gateway.request","payload":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, ingress, http.MethodPost, "/events", "", `{"event_type":"gateway.request","id":"42"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestHandlerFailure(t *testing.T) {
	ingress := newIngress(t)

	rec := do(t, ingress, http.MethodPost, "/events", "", `{"event_type":"payment.failed","payload":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[handler.EventResponse](t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}
