package services

import (
	"context"
	"fmt"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// RegisterDefaultHandlers wires the consumers of every event type the hub
// publishes. A nil counter or cache leaves that type unhandled.
func RegisterDefaultHandlers(p *Processor, counter ports.ReservationCounter, cache ports.AvailabilityCache, log logrus.FieldLogger) {
	if counter != nil {
		p.Register(domain.EventReservationCreated, ReservationCounterHandler(counter, 1))
		p.Register(domain.EventReservationCancelled, ReservationCounterHandler(counter, -1))
	}

	if cache != nil {
		p.Register(domain.EventAvailabilityChanged, AvailabilityCacheHandler(cache))
	}

	p.Register(domain.EventGatewayRequest, GatewayAuditHandler(log))
}

// ReservationCounterHandler adds sign * quantity to the offering's reserved
// counter once per event id.
func ReservationCounterHandler(counter ports.ReservationCounter, sign int) EventHandler {
	return func(ctx context.Context, event *domain.Event) (HandlerResult, error) {
		fields := gjson.GetManyBytes(event.Payload, "offeringId", "quantity")
		offeringID, quantity := fields[0], fields[1]

		if offeringID.String() == "" || quantity.Type != gjson.Number || quantity.Int() < 1 {
			return HandlerResult{}, fmt.Errorf("%s payload needs offeringId and quantity: %w", event.Type, domain.ErrMalformedEvent)
		}

		applied, err := counter.Apply(ctx, event.ID, offeringID.String(), sign*int(quantity.Int()))
		if err != nil {
			return HandlerResult{}, fmt.Errorf("update reserved counter for %s: %w", offeringID.String(), err)
		}

		if !applied {
			return HandlerResult{Processed: true, Action: "counter_already_applied"}, nil
		}

		return HandlerResult{Processed: true, Action: "counter_updated"}, nil
	}
}

// AvailabilityCacheHandler drops the cached availability of the changed
// offering so the next read goes to the store.
func AvailabilityCacheHandler(cache ports.AvailabilityCache) EventHandler {
	return func(ctx context.Context, event *domain.Event) (HandlerResult, error) {
		fields := gjson.GetManyBytes(event.Payload, "offeringId", "version")
		offeringID, version := fields[0].String(), fields[1]
		if offeringID == "" || version.Type != gjson.Number {
			return HandlerResult{}, fmt.Errorf("%s payload needs offeringId and version: %w", event.Type, domain.ErrMalformedEvent)
		}

		if err := cache.Invalidate(ctx, offeringID, int(version.Int())); err != nil {
			return HandlerResult{}, fmt.Errorf("invalidate availability of %s: %w", offeringID, err)
		}

		return HandlerResult{Processed: true, Action: "cache_invalidated"}, nil
	}
}

func GatewayAuditHandler(log logrus.FieldLogger) EventHandler {
	return func(_ context.Context, event *domain.Event) (HandlerResult, error) {
		fields := gjson.GetManyBytes(event.Payload, "method", "path", "destination", "status", "subject")

		log.WithFields(logrus.Fields{
			"event_id":    event.ID,
			"method":      fields[0].String(),
			"path":        fields[1].String(),
			"destination": fields[2].String(),
			"status":      fields[3].Int(),
			"subject":     fields[4].String(),
		}).Info("gateway request")

		return HandlerResult{Processed: true, Action: "audit_logged"}, nil
	}
}
