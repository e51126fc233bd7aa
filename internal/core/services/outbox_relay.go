package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const defaultRelayBatch = 100

// OutboxRelay republishes outbox events whose inline publish never
// succeeded.
type OutboxRelay struct {
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	grace     time.Duration
	batchSize int
	log       logrus.FieldLogger
}

func NewOutboxRelay(outbox ports.OutboxRepository, publisher ports.EventPublisher, grace time.Duration, batchSize int, log logrus.FieldLogger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = defaultRelayBatch
	}

	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		grace:     grace,
		batchSize: batchSize,
		log:       log,
	}
}

// RelayOnce publishes one batch of pending events, oldest first, and returns
// how many were published.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.ListPending(ctx, time.Now().UTC().Add(-r.grace), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox events: %w", err)
	}

	if len(pending) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(pending))
	for i := range pending {
		evt := &pending[i]
		if err := r.publisher.Publish(ctx, evt); err != nil {
			r.log.WithError(err).WithField("event_id", evt.ID).Warn("outbox relay publish failed")
			break
		}
		published = append(published, evt.ID)
	}

	if len(published) > 0 {
		if err := r.outbox.MarkPublished(ctx, published); err != nil {
			return 0, fmt.Errorf("mark outbox events published: %w", err)
		}
	}

	r.log.WithFields(logrus.Fields{
		"pending":   len(pending),
		"published": len(published),
	}).Info("outbox relay pass finished")

	return len(published), nil
}
