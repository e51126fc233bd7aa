package ports

import (
	"context"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, events ...*domain.Event) error
}

type EventHandlerFunc func(ctx context.Context, event *domain.Event) error

// EventSubscriber delivers every event at least once. Subscribe blocks until
// ctx is done or the subscription fails.
type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandlerFunc) error
}
