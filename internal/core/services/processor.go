package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	ActionNoHandler = "no_handler"
	ActionDuplicate = "duplicate"

	defaultStaleClaim = 5 * time.Minute
)

type HandlerResult struct {
	Processed bool   `json:"processed"`
	Action    string `json:"action"`
}

type EventHandler func(ctx context.Context, event *domain.Event) (HandlerResult, error)

// Processor runs each event id's handler to completion at most once, however
// many times the event is delivered.
type Processor struct {
	events     ports.EventRepository
	staleClaim time.Duration
	log        logrus.FieldLogger

	mu       sync.RWMutex
	handlers map[string]EventHandler
}

func NewProcessor(events ports.EventRepository, log logrus.FieldLogger) *Processor {
	return &Processor{
		events:     events,
		staleClaim: defaultStaleClaim,
		log:        log,
		handlers:   make(map[string]EventHandler),
	}
}

// WithStaleClaim sets how long a processing record may sit before another
// delivery is allowed to take it over.
func (p *Processor) WithStaleClaim(d time.Duration) *Processor {
	p.staleClaim = d
	return p
}

func (p *Processor) Register(eventType string, handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[eventType] = handler
}

func (p *Processor) Supported() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	types := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

func (p *Processor) handler(eventType string) (EventHandler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, ok := p.handlers[eventType]
	return h, ok
}

func (p *Processor) Process(ctx context.Context, event *domain.Event) (HandlerResult, error) {
	if event == nil || event.Type == "" {
		return HandlerResult{}, fmt.Errorf("event without type: %w", domain.ErrMalformedEvent)
	}

	entry := p.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"source":     event.Source,
	})

	done, err := p.claim(ctx, event)
	if err != nil {
		return HandlerResult{}, err
	}
	if done {
		entry.Debug("event already processed, skipping")
		return HandlerResult{Processed: false, Action: ActionDuplicate}, nil
	}

	handler, ok := p.handler(event.Type)
	if !ok {
		entry.Info("no handler registered for event type")
		if err := p.finish(ctx, event, domain.EventCompleted, ""); err != nil {
			return HandlerResult{}, err
		}
		return HandlerResult{Processed: false, Action: ActionNoHandler}, nil
	}

	result, handlerErr := p.run(ctx, handler, event)
	if handlerErr != nil {
		entry.WithError(handlerErr).Error("event handler failed")
		if err := p.finish(ctx, event, domain.EventFailed, handlerErr.Error()); err != nil {
			entry.WithError(err).Error("failed to record handler failure")
		}
		return result, handlerErr
	}

	if err := p.finish(ctx, event, domain.EventCompleted, ""); err != nil {
		return result, err
	}

	entry.WithField("action", result.Action).Info("event processed")
	return result, nil
}

// claim takes ownership of the event for this delivery. done is true when an
// earlier delivery already completed it.
func (p *Processor) claim(ctx context.Context, event *domain.Event) (done bool, err error) {
	stored, err := p.events.Get(ctx, event.ID)
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		err = p.events.Create(ctx, event)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return false, domain.ErrEventInProgress
		}
		if err != nil {
			return false, fmt.Errorf("record event %s: %w: %w", event.ID, domain.ErrTransient, err)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("load event %s: %w: %w", event.ID, domain.ErrTransient, err)
	}

	switch stored.Status {
	case domain.EventCompleted:
		return true, nil
	case domain.EventProcessing:
		if time.Since(stored.ClaimedAt) < p.staleClaim {
			return false, domain.ErrEventInProgress
		}
		p.log.WithField("event_id", event.ID).Warn("taking over stale event claim")
	}

	if err := p.events.ClaimRetry(ctx, event.ID, stored.Attempts); err != nil {
		if errors.Is(err, domain.ErrEventInProgress) {
			return false, err
		}
		return false, fmt.Errorf("claim event %s: %w: %w", event.ID, domain.ErrTransient, err)
	}

	return false, nil
}

// run calls the handler, turning a panic into a failed attempt.
func (p *Processor) run(ctx context.Context, handler EventHandler, event *domain.Event) (result HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, event)
}

// finish records the outcome on a context that survives the caller so a
// completed handler is never left looking unfinished.
func (p *Processor) finish(ctx context.Context, event *domain.Event, status domain.EventStatus, errMsg string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.events.Finish(ctx, event.ID, status, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish event %s: %w: %w", event.ID, domain.ErrTransient, err)
	}

	return nil
}

// Handle adapts the processor to a bus subscription.
func (p *Processor) Handle(ctx context.Context, event *domain.Event) error {
	_, err := p.Process(ctx, event)
	return err
}
