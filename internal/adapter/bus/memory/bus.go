// Package memory is an in-process event bus for the standalone mode and
// tests. Each subscriber sees every event in publish order, which keeps
// per-key order, and a failing event is retried before the next one.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetryBase    = 50 * time.Millisecond
	retryCap            = 5 * time.Second
	defaultBacklogLimit = 1024
)

type subscriber struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*domain.Event
	inFlight bool
	closed   bool
}

func newSubscriber(backlog []*domain.Event) *subscriber {
	s := &subscriber{queue: backlog}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber) push(evt *domain.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()
	s.cond.Signal()
}

// next blocks until an event is queued or the subscriber is closed.
func (s *subscriber) next() (*domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed {
		return nil, false
	}

	evt := s.queue[0]
	s.queue = s.queue[1:]
	s.inFlight = true

	return evt, true
}

func (s *subscriber) done() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *subscriber) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	if s.inFlight {
		n++
	}
	return n
}

type Bus struct {
	mu         sync.Mutex
	subs       map[*subscriber]struct{}
	backlog    []*domain.Event
	maxBacklog int
	dropped    int
	retryBase  time.Duration
	log        logrus.FieldLogger
}

func NewBus(log logrus.FieldLogger) *Bus {
	return &Bus{
		subs:       make(map[*subscriber]struct{}),
		maxBacklog: defaultBacklogLimit,
		retryBase:  defaultRetryBase,
		log:        log,
	}
}

// WithBacklogLimit caps how many events are held while nobody is
// subscribed. The oldest are dropped first.
func (b *Bus) WithBacklogLimit(n int) *Bus {
	b.maxBacklog = n
	return b
}

// WithRetryBase sets the first retry delay for failing handlers.
func (b *Bus) WithRetryBase(d time.Duration) *Bus {
	b.retryBase = d
	return b
}

// Publish queues events for every subscriber. Events published while nobody
// is subscribed are kept for the first subscriber, up to the backlog limit.
func (b *Bus) Publish(ctx context.Context, events ...*domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, evt := range events {
		cp := *evt
		if len(b.subs) == 0 {
			b.holdLocked(&cp)
			continue
		}
		for s := range b.subs {
			s.push(&cp)
		}
	}

	return nil
}

func (b *Bus) holdLocked(evt *domain.Event) {
	b.backlog = append(b.backlog, evt)
	if over := len(b.backlog) - b.maxBacklog; over > 0 {
		b.backlog = append(b.backlog[:0:0], b.backlog[over:]...)
		if b.dropped == 0 {
			b.log.WithField("limit", b.maxBacklog).Warn("no subscriber, dropping oldest backlog events")
		}
		b.dropped += over
	}
}

// Redeliver queues events again, as a broker does after a consumer crashed
// before committing.
func (b *Bus) Redeliver(ctx context.Context, events ...*domain.Event) error {
	return b.Publish(ctx, events...)
}

// Pending counts events queued or being handled across subscribers.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.backlog)
	for s := range b.subs {
		n += s.pending()
	}
	return n
}

func (b *Bus) Subscribe(ctx context.Context, handler ports.EventHandlerFunc) error {
	b.mu.Lock()
	sub := newSubscriber(b.backlog)
	b.backlog = nil
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, sub.close)
	defer stop()

	for {
		evt, ok := sub.next()
		if !ok {
			return nil
		}

		delivered := b.deliver(ctx, handler, evt)
		sub.done()

		if !delivered {
			return nil
		}
	}
}

func (b *Bus) deliver(ctx context.Context, handler ports.EventHandlerFunc, evt *domain.Event) bool {
	entry := b.log.WithFields(logrus.Fields{"event_id": evt.ID, "event_type": evt.Type})

	backoff := b.retryBase
	for attempt := 1; ; attempt++ {
		err := handler(ctx, evt)
		if err == nil {
			return true
		}

		if domain.IsPermanent(err) {
			entry.WithError(err).Error("dropping event that cannot be processed")
			return true
		}

		entry.WithError(err).WithField("attempt", attempt).Warn("event handler failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		backoff = min(backoff*2, retryCap)
	}
}
