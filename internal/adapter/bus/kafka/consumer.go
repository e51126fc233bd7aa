package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	retryBase = 100 * time.Millisecond
	retryCap  = 10 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the topic as part of a consumer group. An offset is only
// committed after the handler accepted the message, so delivery is at
// least once.
type Consumer struct {
	reader    messageReader
	retryBase time.Duration
	log       logrus.FieldLogger
}

func NewConsumer(cfg Config, log logrus.FieldLogger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.groupID(),
		Topic:          cfg.topic(),
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})

	log.WithFields(logrus.Fields{
		"brokers":  cfg.Brokers,
		"topic":    cfg.topic(),
		"group_id": cfg.groupID(),
	}).Info("kafka consumer configured")

	return newConsumer(reader, log)
}

func newConsumer(reader messageReader, log logrus.FieldLogger) *Consumer {
	return &Consumer{reader: reader, retryBase: retryBase, log: log}
}

// Subscribe blocks, handing each message to handler until ctx is done.
func (c *Consumer) Subscribe(ctx context.Context, handler ports.EventHandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		entry := c.log.WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		})

		evt, err := decode(msg)
		if err != nil {
			entry.WithError(err).Error("skipping undecodable message")
		} else if !c.deliver(ctx, handler, evt, entry) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// deliver retries handler on the same message until it succeeds or returns
// a permanent error. It reports false if ctx ended first.
func (c *Consumer) deliver(ctx context.Context, handler ports.EventHandlerFunc, evt *domain.Event, entry *logrus.Entry) bool {
	entry = entry.WithFields(logrus.Fields{"event_id": evt.ID, "event_type": evt.Type})

	backoff := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handler(ctx, evt)
		if err == nil {
			return true
		}

		if domain.IsPermanent(err) {
			entry.WithError(err).Error("dropping event that cannot be processed")
			return true
		}

		level := logrus.WarnLevel
		if errors.Is(err, domain.ErrEventInProgress) {
			level = logrus.DebugLevel
		}
		entry.WithError(err).WithField("attempt", attempt).Log(level, "event handler failed, retrying")

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

func (c *Consumer) Close() error {
	return c.reader.Close()
}
