// Package kafka carries hub events over a Kafka topic. Messages are keyed by
// the event key so every event about one aggregate lands on one partition
// in publish order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"

	DefaultTopic   = "reservation-events"
	DefaultGroupID = "reservation-service-group"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

func (c Config) topic() string {
	if c.Topic == "" {
		return DefaultTopic
	}
	return c.Topic
}

func (c Config) groupID() string {
	if c.GroupID == "" {
		return DefaultGroupID
	}
	return c.GroupID
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	log    logrus.FieldLogger
}

func NewProducer(cfg Config, log logrus.FieldLogger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.topic(),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	log.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.topic(),
	}).Info("kafka producer configured")

	return newProducer(writer, log)
}

func newProducer(writer messageWriter, log logrus.FieldLogger) *Producer {
	return &Producer{writer: writer, log: log}
}

// Publish writes all events in one batch and returns once every in-sync
// replica has them.
func (p *Producer) Publish(ctx context.Context, events ...*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		msg, err := encode(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events to kafka: %w", len(msgs), err)
	}

	for _, evt := range events {
		p.log.WithFields(logrus.Fields{
			"event_id":   evt.ID,
			"event_type": evt.Type,
			"key":        evt.Key,
		}).Debug("event published")
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(evt *domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(evt.Envelope())
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", evt.ID, err)
	}

	return kafka.Message{
		Key:   []byte(evt.Key),
		Value: value,
		Time:  evt.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(evt.ID.String())},
			{Key: HeaderEventType, Value: []byte(evt.Type)},
		},
	}, nil
}

func decode(msg kafka.Message) (*domain.Event, error) {
	var env domain.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, fmt.Errorf("decode envelope at offset %d: %w: %w", msg.Offset, domain.ErrMalformedEvent, err)
	}

	evt, err := env.Event()
	if err != nil {
		return nil, fmt.Errorf("envelope at offset %d: %w: %w", msg.Offset, domain.ErrMalformedEvent, err)
	}

	return evt, nil
}

// EnsureTopic creates the topic if the cluster does not have it yet.
func EnsureTopic(ctx context.Context, cfg Config, partitions int, log logrus.FieldLogger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.topic(),
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.WithError(err).WithField("topic", cfg.topic()).Warn("could not create topic, it may already exist")
		return nil
	}

	log.WithField("topic", cfg.topic()).Info("kafka topic created")
	return nil
}
