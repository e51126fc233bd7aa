// Package app assembles adapters from configuration for the binaries under
// cmd/.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/nick2726/mandir-reservation-hub/internal/adapter/bus/kafka"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/bus/memory"
	rediscache "github.com/nick2726/mandir-reservation-hub/internal/adapter/cache/redis"
	memrepo "github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/memory"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/postgres"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/nick2726/mandir-reservation-hub/internal/platform/config"
	"github.com/nick2726/mandir-reservation-hub/internal/platform/database"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func NewLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

type ReservationStore interface {
	ports.ReservationRepository
	ports.OutboxRepository
}

type Stores struct {
	Offerings    ports.OfferingRepository
	Reservations ReservationStore
	Events       ports.EventRepository
	db           *sql.DB
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenStores connects to the configured store. With migrate set the schema
// is brought up to date first.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool, log logrus.FieldLogger) (*Stores, error) {
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn("Using the in-memory store, state is lost on restart")
		return &Stores{
			Offerings:    memrepo.NewOfferingRepository(),
			Reservations: memrepo.NewReservationRepository(),
			Events:       memrepo.NewEventRepository(),
		}, nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := database.RunMigrations(ctx, db, log); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Stores{
		Offerings:    postgres.NewOfferingRepository(db),
		Reservations: postgres.NewReservationRepository(db),
		Events:       postgres.NewEventRepository(db),
		db:           db,
	}, nil
}

type Bus struct {
	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber
	closers    []func() error
}

func (b *Bus) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenBus returns the publisher and, when subscribe is set, a subscriber in
// the configured consumer group.
func OpenBus(ctx context.Context, cfg *config.Config, subscribe bool, log logrus.FieldLogger) (*Bus, error) {
	if cfg.Bus.Driver == config.DriverMemory {
		bus := memory.NewBus(log)
		return &Bus{Publisher: bus, Subscriber: bus}, nil
	}

	kcfg := kafka.Config{
		Brokers: cfg.Kafka.BrokerList(),
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}

	if err := kafka.EnsureTopic(ctx, kcfg, cfg.Kafka.Partitions, log); err != nil {
		return nil, err
	}

	producer := kafka.NewProducer(kcfg, log)
	bus := &Bus{Publisher: producer, closers: []func() error{producer.Close}}

	if subscribe {
		consumer := kafka.NewConsumer(kcfg, log)
		bus.Subscriber = consumer
		bus.closers = append(bus.closers, consumer.Close)
	}

	return bus, nil
}

// OpenAuditPublisher returns the publisher for gateway audit events. An
// in-process bus has no consumer in the gateway, so audit events are
// disabled there and the publisher is nil.
func OpenAuditPublisher(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ports.EventPublisher, func() error, error) {
	if cfg.Bus.Driver == config.DriverMemory {
		log.Warn("In-memory bus selected, gateway audit events are disabled")
		return nil, func() error { return nil }, nil
	}

	bus, err := OpenBus(ctx, cfg, false, log)
	if err != nil {
		return nil, nil, err
	}

	return bus.Publisher, bus.Close, nil
}

type Redis struct {
	Cache   ports.AvailabilityCache
	Counter ports.ReservationCounter
	client  *goredis.Client
}

func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// OpenRedis leaves Cache and Counter nil when no address is configured.
func OpenRedis(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Redis, error) {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, availability cache and counters disabled")
		return &Redis{}, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.WithField("addr", cfg.Redis.Addr).Info("Redis connected")

	return &Redis{
		Cache:   rediscache.NewAvailabilityCache(client, cfg.Redis.CacheTTL),
		Counter: rediscache.NewReservationCounter(client),
		client:  client,
	}, nil
}

// Serve runs handler until ctx is done, then drains in-flight requests.
func Serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, log logrus.FieldLogger) error {
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", ln.Addr().String()).Info("Server starting")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exiting")
	return nil
}
