package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"

	"github.com/nick2726/mandir-reservation-hub/internal/adapter/handler"
	"github.com/nick2726/mandir-reservation-hub/internal/app"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/nick2726/mandir-reservation-hub/internal/platform/config"
	"github.com/nick2726/mandir-reservation-hub/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags("api", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load("reservation-service", "8080", flags.ConfigFile)
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, flags.Migrate, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	rdb, err := app.OpenRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	inMemoryBus := cfg.Bus.Driver == config.DriverMemory

	bus, err := app.OpenBus(ctx, cfg, inMemoryBus, log)
	if err != nil {
		return err
	}
	defer bus.Close()

	inventory := services.NewInventory(stores.Offerings, rdb.Cache, services.InventoryConfig{
		MaxAttempts: cfg.Reservation.MaxAttempts,
		BaseBackoff: cfg.Reservation.BaseBackoff,
	}, log)

	reservationService := services.NewReservationService(inventory, stores.Reservations, stores.Reservations, bus.Publisher, cfg.Source, log)

	if flags.Seed || cfg.Store.Driver == config.DriverMemory {
		if _, err := services.SeedOfferings(ctx, stores.Offerings, services.DefaultOfferings(), log); err != nil {
			return err
		}
	}

	// Nobody else can read an in-process bus, so its consumers run here.
	if inMemoryBus {
		processor := services.NewProcessor(stores.Events, log).WithStaleClaim(cfg.Worker.StaleClaim)
		services.RegisterDefaultHandlers(processor, rdb.Counter, rdb.Cache, log)

		go func() {
			if err := bus.Subscriber.Subscribe(ctx, processor.Handle); err != nil {
				log.WithError(err).Error("In-process subscriber stopped")
			}
		}()
	}

	// Likewise the worker cannot reach an in-memory store.
	if cfg.Store.Driver == config.DriverMemory {
		sched, err := worker.NewScheduler(log)
		if err != nil {
			return err
		}

		relay := services.NewOutboxRelay(stores.Reservations, bus.Publisher, cfg.Worker.OutboxGrace, cfg.Worker.BatchSize, log)
		reconciler := services.NewReconciler(inventory, stores.Reservations, log)

		if err := sched.Add(ctx, worker.OutboxRelayJob(relay, cfg.Worker.OutboxInterval)); err != nil {
			return err
		}
		if err := sched.Add(ctx, worker.ReconcileJob(reconciler, cfg.Worker.ReconcileInterval)); err != nil {
			return err
		}

		sched.Start()
		defer sched.Shutdown()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handler.HealthCheck(cfg.Source))
	handler.NewReservationHandler(reservationService, inventory).Routes(r)

	return app.Serve(ctx, cfg.Server, r, log)
}
