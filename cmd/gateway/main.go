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

	"github.com/nick2726/mandir-reservation-hub/internal/adapter/auth"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/gateway"
	"github.com/nick2726/mandir-reservation-hub/internal/adapter/handler"
	"github.com/nick2726/mandir-reservation-hub/internal/app"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/platform/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags("gateway", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load("gateway", "8000", flags.ConfigFile)
	if err != nil {
		return err
	}

	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	if flags.IssueToken != "" {
		token, err := verifier.Issue(flags.IssueToken, domain.RoleDevotee, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	destinations, err := gateway.ParseDestinations(cfg.Gateway.Destinations)
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	audit, closeAudit, err := app.OpenAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	gw := gateway.New(gateway.Config{
		Destinations: destinations,
		Timeout:      cfg.Gateway.Timeout,
	}, verifier, audit, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	gw.Routes(r)

	return app.Serve(ctx, cfg.Server, r, log)
}
