package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
	ConnectWait     time.Duration
}

func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	return u.String()
}

// NewPostgresDB opens the pool and waits for the server to accept
// connections, which it may not yet do while containers start.
func NewPostgresDB(ctx context.Context, cfg Config, log logrus.FieldLogger) (*sql.DB, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 10
	}

	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	for i := 1; i <= attempts; i++ {
		log.WithFields(logrus.Fields{"attempt": i, "max_attempts": attempts}).Info("connecting to database")

		if err = db.PingContext(ctx); err == nil {
			log.Info("database connected")
			return db, nil
		}

		log.WithError(err).Warn("database not ready yet")

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS offerings (
		id VARCHAR(255) PRIMARY KEY,
		location_id VARCHAR(255) NOT NULL,
		category_id VARCHAR(255) NOT NULL,
		date DATE NOT NULL,
		total_slots INTEGER NOT NULL CHECK (total_slots >= 0),
		available_slots INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		price NUMERIC(10, 2) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT available_in_range CHECK (available_slots >= 0 AND available_slots <= total_slots)
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		offering_id VARCHAR(255) NOT NULL REFERENCES offerings(id),
		requester_id VARCHAR(255) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cancelled_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS outbox (
		event_id UUID PRIMARY KEY,
		aggregate_key VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		source VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		published_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS processed_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		key VARCHAR(255) NOT NULL DEFAULT '',
		payload JSONB NOT NULL,
		source VARCHAR(100) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 1,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_offerings_date ON offerings(date)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_requester ON reservations(requester_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_offering_status ON reservations(offering_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(created_at) WHERE published_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_processed_events_status ON processed_events(status)`,
}

func RunMigrations(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", i+1, err)
		}
	}

	log.WithField("statements", len(migrations)).Info("database migrations completed")
	return nil
}
