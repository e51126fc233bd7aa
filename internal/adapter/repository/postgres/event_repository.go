package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

// EventRepository stores the processing status of every event id seen by
// the processor in processed_events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Get(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	query := `
	SELECT id, event_type, key, payload, source, status, attempts, error, created_at, claimed_at, processed_at
	FROM processed_events
	WHERE id = $1
	`

	var evt domain.Event
	var payload []byte
	var processedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&evt.ID,
		&evt.Type,
		&evt.Key,
		&payload,
		&evt.Source,
		&evt.Status,
		&evt.Attempts,
		&evt.Error,
		&evt.CreatedAt,
		&evt.ClaimedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}

		return nil, err
	}

	evt.Payload = payload
	if processedAt.Valid {
		evt.ProcessedAt = &processedAt.Time
	}

	return &evt, nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
	INSERT INTO processed_events (id, event_type, key, payload, source, status, attempts, created_at, claimed_at)
	VALUES ($1, $2, $3, $4, $5, $6, 1, $7, NOW())
	ON CONFLICT (id) DO NOTHING
	`

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	payload := string(event.Payload)
	if payload == "" {
		payload = "{}"
	}

	result, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.Key,
		payload,
		event.Source,
		domain.EventProcessing,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrAlreadyExists
	}

	return nil
}

func (r *EventRepository) ClaimRetry(ctx context.Context, eventID uuid.UUID, attempts int) error {
	query := `
	UPDATE processed_events
	SET status = $1,
		attempts = attempts + 1,
		claimed_at = NOW()
	WHERE id = $2 AND attempts = $3 AND status <> $4
	`

	result, err := r.db.ExecContext(ctx, query, domain.EventProcessing, eventID, attempts, domain.EventCompleted)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrEventInProgress
	}

	return nil
}

func (r *EventRepository) Finish(ctx context.Context, eventID uuid.UUID, status domain.EventStatus, errMsg string, processedAt time.Time) error {
	query := `
	UPDATE processed_events
	SET status = $1,
		error = $2,
		processed_at = $3
	WHERE id = $4 AND status <> $5
	`

	result, err := r.db.ExecContext(ctx, query, status, errMsg, processedAt, eventID, domain.EventCompleted)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		return domain.ErrEventNotFound
	}

	return nil
}
