package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

// ReservationRepository also owns the outbox table, since outbox rows are
// only ever written in the same transaction as a reservation change.
type ReservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, reservation *domain.Reservation, outbox []*domain.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	query := `
	INSERT INTO reservations (id, offering_id, requester_id, quantity, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.ExecContext(ctx, query,
		reservation.ID,
		reservation.OfferingID,
		reservation.RequesterID,
		reservation.Quantity,
		reservation.Status,
		reservation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := insertOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO outbox (event_id, aggregate_key, event_type, payload, source, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outbox statement: %w", err)
	}

	defer stmt.Close()

	for _, evt := range events {
		_, err := stmt.ExecContext(ctx, evt.ID, evt.Key, evt.Type, string(evt.Payload), evt.Source, evt.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event %s: %w", evt.ID, err)
		}
	}

	return nil
}

const reservationColumns = `id, offering_id, requester_id, quantity, status, created_at, cancelled_at`

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var res domain.Reservation
	var cancelledAt sql.NullTime

	if err := row.Scan(
		&res.ID,
		&res.OfferingID,
		&res.RequesterID,
		&res.Quantity,
		&res.Status,
		&res.CreatedAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}

	if cancelledAt.Valid {
		res.CancelledAt = &cancelledAt.Time
	}

	return &res, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, reservationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}

		return nil, err
	}

	return res, nil
}

func (r *ReservationRepository) ListByRequester(ctx context.Context, requesterID string) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE requester_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var list []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}

		list = append(list, *res)
	}

	return list, rows.Err()
}

func (r *ReservationRepository) Cancel(ctx context.Context, reservationID uuid.UUID, cancelledAt time.Time, outbox []*domain.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
	UPDATE reservations
	SET status = $1, cancelled_at = $2
	WHERE id = $3 AND status = $4
	`, domain.ReservationCancelled, cancelledAt, reservationID, domain.ReservationConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = $1`, reservationID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReservationNotFound
		}
		if err != nil {
			return err
		}

		return domain.ErrAlreadyCancelled
	}

	if err := insertOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ReservationRepository) ConfirmedQuantities(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT offering_id, COALESCE(SUM(quantity), 0)
	FROM reservations
	WHERE status = $1
	GROUP BY offering_id
	`, domain.ReservationConfirmed)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	sums := make(map[string]int)
	for rows.Next() {
		var offeringID string
		var total int
		if err := rows.Scan(&offeringID, &total); err != nil {
			return nil, err
		}

		sums[offeringID] = total
	}

	return sums, rows.Err()
}

func (r *ReservationRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT event_id, aggregate_key, event_type, payload, source, created_at
	FROM outbox
	WHERE published_at IS NULL AND created_at < $1
	ORDER BY created_at
	LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var evt domain.Event
		var payload []byte
		if err := rows.Scan(&evt.ID, &evt.Key, &evt.Type, &payload, &evt.Source, &evt.CreatedAt); err != nil {
			return nil, err
		}

		evt.Payload = payload
		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *ReservationRepository) MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		ids = append(ids, id.String())
	}

	_, err := r.db.ExecContext(ctx, `
	UPDATE outbox
	SET published_at = NOW()
	WHERE event_id = ANY($1::uuid[]) AND published_at IS NULL
	`, pq.StringArray(ids))

	return err
}
