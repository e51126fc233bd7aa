package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

// checkViolation is the SQLSTATE of a failed CHECK constraint.
const checkViolation = "23514"

type OfferingRepository struct {
	db *sql.DB
}

func NewOfferingRepository(db *sql.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

func (r *OfferingRepository) Create(ctx context.Context, offering *domain.Offering) error {
	query := `
	INSERT INTO offerings (id, location_id, category_id, date, total_slots, available_slots, version, price, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		offering.ID,
		offering.LocationID,
		offering.CategoryID,
		offering.Date,
		offering.TotalSlots,
		offering.AvailableSlots,
		offering.Version,
		offering.Price,
		offering.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offering %s: %w", offering.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("offering %s: %w", offering.ID, domain.ErrAlreadyExists)
	}

	return nil
}

const offeringColumns = `id, location_id, category_id, date, total_slots, available_slots, version, price, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffering(row rowScanner) (*domain.Offering, error) {
	var o domain.Offering
	if err := row.Scan(
		&o.ID,
		&o.LocationID,
		&o.CategoryID,
		&o.Date,
		&o.TotalSlots,
		&o.AvailableSlots,
		&o.Version,
		&o.Price,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *OfferingRepository) GetByID(ctx context.Context, offeringID string) (*domain.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE id = $1`

	offering, err := scanOffering(r.db.QueryRowContext(ctx, query, offeringID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOfferingNotFound
		}

		return nil, err
	}

	return offering, nil
}

func (r *OfferingRepository) List(ctx context.Context) ([]domain.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var offerings []domain.Offering
	for rows.Next() {
		offering, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}

		offerings = append(offerings, *offering)
	}

	return offerings, rows.Err()
}

// CompareAndSwapAvailability is a single conditional UPDATE; the row lock
// Postgres takes for it is the per-offering critical section.
func (r *OfferingRepository) CompareAndSwapAvailability(ctx context.Context, offeringID string, expectedVersion int, available int) error {
	query := `
	UPDATE offerings
	SET available_slots = $1,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $2 AND version = $3
	`

	result, err := r.db.ExecContext(ctx, query, available, offeringID, expectedVersion)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
			return fmt.Errorf("available slots %d out of range for offering %s: %w", available, offeringID, err)
		}

		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}
