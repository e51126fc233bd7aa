package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// AvailabilityCache returns (nil, nil) on a miss. After Invalidate with a
// version, Set ignores snapshots older than that version.
type AvailabilityCache interface {
	Get(ctx context.Context, offeringID string) (*domain.Offering, error)
	Set(ctx context.Context, offering *domain.Offering) error
	Invalidate(ctx context.Context, offeringID string, version int) error
}

// ReservationCounter applies a delta at most once per event id and reports
// whether this call applied it.
type ReservationCounter interface {
	Apply(ctx context.Context, eventID uuid.UUID, offeringID string, delta int) (bool, error)
	Reserved(ctx context.Context, offeringID string) (int64, error)
}
