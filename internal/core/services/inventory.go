package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 5 * time.Millisecond
)

type InventoryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Inventory is the only path that changes an offering's available slots.
// Every change is a compare-and-swap on the offering's version, so
// concurrent callers on one offering are serialised while different
// offerings never wait on each other.
type Inventory struct {
	offerings   ports.OfferingRepository
	cache       ports.AvailabilityCache
	maxAttempts int
	baseBackoff time.Duration
	log         logrus.FieldLogger
}

func NewInventory(offerings ports.OfferingRepository, cache ports.AvailabilityCache, cfg InventoryConfig, log logrus.FieldLogger) *Inventory {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}

	return &Inventory{
		offerings:   offerings,
		cache:       cache,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		log:         log,
	}
}

// TryReserve takes quantity slots and returns the offering as committed.
func (inv *Inventory) TryReserve(ctx context.Context, offeringID string, quantity int) (*domain.Offering, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	for attempt := 1; attempt <= inv.maxAttempts; attempt++ {
		offering, err := inv.offerings.GetByID(ctx, offeringID)
		if err != nil {
			return nil, err
		}

		if !offering.CanReserve(quantity) {
			return nil, fmt.Errorf("offering %s has %d slots left, %d requested: %w",
				offeringID, offering.AvailableSlots, quantity, domain.ErrInsufficientAvailability)
		}

		committed, err := inv.swap(ctx, offering, offering.AvailableSlots-quantity)
		if err == nil {
			return committed, nil
		}

		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("reserve %d slots on %s: %w", quantity, offeringID, err)
		}

		inv.log.WithFields(logrus.Fields{
			"offering_id": offeringID,
			"attempt":     attempt,
			"version":     offering.Version,
		}).Debug("version conflict while reserving, re-reading")

		if err := inv.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("reserve %d slots on %s after %d attempts: %w",
		quantity, offeringID, inv.maxAttempts, domain.ErrContention)
}

// Release gives back up to quantity slots, never exceeding the total.
func (inv *Inventory) Release(ctx context.Context, offeringID string, quantity int) (*domain.Offering, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	for attempt := 1; attempt <= inv.maxAttempts; attempt++ {
		offering, err := inv.offerings.GetByID(ctx, offeringID)
		if err != nil {
			return nil, err
		}

		amount := offering.Releasable(quantity)
		if amount == 0 {
			return offering, nil
		}

		committed, err := inv.swap(ctx, offering, offering.AvailableSlots+amount)
		if err == nil {
			return committed, nil
		}

		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("release %d slots on %s: %w", amount, offeringID, err)
		}

		if err := inv.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("release %d slots on %s after %d attempts: %w",
		quantity, offeringID, inv.maxAttempts, domain.ErrContention)
}

// ReleaseAt is a single release attempt that only applies if the offering is
// still at expectedVersion.
func (inv *Inventory) ReleaseAt(ctx context.Context, offeringID string, quantity int, expectedVersion int) (*domain.Offering, error) {
	offering, err := inv.offerings.GetByID(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	if offering.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}

	amount := offering.Releasable(quantity)
	if amount == 0 {
		return offering, nil
	}

	return inv.swap(ctx, offering, offering.AvailableSlots+amount)
}

func (inv *Inventory) swap(ctx context.Context, offering *domain.Offering, available int) (*domain.Offering, error) {
	if err := inv.offerings.CompareAndSwapAvailability(ctx, offering.ID, offering.Version, available); err != nil {
		return nil, err
	}

	committed := *offering
	committed.AvailableSlots = available
	committed.Version++
	committed.UpdatedAt = time.Now().UTC()

	return &committed, nil
}

// wait sleeps base * 2^(attempt-1) with +-25% jitter, capped at 16x base.
func (inv *Inventory) wait(ctx context.Context, attempt int) error {
	backoff := inv.baseBackoff << min(attempt-1, 4)
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int64N(2*quarter) - quarter)
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Availability reads one offering through the cache when one is configured.
func (inv *Inventory) Availability(ctx context.Context, offeringID string) (*domain.Offering, error) {
	if inv.cache != nil {
		cached, err := inv.cache.Get(ctx, offeringID)
		if err != nil {
			inv.log.WithError(err).WithField("offering_id", offeringID).Warn("availability cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	offering, err := inv.offerings.GetByID(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	if inv.cache != nil {
		if err := inv.cache.Set(ctx, offering); err != nil {
			inv.log.WithError(err).WithField("offering_id", offeringID).Warn("availability cache write failed")
		}
	}

	return offering, nil
}

func (inv *Inventory) List(ctx context.Context) ([]domain.Offering, error) {
	return inv.offerings.List(ctx)
}
