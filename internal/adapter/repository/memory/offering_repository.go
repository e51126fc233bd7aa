// Package memory holds in-process repositories used by the standalone mode
// and by tests that need real concurrency.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
)

// offeringCell owns one offering. Its mutex is the per-offering critical
// section; the repository map lock is only held for lookups.
type offeringCell struct {
	mu       sync.Mutex
	offering domain.Offering
}

type OfferingRepository struct {
	mu    sync.RWMutex
	cells map[string]*offeringCell
}

func NewOfferingRepository() *OfferingRepository {
	return &OfferingRepository{cells: make(map[string]*offeringCell)}
}

func (r *OfferingRepository) Create(_ context.Context, offering *domain.Offering) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cells[offering.ID]; ok {
		return fmt.Errorf("offering %s: %w", offering.ID, domain.ErrAlreadyExists)
	}

	r.cells[offering.ID] = &offeringCell{offering: *offering}
	return nil
}

func (r *OfferingRepository) cell(offeringID string) (*offeringCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cells[offeringID]
	if !ok {
		return nil, domain.ErrOfferingNotFound
	}

	return c, nil
}

func (r *OfferingRepository) GetByID(_ context.Context, offeringID string) (*domain.Offering, error) {
	c, err := r.cell(offeringID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	snapshot := c.offering
	c.mu.Unlock()

	return &snapshot, nil
}

func (r *OfferingRepository) List(_ context.Context) ([]domain.Offering, error) {
	r.mu.RLock()
	cells := make([]*offeringCell, 0, len(r.cells))
	for _, c := range r.cells {
		cells = append(cells, c)
	}
	r.mu.RUnlock()

	offerings := make([]domain.Offering, 0, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		offerings = append(offerings, c.offering)
		c.mu.Unlock()
	}

	sort.Slice(offerings, func(i, j int) bool {
		if !offerings[i].Date.Equal(offerings[j].Date) {
			return offerings[i].Date.Before(offerings[j].Date)
		}
		return offerings[i].ID < offerings[j].ID
	})

	return offerings, nil
}

func (r *OfferingRepository) CompareAndSwapAvailability(_ context.Context, offeringID string, expectedVersion int, available int) error {
	c, err := r.cell(offeringID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offering.Version != expectedVersion {
		return domain.ErrVersionConflict
	}

	if available < 0 || available > c.offering.TotalSlots {
		return fmt.Errorf("available slots %d out of range [0,%d] for offering %s", available, c.offering.TotalSlots, offeringID)
	}

	c.offering.AvailableSlots = available
	c.offering.Version++
	c.offering.UpdatedAt = time.Now().UTC()

	return nil
}
