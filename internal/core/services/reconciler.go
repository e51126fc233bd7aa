package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

type suspect struct {
	version int
	drift   int
}

type SweepReport struct {
	Checked  int `json:"checked"`
	Suspects int `json:"suspects"`
	Repaired int `json:"repaired"`
}

// Reconciler repairs slots that were taken from an offering without a
// confirmed reservation to show for them, such as a decrement whose process
// died before the reservation was stored.
type Reconciler struct {
	inventory    *Inventory
	reservations ports.ReservationRepository
	log          logrus.FieldLogger

	mu       sync.Mutex
	suspects map[string]suspect
}

func NewReconciler(inventory *Inventory, reservations ports.ReservationRepository, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		inventory:    inventory,
		reservations: reservations,
		log:          log,
		suspects:     make(map[string]suspect),
	}
}

// Sweep compares claimed slots with confirmed reservations. A positive drift
// is only released once it has been seen twice at the same version, so
// in-flight reservations between decrement and insert are never touched.
func (r *Reconciler) Sweep(ctx context.Context) (SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report SweepReport

	offerings, err := r.inventory.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list offerings: %w", err)
	}

	confirmed, err := r.reservations.ConfirmedQuantities(ctx)
	if err != nil {
		return report, fmt.Errorf("sum confirmed reservations: %w", err)
	}

	next := make(map[string]suspect)
	for i := range offerings {
		offering := &offerings[i]
		report.Checked++

		drift := offering.Claimed() - confirmed[offering.ID]
		entry := r.log.WithFields(logrus.Fields{
			"offering_id": offering.ID,
			"version":     offering.Version,
			"drift":       drift,
		})

		switch {
		case drift == 0:
			continue
		case drift < 0:
			entry.Warn("more slots confirmed than claimed")
			continue
		}

		report.Suspects++

		seen, ok := r.suspects[offering.ID]
		if !ok || seen.version != offering.Version || seen.drift != drift {
			next[offering.ID] = suspect{version: offering.Version, drift: drift}
			entry.Info("possible leaked slots, waiting for next sweep")
			continue
		}

		_, err := r.inventory.ReleaseAt(ctx, offering.ID, drift, offering.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			entry.Debug("offering moved on, skipping repair")
			continue
		}
		if err != nil {
			entry.WithError(err).Error("failed to release leaked slots")
			next[offering.ID] = seen
			continue
		}

		report.Repaired++
		entry.Warn("released leaked slots")
	}

	r.suspects = next

	return report, nil
}
