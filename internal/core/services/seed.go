package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/nick2726/mandir-reservation-hub/internal/core/ports"
	"github.com/sirupsen/logrus"
)

type SeedOffering struct {
	LocationID string
	CategoryID string
	Date       time.Time
	TotalSlots int
	Price      float64
}

func seedDate(day int) time.Time {
	return time.Date(2023, time.August, day, 0, 0, 0, 0, time.UTC)
}

// DefaultOfferings are the passes the hub launched with.
func DefaultOfferings() []SeedOffering {
	var seeds []SeedOffering
	for day := 5; day <= 7; day++ {
		seeds = append(seeds,
			SeedOffering{LocationID: "Babadham Mandir", CategoryID: "Standard", Date: seedDate(day), TotalSlots: 100, Price: 500},
			SeedOffering{LocationID: "Babadham Mandir", CategoryID: "VIP", Date: seedDate(day), TotalSlots: 30, Price: 600},
		)
	}
	return seeds
}

// SeedOfferings creates the offerings that do not exist yet and returns how
// many were created. Existing offerings keep their current availability.
func SeedOfferings(ctx context.Context, offerings ports.OfferingRepository, seeds []SeedOffering, log logrus.FieldLogger) (int, error) {
	created := 0
	for _, s := range seeds {
		offering, err := domain.NewOffering(s.LocationID, s.CategoryID, s.Date, s.TotalSlots, s.Price)
		if err != nil {
			return created, fmt.Errorf("seed %s/%s: %w", s.LocationID, s.CategoryID, err)
		}

		err = offerings.Create(ctx, offering)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed offering %s: %w", offering.ID, err)
		}
		created++
	}

	log.WithFields(logrus.Fields{
		"created": created,
		"total":   len(seeds),
	}).Info("Offerings seeded")

	return created, nil
}
