package domain

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

type AvailabilityStatus string

const (
	AvailabilityOpen    AvailabilityStatus = "available"
	AvailabilityLimited AvailabilityStatus = "limited"
	AvailabilitySoldOut AvailabilityStatus = "sold_out"
)

// limitedThreshold is the remaining share (in percent) at or below which an
// offering is shown as limited.
const limitedThreshold = 20

const DateLayout = "2006-01-02"

type Offering struct {
	ID             string
	LocationID     string
	CategoryID     string
	Date           time.Time
	TotalSlots     int
	AvailableSlots int
	Version        int
	Price          float64
	UpdatedAt      time.Time
}

func OfferingID(locationID, categoryID string, date time.Time) string {
	return slug.Make(fmt.Sprintf("%s %s %s", locationID, categoryID, date.Format(DateLayout)))
}

func NewOffering(locationID, categoryID string, date time.Time, totalSlots int, price float64) (*Offering, error) {
	if totalSlots <= 0 {
		return nil, fmt.Errorf("total slots must be positive, got %d", totalSlots)
	}

	if price < 0 {
		return nil, fmt.Errorf("price must not be negative, got %.2f", price)
	}

	return &Offering{
		ID:             OfferingID(locationID, categoryID, date),
		LocationID:     locationID,
		CategoryID:     categoryID,
		Date:           date,
		TotalSlots:     totalSlots,
		AvailableSlots: totalSlots,
		Version:        1,
		Price:          price,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

func (o *Offering) CanReserve(quantity int) bool {
	return o.AvailableSlots >= quantity
}

// Claimed is the number of slots currently held by reservations.
func (o *Offering) Claimed() int {
	return o.TotalSlots - o.AvailableSlots
}

// Releasable caps a release so available slots never exceed the total.
func (o *Offering) Releasable(quantity int) int {
	return min(quantity, o.Claimed())
}

func (o *Offering) Status() AvailabilityStatus {
	if o.AvailableSlots <= 0 {
		return AvailabilitySoldOut
	}

	if o.AvailableSlots*100 <= o.TotalSlots*limitedThreshold {
		return AvailabilityLimited
	}

	return AvailabilityOpen
}
