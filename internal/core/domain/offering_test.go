package domain_test

import (
	"testing"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferingStatus(t *testing.T) {
	tests := []struct {
		name      string
		available int
		total     int
		want      domain.AvailabilityStatus
	}{
		{name: "plenty left", available: 45, total: 100, want: domain.AvailabilityOpen},
		{name: "exactly twenty percent", available: 20, total: 100, want: domain.AvailabilityLimited},
		{name: "few left", available: 3, total: 30, want: domain.AvailabilityLimited},
		{name: "none left", available: 0, total: 30, want: domain.AvailabilitySoldOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &domain.Offering{AvailableSlots: tt.available, TotalSlots: tt.total}
			assert.Equal(t, tt.want, o.Status())
		})
	}
}

func TestOfferingReleasableIsCapped(t *testing.T) {
	o := &domain.Offering{AvailableSlots: 8, TotalSlots: 10}

	assert.Equal(t, 2, o.Releasable(5))
	assert.Equal(t, 1, o.Releasable(1))

	full := &domain.Offering{AvailableSlots: 10, TotalSlots: 10}
	assert.Equal(t, 0, full.Releasable(3))
}

func TestNewOffering(t *testing.T) {
	date := time.Date(2023, 8, 5, 0, 0, 0, 0, time.UTC)

	o, err := domain.NewOffering("Babadham Mandir", "VIP", date, 30, 600)
	require.NoError(t, err)

	assert.Equal(t, "babadham-mandir-vip-2023-08-05", o.ID)
	assert.Equal(t, 30, o.AvailableSlots)
	assert.Equal(t, 1, o.Version)
	assert.True(t, o.CanReserve(30))
	assert.False(t, o.CanReserve(31))

	_, err = domain.NewOffering("Babadham Mandir", "VIP", date, 0, 600)
	assert.Error(t, err)
}
