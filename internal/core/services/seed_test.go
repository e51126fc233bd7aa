package services_test

import (
	"context"
	"testing"

	"github.com/nick2726/mandir-reservation-hub/internal/adapter/repository/memory"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOfferings_IsRepeatable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	repo := memory.NewOfferingRepository()

	created, err := services.SeedOfferings(ctx, repo, services.DefaultOfferings(), logger)
	require.NoError(t, err)
	assert.Equal(t, 6, created)

	created, err = services.SeedOfferings(ctx, repo, services.DefaultOfferings(), logger)
	require.NoError(t, err)
	assert.Zero(t, created)

	offerings, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 6)

	vip, err := repo.GetByID(ctx, "babadham-mandir-vip-2023-08-05")
	require.NoError(t, err)
	assert.Equal(t, 30, vip.TotalSlots)
	assert.Equal(t, 30, vip.AvailableSlots)
	assert.Equal(t, 600.0, vip.Price)
}
