package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nick2726/mandir-reservation-hub/internal/platform/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		LogLevel: "debug",
		Server:   config.ServerConfig{Port: "0", ShutdownTimeout: time.Second},
		Store:    config.StoreConfig{Driver: config.DriverMemory},
		Bus:      config.BusConfig{Driver: config.DriverMemory},
	}
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(memoryConfig())
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	cfg := memoryConfig()
	cfg.LogLevel = "loud"
	assert.Equal(t, logrus.InfoLevel, NewLogger(cfg).GetLevel())
}

func TestOpenMemoryAdapters(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	cfg := memoryConfig()

	stores, err := OpenStores(ctx, cfg, true, logger)
	require.NoError(t, err)
	assert.NotNil(t, stores.Offerings)
	assert.NotNil(t, stores.Reservations)
	assert.NotNil(t, stores.Events)
	assert.NoError(t, stores.Close())

	bus, err := OpenBus(ctx, cfg, true, logger)
	require.NoError(t, err)
	assert.Same(t, bus.Publisher, bus.Subscriber)
	assert.NoError(t, bus.Close())

	rdb, err := OpenRedis(ctx, cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, rdb.Cache)
	assert.Nil(t, rdb.Counter)
	assert.NoError(t, rdb.Close())
}

func TestServeStopsWithContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, memoryConfig().Server, http.NotFoundHandler(), logger)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOpenAuditPublisherDisabledForMemoryBus(t *testing.T) {
	logger, _ := test.NewNullLogger()

	publisher, closeFn, err := OpenAuditPublisher(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)
	assert.Nil(t, publisher)
	assert.NoError(t, closeFn())
}
