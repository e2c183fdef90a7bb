package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/internal/config"
)

func TestBuildBackendDefaultsToLocal(t *testing.T) {
	cfg := config.Default()
	b, err := buildBackend(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestBuildBackendRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "tape"
	_, err := buildBackend(context.Background(), cfg, t.TempDir())
	require.Error(t, err)
}

func TestRuntimeFromConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, collection.Sequential(), runtimeFromConfig(cfg))

	cfg.Mode = config.ModeWorkerPool
	cfg.Workers = 4
	assert.Equal(t, collection.WorkerPool(4), runtimeFromConfig(cfg))
}

func TestBudgetGateUnlimitedWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	g := budgetGate(cfg)
	require.NoError(t, g.Wait(context.Background(), 1<<30))
}

func TestBudgetGateRateLimitsWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Budget.BytesPerSecond = 1024
	cfg.Budget.BurstBytes = 1024
	g := budgetGate(cfg)
	require.NoError(t, g.Wait(context.Background(), 512))
	require.Error(t, g.Wait(context.Background(), 2048), "a request larger than the burst is refused")
}
