package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := []byte(`
mode: worker_pool
workers: 8
num_partitions: 16
grid:
  block_shape: [32, 32, 32]
storage:
  backend: s3
  s3_bucket: my-bucket
`)
	require.NoError(t, os.WriteFile(path, yamlDoc, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeWorkerPool, cfg.Mode)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "my-bucket", cfg.Storage.S3Bucket)
	assert.Equal(t, Default().Cache.MaxCostBytes, cfg.Cache.MaxCostBytes,
		"untouched fields keep their default")
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "bogus"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsWorkerPoolWithoutWorkers(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeWorkerPool
	cfg.Workers = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageBackend(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "dropbox"
	require.Error(t, cfg.Validate())
}
