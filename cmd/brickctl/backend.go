package main

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/internal/common/resources"
	"github.com/janelia-flyem/recospark/internal/config"
	"github.com/janelia-flyem/recospark/volume"
)

// storageBackend is what every run* command needs from the configured
// backend: both halves of volume.Accessor and volume.Writer.
type storageBackend interface {
	volume.Accessor
	volume.Writer
}

// loadConfig reads --config if set, else falls back to config.Default,
// and applies the result's log level to the default logger.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// runtimeFromConfig picks the collection backend cfg.Mode names.
func runtimeFromConfig(cfg config.Config) collection.Runtime {
	if cfg.Mode == config.ModeWorkerPool {
		return collection.WorkerPool(cfg.Workers)
	}
	return collection.Sequential()
}

// budgetGate builds the rate limiter cloud backends gate Get/Write
// calls with, or an unlimited gate when cfg.Budget is left zero-valued.
func budgetGate(cfg config.Config) *resources.BudgetGate {
	if cfg.Budget.BytesPerSecond <= 0 {
		return resources.Unlimited()
	}
	return resources.NewBudgetGate(cfg.Budget.BytesPerSecond, cfg.Budget.BurstBytes)
}

// buildBackend constructs the storageBackend cfg.Storage selects,
// defaulting to dataDir (a command's --data-dir flag) for the local
// backend regardless of what cfg.Storage.LocalPath says, so the two
// demonstration paths (flag-driven and config-file-driven) don't fight
// over which directory wins.
func buildBackend(ctx context.Context, cfg config.Config, dataDir string) (storageBackend, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return volume.NewLocalBackend(dataDir, volume.U8)
	case "s3":
		return volume.NewS3Backend(ctx, volume.S3Config{
			Region:          cfg.Storage.S3Region,
			Bucket:          cfg.Storage.S3Bucket,
			Prefix:          cfg.Storage.S3Prefix,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
			Endpoint:        cfg.Storage.S3Endpoint,
			DType:           volume.U8,
			Budget:          budgetGate(cfg),
		})
	case "gcs":
		return volume.NewGCSBackend(ctx, volume.GCSConfig{
			BucketName:      cfg.Storage.GCSBucket,
			Prefix:          cfg.Storage.GCSPrefix,
			CredentialsFile: cfg.Storage.GCSCredentialsFile,
			DType:           volume.U8,
			Budget:          budgetGate(cfg),
		})
	case "azure":
		return volume.NewAzureBackend(ctx, volume.AzureConfig{
			AccountName:      cfg.Storage.AzureAccount,
			AccountKey:       cfg.Storage.AzureAccountKey,
			ConnectionString: cfg.Storage.AzureConnectionString,
			ContainerName:    cfg.Storage.AzureContainer,
			Prefix:           cfg.Storage.AzurePrefix,
			DType:            volume.U8,
			Budget:           budgetGate(cfg),
		})
	default:
		return nil, fmt.Errorf("brickctl: unknown storage.backend %q", cfg.Storage.Backend)
	}
}
