// Package config loads the settings that shape a regridding run: which
// storage backend to read/write bricks from, how bricks are tiled and
// partitioned, and how the distributed shuffle backend is reached.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Mode selects the collection runtime a pipeline runs under.
type Mode string

const (
	// ModeSequential runs every partition on a single goroutine, in order.
	ModeSequential Mode = "sequential"
	// ModeWorkerPool runs partitions across a bounded goroutine pool.
	ModeWorkerPool Mode = "worker_pool"
)

// Config is the top-level settings document for a brickctl run.
type Config struct {
	Mode          Mode          `yaml:"mode"`
	Workers       int           `yaml:"workers"`
	NumPartitions int           `yaml:"num_partitions"`
	Grid          GridConfig    `yaml:"grid"`
	Storage       StorageConfig `yaml:"storage"`
	Shuffle       ShuffleConfig `yaml:"shuffle"`
	Cache         CacheConfig   `yaml:"cache"`
	Budget        BudgetConfig  `yaml:"budget"`
	LogLevel      string        `yaml:"log_level"`
}

// GridConfig describes a grid.Grid in config terms.
type GridConfig struct {
	BlockShape [3]int64 `yaml:"block_shape"`
	Offset     [3]int64 `yaml:"offset"`
	Halo       [3]int64 `yaml:"halo"`
}

// StorageConfig selects and configures a volume.Accessor/Writer backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local", "s3", "gcs", "azure"

	LocalPath string `yaml:"local_path,omitempty"`

	S3Bucket          string `yaml:"s3_bucket,omitempty"`
	S3Prefix          string `yaml:"s3_prefix,omitempty"`
	S3Region          string `yaml:"s3_region,omitempty"`
	S3AccessKeyID     string `yaml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key,omitempty"`
	S3Endpoint        string `yaml:"s3_endpoint,omitempty"`

	GCSBucket          string `yaml:"gcs_bucket,omitempty"`
	GCSPrefix          string `yaml:"gcs_prefix,omitempty"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file,omitempty"`

	AzureContainer        string `yaml:"azure_container,omitempty"`
	AzurePrefix           string `yaml:"azure_prefix,omitempty"`
	AzureAccount          string `yaml:"azure_account,omitempty"`
	AzureAccountKey       string `yaml:"azure_account_key,omitempty"`
	AzureConnectionString string `yaml:"azure_connection_string,omitempty"`
}

// ShuffleConfig holds settings for a distributed (Redis-backed)
// shuffle in the style of regrid.RealignDistributed. brickctl loads it
// but does not read it: its realign command always runs the in-process
// regrid.Realign.
type ShuffleConfig struct {
	RedisAddr  string `yaml:"redis_addr,omitempty"`
	KeyPrefix  string `yaml:"key_prefix,omitempty"`
	NumBuckets int    `yaml:"num_buckets,omitempty"`
}

// CacheConfig bounds the decompressed-brick cache.
type CacheConfig struct {
	MaxCostBytes int64 `yaml:"max_cost_bytes"`
}

// BudgetConfig rate-limits byte throughput against a remote storage
// backend. Zero BytesPerSecond leaves access unlimited.
type BudgetConfig struct {
	BytesPerSecond float64 `yaml:"bytes_per_second,omitempty"`
	BurstBytes     int     `yaml:"burst_bytes,omitempty"`
}

// Default returns the configuration a local, single-node demo run uses.
func Default() Config {
	return Config{
		Mode:          ModeSequential,
		Workers:       1,
		NumPartitions: 1,
		Grid: GridConfig{
			BlockShape: [3]int64{64, 64, 64},
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalPath: "./brickctl-data",
		},
		Cache: CacheConfig{
			MaxCostBytes: 256 << 20,
		},
		LogLevel: "info",
	}
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings a pipeline cannot safely run without.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSequential, ModeWorkerPool:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Mode == ModeWorkerPool && c.Workers <= 0 {
		return fmt.Errorf("config: worker_pool mode requires workers > 0, got %d", c.Workers)
	}
	if c.NumPartitions <= 0 {
		return fmt.Errorf("config: num_partitions must be positive, got %d", c.NumPartitions)
	}
	for i, v := range c.Grid.BlockShape {
		if v <= 0 {
			return fmt.Errorf("config: grid.block_shape[%d] must be positive, got %d", i, v)
		}
	}
	switch c.Storage.Backend {
	case "local", "s3", "gcs", "azure":
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}
