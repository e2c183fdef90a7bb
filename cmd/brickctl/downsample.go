package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brickwall"
	"github.com/janelia-flyem/recospark/generate"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/cache"
	"github.com/janelia-flyem/recospark/internal/common/resources"
	"github.com/janelia-flyem/recospark/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	downsampleDataDir    string
	downsampleBB         []int64
	downsampleBlockShape []int64
	downsampleFactor     int64
	downsampleMethod     string
)

var downsampleCmd = &cobra.Command{
	Use:   "downsample",
	Short: "Generate a wall and downsample it by an integer factor",
	RunE:  runDownsample,
}

func init() {
	downsampleCmd.Flags().StringVar(&downsampleDataDir, "data-dir", "./brickctl-data", "local backend directory holding flat volume files")
	downsampleCmd.Flags().Int64SliceVar(&downsampleBB, "bb", []int64{0, 0, 0, 64, 64, 64}, "bounding box: lo.z lo.y lo.x hi.z hi.y hi.x")
	downsampleCmd.Flags().Int64SliceVar(&downsampleBlockShape, "block-shape", []int64{32, 32, 32}, "grid block shape: z y x")
	downsampleCmd.Flags().Int64Var(&downsampleFactor, "factor", 2, "integer downsample factor")
	downsampleCmd.Flags().StringVar(&downsampleMethod, "method", "grayscale", "downsample method: grayscale or label")
}

func runDownsample(cmd *cobra.Command, args []string) error {
	if len(downsampleBB) != 6 || len(downsampleBlockShape) != 3 {
		return fmt.Errorf("brickctl: downsample requires a 6-value --bb and a 3-value --block-shape")
	}
	var method brickwall.Method
	switch downsampleMethod {
	case "grayscale":
		method = brickwall.Grayscale
	case "label":
		method = brickwall.Label
	default:
		return fmt.Errorf("brickctl: unknown --method %q (want grayscale or label)", downsampleMethod)
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := buildBackend(ctx, cfg, downsampleDataDir)
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.NewRegistry())

	bc, err := cache.NewBrickCache(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("brickctl: downsample: building brick cache: %w", err)
	}
	mgr := resources.NewManager()
	mgr.RegisterFunc(func() error {
		cs := bc.Metrics()
		m.AddCacheSnapshot(cs.Hits, cs.Misses)
		bc.Close()
		return nil
	})
	defer mgr.Close()
	accessor := cache.WrapAccessor(backend, bc)

	bb := box.New(box.Vec3{downsampleBB[0], downsampleBB[1], downsampleBB[2]}, box.Vec3{downsampleBB[3], downsampleBB[4], downsampleBB[5]})
	g := grid.New(box.Vec3{downsampleBlockShape[0], downsampleBlockShape[1], downsampleBlockShape[2]}, box.Vec3{0, 0, 0})

	wall, err := brickwall.Generate(ctx, runtimeFromConfig(cfg), bb, g, accessor, generate.Options{}, cfg.NumPartitions)
	if err != nil {
		return fmt.Errorf("brickctl: downsample: generating wall: %w", err)
	}
	wall.Metrics = m
	m.AddGenerated(len(wall.Bricks.Collect()))

	start := time.Now()
	down, err := wall.Downsample(ctx, downsampleFactor, method)
	m.DownsampleSecs.WithLabelValues(downsampleMethod).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("brickctl: downsample: %w", err)
	}

	out := down.Bricks.Collect()
	fmt.Printf("downsampled %s by factor %d (%s): %d bricks, new bounding box %s\n", bb, downsampleFactor, downsampleMethod, len(out), down.BoundingBox)
	return nil
}
