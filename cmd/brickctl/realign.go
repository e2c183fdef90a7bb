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
	realignDataDir       string
	realignBB            []int64
	realignSrcBlockShape []int64
	realignDstBlockShape []int64
)

var realignCmd = &cobra.Command{
	Use:   "realign",
	Short: "Generate a wall under one grid, then realign it onto another",
	RunE:  runRealign,
}

func init() {
	realignCmd.Flags().StringVar(&realignDataDir, "data-dir", "./brickctl-data", "local backend directory holding flat volume files")
	realignCmd.Flags().Int64SliceVar(&realignBB, "bb", []int64{0, 0, 0, 64, 64, 64}, "bounding box: lo.z lo.y lo.x hi.z hi.y hi.x")
	realignCmd.Flags().Int64SliceVar(&realignSrcBlockShape, "src-block-shape", []int64{16, 16, 16}, "source grid block shape: z y x")
	realignCmd.Flags().Int64SliceVar(&realignDstBlockShape, "dst-block-shape", []int64{32, 32, 32}, "destination grid block shape: z y x")
}

func runRealign(cmd *cobra.Command, args []string) error {
	if len(realignBB) != 6 || len(realignSrcBlockShape) != 3 || len(realignDstBlockShape) != 3 {
		return fmt.Errorf("brickctl: realign requires 6-value --bb and 3-value block shapes")
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := buildBackend(ctx, cfg, realignDataDir)
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.NewRegistry())

	bc, err := cache.NewBrickCache(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("brickctl: realign: building brick cache: %w", err)
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

	bb := box.New(box.Vec3{realignBB[0], realignBB[1], realignBB[2]}, box.Vec3{realignBB[3], realignBB[4], realignBB[5]})
	g0 := grid.New(box.Vec3{realignSrcBlockShape[0], realignSrcBlockShape[1], realignSrcBlockShape[2]}, box.Vec3{0, 0, 0})
	g1 := grid.New(box.Vec3{realignDstBlockShape[0], realignDstBlockShape[1], realignDstBlockShape[2]}, box.Vec3{0, 0, 0})

	wall, err := brickwall.Generate(ctx, runtimeFromConfig(cfg), bb, g0, accessor, generate.Options{}, cfg.NumPartitions)
	if err != nil {
		return fmt.Errorf("brickctl: realign: generating source wall: %w", err)
	}
	wall.Metrics = m
	m.AddGenerated(len(wall.Bricks.Collect()))

	start := time.Now()
	realigned, err := wall.RealignToNewGrid(ctx, g1)
	m.TimeShufflePhase("realign", time.Since(start))
	if err != nil {
		return fmt.Errorf("brickctl: realign: %w", err)
	}
	out := realigned.Bricks.Collect()

	fmt.Printf("realigned %s from block shape %s to %s: %d destination bricks\n", bb, g0.BlockShape, g1.BlockShape, len(out))
	return nil
}
