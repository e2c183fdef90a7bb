package main

import (
	"context"
	"fmt"

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
	genDataDir    string
	genBB         []int64
	genBlockShape []int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Tile a local volume into a brick wall and report how many bricks resulted",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genDataDir, "data-dir", "./brickctl-data", "local backend directory holding flat volume files")
	generateCmd.Flags().Int64SliceVar(&genBB, "bb", []int64{0, 0, 0, 64, 64, 64}, "bounding box: lo.z lo.y lo.x hi.z hi.y hi.x")
	generateCmd.Flags().Int64SliceVar(&genBlockShape, "block-shape", []int64{32, 32, 32}, "grid block shape: z y x")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(genBB) != 6 {
		return fmt.Errorf("brickctl: --bb needs exactly 6 values, got %d", len(genBB))
	}
	if len(genBlockShape) != 3 {
		return fmt.Errorf("brickctl: --block-shape needs exactly 3 values, got %d", len(genBlockShape))
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := buildBackend(ctx, cfg, genDataDir)
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.NewRegistry())

	bc, err := cache.NewBrickCache(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("brickctl: generate: building brick cache: %w", err)
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

	bb := box.New(box.Vec3{genBB[0], genBB[1], genBB[2]}, box.Vec3{genBB[3], genBB[4], genBB[5]})
	g := grid.New(box.Vec3{genBlockShape[0], genBlockShape[1], genBlockShape[2]}, box.Vec3{0, 0, 0})

	wall, err := brickwall.Generate(ctx, runtimeFromConfig(cfg), bb, g, accessor, generate.Options{}, cfg.NumPartitions)
	if err != nil {
		return fmt.Errorf("brickctl: generate: %w", err)
	}
	wall.Metrics = m
	bricks := wall.Bricks.Collect()
	m.AddGenerated(len(bricks))

	fmt.Printf("generated %d bricks over %s under grid block shape %s\n", len(bricks), bb, g.BlockShape)
	return nil
}
