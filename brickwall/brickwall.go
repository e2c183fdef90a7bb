// Package brickwall is the thin orchestration layer over a bounding
// box, a grid, and a collection of bricks tiled
// under it, plus operations that rebuild that collection (realign,
// pad, downsample, relabel) or simply pass through to it (map, filter,
// persist). Every operation except Persist and Unpersist returns a new
// BrickWall. ApplyLabelmap rewrites voxel buffers in place, so the
// receiver's bricks carry the new labels too; after any other
// operation the receiver remains safe to reuse unless the caller
// explicitly Unpersists it.
package brickwall

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/generate"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/metrics"
	"github.com/janelia-flyem/recospark/regrid"
	"github.com/janelia-flyem/recospark/volume"
)

// BrickWall is a tiled collection of bricks covering BoundingBox under
// Grid. Metrics, when non-nil, observes the wall's operations (bricks
// dropped, fragments split, assembly outcomes) and is inherited by
// every wall an operation derives from this one.
type BrickWall struct {
	BoundingBox box.Box
	Grid        grid.Grid
	Bricks      *collection.Collection[*brick.Brick]
	Metrics     *metrics.Metrics
}

// New wraps an already-built brick collection.
func New(bb box.Box, g grid.Grid, bricks *collection.Collection[*brick.Brick]) *BrickWall {
	return &BrickWall{BoundingBox: bb, Grid: g, Bricks: bricks}
}

// Generate builds a BrickWall densely (or from sparse boxes) over bb
// under g, partitioning the resulting bricks under rt.
func Generate(ctx context.Context, rt collection.Runtime, bb box.Box, g grid.Grid, accessor volume.Accessor, opts generate.Options, numPartitions int) (*BrickWall, error) {
	bricks, err := generate.Generate(ctx, bb, g, accessor, opts)
	if err != nil {
		return nil, err
	}
	return New(bb, g, collection.New(rt, bricks, numPartitions)), nil
}

// FromAccessor builds a BrickWall whose partitions carry approximately
// equal voxel counts: pairs are enumerated, partitioned by
// generate.PartitionByVoxels, and each partition's bricks are then
// constructed under rt, so eager fetches run partition-parallel instead
// of sequentially up front. A non-positive targetPartitionVoxels spreads
// the total evenly across parallelism.
func FromAccessor(ctx context.Context, rt collection.Runtime, bb box.Box, g grid.Grid, accessor volume.Accessor, opts generate.Options, targetPartitionVoxels int64, parallelism int) (*BrickWall, error) {
	pairs, err := generate.Pairs(bb, g, opts)
	if err != nil {
		return nil, err
	}
	parts := generate.PartitionByVoxels(pairs, targetPartitionVoxels, parallelism)
	pc := collection.FromPartitions(rt, parts)
	bricks, err := collection.Map(ctx, pc, func(p generate.LogicalPhysical) (*brick.Brick, error) {
		return generate.MakeBrick(ctx, p.Logical, p.Physical, accessor, opts.Lazy)
	})
	if err != nil {
		return nil, err
	}
	return New(bb, g, bricks), nil
}

func (w *BrickWall) withBricks(bricks *collection.Collection[*brick.Brick]) *BrickWall {
	return &BrickWall{BoundingBox: w.BoundingBox, Grid: w.Grid, Bricks: bricks, Metrics: w.Metrics}
}

// Copy returns a shallow copy of w: a new BrickWall value referencing
// the same underlying brick collection, so a caller can hand out one
// wall for further transformation while keeping another reference
// stable.
func (w *BrickWall) Copy() *BrickWall {
	return &BrickWall{BoundingBox: w.BoundingBox, Grid: w.Grid, Bricks: w.Bricks, Metrics: w.Metrics}
}

// RealignToNewGrid re-tiles w onto g1 via split → group_by_key →
// assemble. Source bricks with halo are first clipped
// to their logical box.
func (w *BrickWall) RealignToNewGrid(ctx context.Context, g1 grid.Grid) (*BrickWall, error) {
	clipped, err := collection.Map(ctx, w.Bricks, func(b *brick.Brick) (*brick.Brick, error) {
		return regrid.ClipToLogical(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("brickwall: realign: clipping source halo: %w", err)
	}
	realigned, err := regrid.Realign(ctx, clipped, g1, w.Metrics)
	if err != nil {
		return nil, err
	}
	return &BrickWall{BoundingBox: w.BoundingBox, Grid: g1, Bricks: realigned, Metrics: w.Metrics}, nil
}

// FillMissing restores full-cell coverage for every brick in w by
// fetching missing halo slabs from accessor, padding under padGrid.
func (w *BrickWall) FillMissing(ctx context.Context, padGrid grid.Grid, accessor volume.Accessor) (*BrickWall, error) {
	padded, err := collection.Map(ctx, w.Bricks, func(b *brick.Brick) (*brick.Brick, error) {
		return generate.PadBrick(ctx, padGrid, accessor, b)
	})
	if err != nil {
		return nil, err
	}
	return w.withBricks(padded), nil
}

// Translate shifts every brick's boxes, the wall's bounding box, and
// the wall's grid offset by delta. Voxel buffers are never touched.
func (w *BrickWall) Translate(ctx context.Context, delta box.Vec3) (*BrickWall, error) {
	moved, err := collection.Map(ctx, w.Bricks, func(b *brick.Brick) (*brick.Brick, error) {
		return b.Translate(delta), nil
	})
	if err != nil {
		return nil, err
	}
	return &BrickWall{
		BoundingBox: w.BoundingBox.Translate(delta),
		Grid:        grid.NewWithHalo(w.Grid.BlockShape, w.Grid.Offset.Add(delta), w.Grid.Halo),
		Bricks:      moved,
		Metrics:     w.Metrics,
	}, nil
}

// Map applies fn to every brick.
func (w *BrickWall) Map(ctx context.Context, fn func(*brick.Brick) (*brick.Brick, error)) (*BrickWall, error) {
	out, err := collection.Map(ctx, w.Bricks, fn)
	if err != nil {
		return nil, err
	}
	return w.withBricks(out), nil
}

// Filter keeps only bricks for which fn returns true.
func (w *BrickWall) Filter(ctx context.Context, fn func(*brick.Brick) bool) (*BrickWall, error) {
	out, err := collection.Filter(ctx, w.Bricks, fn)
	if err != nil {
		return nil, err
	}
	return w.withBricks(out), nil
}

// FlatMap applies fn to every brick and flattens the results.
func (w *BrickWall) FlatMap(ctx context.Context, fn func(*brick.Brick) ([]*brick.Brick, error)) (*BrickWall, error) {
	out, err := collection.FlatMap(ctx, w.Bricks, fn)
	if err != nil {
		return nil, err
	}
	return w.withBricks(out), nil
}

// Foreach invokes fn once per brick for side effects.
func (w *BrickWall) Foreach(ctx context.Context, fn func(*brick.Brick) error) error {
	return collection.Foreach(ctx, w.Bricks, fn)
}

// Persist pins the wall's underlying collection.
func (w *BrickWall) Persist() *BrickWall {
	w.Bricks.Persist()
	return w
}

// Unpersist releases the wall's underlying collection.
func (w *BrickWall) Unpersist() {
	w.Bricks.Unpersist()
}
