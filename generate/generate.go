// Package generate enumerates Bricks over a bounding box under a Grid,
// either densely or from a caller-supplied sparse set of physical
// boxes, and pads partially filled bricks from a VolumeAccessor.
package generate

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/volume"
)

// Options controls Generate.
type Options struct {
	// SparseBoxes, if non-nil, is a caller-supplied list of physical
	// boxes instead of the dense cell enumeration. No two boxes may
	// share a midpoint logical cell; this implementation asserts that
	// up front rather than deferring the failure to assembly time.
	SparseBoxes []box.Box
	// Lazy, if true, emits bricks with the accessor as a lazy creation
	// function rather than calling it immediately.
	Lazy bool
}

// LogicalPhysical pairs a logical cell with its (possibly sparse,
// clipped) physical extent, assigned a deterministic enumeration index
// used downstream for voxel-balanced partitioning.
type LogicalPhysical struct {
	Index    int
	Logical  box.Box
	Physical box.Box
}

// ErrDuplicateMidpoint is a contract violation: two sparse input boxes
// share a midpoint logical cell.
type ErrDuplicateMidpoint struct {
	Cell box.Box
}

func (e *ErrDuplicateMidpoint) Error() string {
	return fmt.Sprintf("generate: multiple sparse boxes share midpoint logical cell %s", e.Cell)
}

// Pairs computes the (logical, physical) pairs Generate will turn into
// bricks, without yet constructing any brick or touching the accessor.
// Exposed separately so collection backends can partition on voxel
// count before dispatching brick construction.
func Pairs(bb box.Box, g grid.Grid, opts Options) ([]LogicalPhysical, error) {
	if opts.SparseBoxes == nil {
		return densePairs(bb, g), nil
	}
	return sparsePairs(bb, g, opts.SparseBoxes)
}

func densePairs(bb box.Box, g grid.Grid) []LogicalPhysical {
	logical, physical := g.LogicalAndClippedCells(bb)
	out := make([]LogicalPhysical, len(logical))
	for i := range logical {
		out[i] = LogicalPhysical{Index: i, Logical: logical[i], Physical: physical[i]}
	}
	return out
}

func sparsePairs(bb box.Box, g grid.Grid, boxes []box.Box) ([]LogicalPhysical, error) {
	seen := make(map[box.Box]box.Box, len(boxes))
	out := make([]LogicalPhysical, 0, len(boxes))

	for _, b := range boxes {
		mid := b.Lo.Add(b.Hi).Div(box.Vec3{2, 2, 2})
		logical := g.LogicalCellOfPoint(mid)

		if _, ok := seen[logical]; ok {
			return nil, &ErrDuplicateMidpoint{Cell: logical}
		}
		seen[logical] = b

		expanded := box.New(b.Lo.Sub(g.Halo), b.Hi.Add(g.Halo))
		clipped := box.Intersect(expanded, bb)

		// Drop boxes whose clipped physical box does not intersect
		// its own logical cell; this is the logical-but-empty case, not
		// an error.
		if !box.Intersects(clipped, logical) {
			continue
		}

		out = append(out, LogicalPhysical{Index: len(out), Logical: logical, Physical: clipped})
	}
	return out, nil
}

// Generate builds a Brick for every (logical, physical) pair produced
// by Pairs. If opts.Lazy, accessor.Get is deferred to first access of
// each brick's volume; otherwise it is invoked immediately, here,
// sequentially (callers that want partition-parallel dense fetches
// should instead run Pairs once and construct bricks inside a
// collection.Map stage, as brickwall.FromAccessor does).
func Generate(ctx context.Context, bb box.Box, g grid.Grid, accessor volume.Accessor, opts Options) ([]*brick.Brick, error) {
	pairs, err := Pairs(bb, g, opts)
	if err != nil {
		return nil, err
	}

	var totalVoxels int64
	for _, p := range pairs {
		totalVoxels += p.Physical.Volume()
	}
	logger.Info("generate: %d bricks, %.2f Mvox total", len(pairs), float64(totalVoxels)/1e6)

	bricks := make([]*brick.Brick, len(pairs))
	for i, p := range pairs {
		b, err := MakeBrick(ctx, p.Logical, p.Physical, accessor, opts.Lazy)
		if err != nil {
			return nil, err
		}
		bricks[i] = b
	}
	return bricks, nil
}

// MakeBrick constructs a single brick from a (logical, physical) pair,
// either fetching its data immediately or wiring a lazy accessor call.
func MakeBrick(ctx context.Context, logical, physical box.Box, accessor volume.Accessor, lazy bool) (*brick.Brick, error) {
	if lazy {
		return brick.NewLazy(logical, physical, func(ctx context.Context, phys box.Box) (volume.Buffer, error) {
			return accessor.Get(ctx, phys)
		}), nil
	}
	vol, err := accessor.Get(ctx, physical)
	if err != nil {
		return nil, err
	}
	return brick.NewMaterialised(logical, physical, vol)
}

// TargetPartitionCount computes ceil(totalVoxels / targetPartitionVoxels),
// never less than parallelism.
func TargetPartitionCount(totalVoxels, targetPartitionVoxels int64, parallelism int) int {
	if targetPartitionVoxels <= 0 {
		targetPartitionVoxels = 1
	}
	n := int((totalVoxels + targetPartitionVoxels - 1) / targetPartitionVoxels)
	if n < parallelism {
		n = parallelism
	}
	if n < 1 {
		n = 1
	}
	return n
}

// PartitionByVoxels splits pairs, in enumeration order, into contiguous
// partitions of approximately equal total voxel count. The partition
// count follows TargetPartitionCount; a non-positive
// targetPartitionVoxels spreads the total evenly across parallelism.
// Assignment is a deterministic function of the input pairs and the
// two tuning values.
func PartitionByVoxels(pairs []LogicalPhysical, targetPartitionVoxels int64, parallelism int) [][]LogicalPhysical {
	var total int64
	for _, p := range pairs {
		total += p.Physical.Volume()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if targetPartitionVoxels <= 0 {
		targetPartitionVoxels = (total + int64(parallelism) - 1) / int64(parallelism)
		if targetPartitionVoxels < 1 {
			targetPartitionVoxels = 1
		}
	}
	n := TargetPartitionCount(total, targetPartitionVoxels, parallelism)
	quota := (total + int64(n) - 1) / int64(n)

	parts := make([][]LogicalPhysical, 0, n)
	var current []LogicalPhysical
	var currentVoxels int64
	for _, p := range pairs {
		if len(current) > 0 && currentVoxels+p.Physical.Volume() > quota && len(parts) < n-1 {
			parts = append(parts, current)
			current = nil
			currentVoxels = 0
		}
		current = append(current, p)
		currentVoxels += p.Physical.Volume()
	}
	if len(current) > 0 {
		parts = append(parts, current)
	}
	for len(parts) < n {
		parts = append(parts, nil)
	}
	return parts
}
