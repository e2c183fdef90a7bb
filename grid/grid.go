// Package grid describes how 3D space is tiled into Brick-sized cells.
package grid

import (
	"fmt"

	"github.com/janelia-flyem/recospark/box"
)

// Grid is a regular tiling of 3D space: a block shape, an offset, and
// an optional halo by which a cell's physical extent may reach beyond
// its logical cell (see CellsOver's includeHalo).
type Grid struct {
	BlockShape box.Vec3
	Offset     box.Vec3
	Halo       box.Vec3
}

// New builds a Grid with no halo.
func New(blockShape, offset box.Vec3) Grid {
	return Grid{BlockShape: blockShape, Offset: offset}
}

// NewWithHalo builds a Grid with an explicit halo.
func NewWithHalo(blockShape, offset, halo box.Vec3) Grid {
	return Grid{BlockShape: blockShape, Offset: offset, Halo: halo}
}

// Valid reports whether the grid satisfies its invariants:
// BlockShape > 0 on every axis, Halo >= 0 on every axis.
func (g Grid) Valid() bool {
	for i := 0; i < 3; i++ {
		if g.BlockShape[i] <= 0 || g.Halo[i] < 0 {
			return false
		}
	}
	return true
}

// LogicalCellOfPoint returns the logical (halo-free) cell of the grid
// that contains p, via floor division.
func (g Grid) LogicalCellOfPoint(p box.Vec3) box.Box {
	rel := p.Sub(g.Offset)
	k := rel.Div(g.BlockShape)
	lo := g.Offset.Add(k.Mul(g.BlockShape))
	hi := lo.Add(g.BlockShape)
	return box.New(lo, hi)
}

// cellKey indexes one grid cell by its integer (kz, ky, kx) coordinate.
type cellKey box.Vec3

// keysOver enumerates, in lexicographic (kz, ky, kx) order, every cell
// key whose logical cell's interior intersects bb.
func (g Grid) keysOver(bb box.Box) []cellKey {
	loK := bb.Lo.Sub(g.Offset).Div(g.BlockShape)
	// The last cell touching bb.Hi-1 (Hi is exclusive).
	hiInclusive := bb.Hi.Sub(box.Vec3{1, 1, 1}).Sub(g.Offset).Div(g.BlockShape)

	var keys []cellKey
	for kz := loK[0]; kz <= hiInclusive[0]; kz++ {
		for ky := loK[1]; ky <= hiInclusive[1]; ky++ {
			for kx := loK[2]; kx <= hiInclusive[2]; kx++ {
				keys = append(keys, cellKey{kz, ky, kx})
			}
		}
	}
	return keys
}

// logicalCell returns the exact (halo-free) cell box for a key.
func (g Grid) logicalCell(k cellKey) box.Box {
	lo := g.Offset.Add(box.Vec3(k).Mul(g.BlockShape))
	return box.New(lo, lo.Add(g.BlockShape))
}

// CellsOver yields the logical boxes of every grid cell intersecting
// bb, in deterministic lexicographic order. If includeHalo, each cell
// is expanded by ±g.Halo before intersecting with bb, and cells whose
// logical box lies outside bb but whose halo reaches into it are
// included too; used to collect fragment destinations so halo voxels
// are fed by source bricks, including neighbours of the source.
func (g Grid) CellsOver(bb box.Box, includeHalo bool) []box.Box {
	enumBox := bb
	if includeHalo {
		enumBox = box.New(bb.Lo.Sub(g.Halo), bb.Hi.Add(g.Halo))
	}
	keys := g.keysOver(enumBox)
	out := make([]box.Box, 0, len(keys))
	for _, k := range keys {
		cell := g.logicalCell(k)
		if includeHalo {
			cell = box.New(cell.Lo.Sub(g.Halo), cell.Hi.Add(g.Halo))
		}
		if box.Intersects(cell, bb) {
			out = append(out, cell)
		}
	}
	return out
}

// ClippedCells returns, for every logical cell intersecting bb, the
// cell clipped to bb (no halo); used to enumerate physical extents.
func (g Grid) ClippedCells(bb box.Box) []box.Box {
	keys := g.keysOver(bb)
	out := make([]box.Box, 0, len(keys))
	for _, k := range keys {
		cell := g.logicalCell(k)
		out = append(out, box.Intersect(cell, bb))
	}
	return out
}

// LogicalAndClippedCells returns paired (logical, clipped-physical)
// boxes for every cell intersecting bb, in lockstep, matching the
// pairing generate.Generate needs for the dense case.
func (g Grid) LogicalAndClippedCells(bb box.Box) (logical, physical []box.Box) {
	keys := g.keysOver(bb)
	logical = make([]box.Box, 0, len(keys))
	physical = make([]box.Box, 0, len(keys))
	for _, k := range keys {
		cell := g.logicalCell(k)
		logical = append(logical, cell)
		physical = append(physical, box.Intersect(cell, bb))
	}
	return logical, physical
}

func (g Grid) String() string {
	return fmt.Sprintf("Grid{block=%s, offset=%s, halo=%s}", g.BlockShape, g.Offset, g.Halo)
}
