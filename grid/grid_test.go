package grid

import (
	"testing"

	"github.com/janelia-flyem/recospark/box"
)

func TestCellsOverCoversAndPartitions(t *testing.T) {
	g := New(box.Vec3{2, 2, 2}, box.Vec3{0, 0, 0})
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})

	cells := g.CellsOver(bb, false)
	if len(cells) != 8 {
		t.Fatalf("expected 8 cells, got %d", len(cells))
	}

	var total int64
	seen := map[box.Box]bool{}
	for _, c := range cells {
		if seen[c] {
			t.Fatalf("duplicate cell %v", c)
		}
		seen[c] = true
		total += c.Volume()
	}
	if total != bb.Volume() {
		t.Fatalf("cells do not partition bb: total=%d want=%d", total, bb.Volume())
	}
}

func TestLogicalCellOfPoint(t *testing.T) {
	g := New(box.Vec3{4, 4, 4}, box.Vec3{1, 1, 1})
	cell := g.LogicalCellOfPoint(box.Vec3{5, 5, 5})
	want := box.New(box.Vec3{5, 5, 5}, box.Vec3{9, 9, 9})
	if !cell.Equal(want) {
		t.Fatalf("got %v want %v", cell, want)
	}

	cell2 := g.LogicalCellOfPoint(box.Vec3{4, 4, 4})
	want2 := box.New(box.Vec3{1, 1, 1}, box.Vec3{5, 5, 5})
	if !cell2.Equal(want2) {
		t.Fatalf("got %v want %v", cell2, want2)
	}
}

func TestClippedCellsEdge(t *testing.T) {
	g := New(box.Vec3{8, 8, 8}, box.Vec3{0, 0, 0})
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{10, 10, 10})
	logical, physical := g.LogicalAndClippedCells(bb)
	if len(logical) != 8 || len(physical) != 8 {
		t.Fatalf("expected 8 cells, got %d/%d", len(logical), len(physical))
	}
	for i := range logical {
		if !logical[i].Contains(physical[i]) {
			t.Fatalf("physical %v not contained by logical %v", physical[i], logical[i])
		}
	}
}

func TestCellsOverIncludeHaloReachesNeighbours(t *testing.T) {
	g := NewWithHalo(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0}, box.Vec3{1, 1, 1})
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})

	cells := g.CellsOver(bb, true)
	// The cell at [0,4) plus every neighbour whose 1-voxel halo reaches
	// into [0,4) on some axis: 3^3 = 27 halo-expanded cells in total.
	if len(cells) != 27 {
		t.Fatalf("expected 27 halo-expanded cells, got %d", len(cells))
	}
	for _, c := range cells {
		if !box.Intersects(c, bb) {
			t.Fatalf("enumerated cell %v does not intersect bb", c)
		}
	}
}

func TestCellsOverIncludeHalo(t *testing.T) {
	g := NewWithHalo(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0}, box.Vec3{1, 1, 1})
	bb := box.New(box.Vec3{3, 3, 3}, box.Vec3{5, 5, 5})
	cells := g.CellsOver(bb, true)
	if len(cells) == 0 {
		t.Fatalf("expected at least one cell")
	}
	for _, c := range cells {
		// halo-expanded cell shape must exceed block shape on axes touched.
		s := c.Shape()
		if s[0] < g.BlockShape[0] {
			t.Fatalf("halo cell smaller than block shape: %v", c)
		}
	}
}
