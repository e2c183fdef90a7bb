package generate

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/volume"
)

// PadBrick restores full-cell coverage for b, fetching only the
// missing halo slabs from accessor. Preconditions
// (violations are fatal contract errors, not transient):
//   - padGrid.Halo must be zero.
//   - padGrid.BlockShape must evenly divide b.LogicalBox's shape.
//   - b.PhysicalBox must be contained within b.LogicalBox (no source halo).
//
// If b's physical box is already aligned to padGrid, b is returned
// unchanged (no copy); this also makes PadBrick idempotent.
func PadBrick(ctx context.Context, padGrid grid.Grid, accessor volume.Accessor, b *brick.Brick) (*brick.Brick, error) {
	if padGrid.Halo != (box.Vec3{}) {
		return nil, fmt.Errorf("generate: pad grid must have zero halo, got %s", padGrid.Halo)
	}
	if !divides(b.LogicalBox.Shape(), padGrid.BlockShape) {
		return nil, fmt.Errorf("generate: pad grid block shape %s does not divide logical_box shape %s", padGrid.BlockShape, b.LogicalBox.Shape())
	}
	if !b.LogicalBox.Contains(b.PhysicalBox) {
		return nil, fmt.Errorf("generate: physical_box %s must be contained in logical_box %s before padding", b.PhysicalBox, b.LogicalBox)
	}

	offsetPhys := b.PhysicalBox.Translate(padGrid.Offset.Scale(-1))
	if offsetPhys.AlignedTo(box.Vec3{}, padGrid.BlockShape) {
		return b, nil
	}

	paddedOffsetLo := snapFloor(offsetPhys.Lo, padGrid.BlockShape)
	paddedOffsetHi := snapCeil(offsetPhys.Hi, padGrid.BlockShape)
	paddedBox := box.New(paddedOffsetLo, paddedOffsetHi).Translate(padGrid.Offset)

	if !b.LogicalBox.Contains(paddedBox) {
		return nil, fmt.Errorf("generate: padded_box %s escapes logical_box %s", paddedBox, b.LogicalBox)
	}

	vol, err := b.Volume(ctx)
	if err != nil {
		return nil, err
	}

	paddedVol := volume.NewBuffer(paddedBox.Shape(), vol.DType)
	if err := volume.Overwrite(paddedVol, paddedBox.Lo, b.PhysicalBox, vol); err != nil {
		return nil, fmt.Errorf("generate: pad: writing original data: %w", err)
	}

	slabs := haloSlabs(b.PhysicalBox, paddedBox)
	if len(slabs) == 0 {
		return nil, fmt.Errorf("generate: pad: no halo slabs computed despite padding being necessary")
	}
	for _, slab := range slabs {
		slabVol, err := accessor.Get(ctx, slab)
		if err != nil {
			return nil, err
		}
		if err := volume.Overwrite(paddedVol, paddedBox.Lo, slab, slabVol); err != nil {
			return nil, fmt.Errorf("generate: pad: writing halo slab %s: %w", slab, err)
		}
	}

	return brick.NewMaterialised(b.LogicalBox, paddedBox, paddedVol)
}

// haloSlabs decomposes paddedBox minus origBox into up to six disjoint
// boxes: one leading and one trailing slab per axis where origBox
// doesn't already reach paddedBox's edge. A slab spans the full padded
// extent on axes after its own and only origBox's extent on axes
// before it, so corner regions belong to exactly one slab and no voxel
// is fetched twice. At most six accessor calls regardless of how many
// axes need padding.
func haloSlabs(origBox, paddedBox box.Box) []box.Box {
	var slabs []box.Box
	for axis := 0; axis < 3; axis++ {
		base := paddedBox
		for prev := 0; prev < axis; prev++ {
			base.Lo[prev] = origBox.Lo[prev]
			base.Hi[prev] = origBox.Hi[prev]
		}
		if origBox.Lo[axis] != paddedBox.Lo[axis] {
			leading := base
			leading.Hi[axis] = origBox.Lo[axis]
			slabs = append(slabs, leading)
		}
		if origBox.Hi[axis] != paddedBox.Hi[axis] {
			trailing := base
			trailing.Lo[axis] = origBox.Hi[axis]
			slabs = append(slabs, trailing)
		}
	}
	return slabs
}

func divides(shape, block box.Vec3) bool {
	for i := 0; i < 3; i++ {
		if block[i] == 0 || shape[i]%block[i] != 0 {
			return false
		}
	}
	return true
}

func snapFloor(v, step box.Vec3) box.Vec3 {
	return v.Div(step).Mul(step)
}

func snapCeil(v, step box.Vec3) box.Vec3 {
	var out box.Vec3
	for i := 0; i < 3; i++ {
		q := v[i] / step[i]
		if v[i]%step[i] != 0 {
			q++
		}
		out[i] = q * step[i]
	}
	return out
}
