package brickwall

import (
	"context"

	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/volume"
)

// LabelPair is a (source, destination) relabeling rule.
type LabelPair struct {
	Src, Dst uint64
}

// ApplyLabelmap builds one relabeling mapper per partition from pairs
// and relabels every brick's voxels with it; labels absent from pairs
// pass through unchanged. Building the
// mapper once per partition, rather than once per brick, is the point
// of routing this through MapPartitions instead of Map.
func (w *BrickWall) ApplyLabelmap(ctx context.Context, pairs []LabelPair) (*BrickWall, error) {
	out, err := collection.MapPartitions(ctx, w.Bricks, func(part []*brick.Brick) ([]*brick.Brick, error) {
		mapper := make(map[uint64]uint64, len(pairs))
		for _, p := range pairs {
			mapper[p.Src] = p.Dst
		}

		relabeled := make([]*brick.Brick, len(part))
		for i, b := range part {
			vol, err := b.Volume(ctx)
			if err != nil {
				return nil, err
			}
			// Relabeling rewrites the (always contiguous) buffer in
			// place; the brick keeps its boxes and hash, and is left
			// Materialised by the Volume call above.
			relabelVolume(vol, mapper)
			relabeled[i] = b
		}
		return relabeled, nil
	})
	if err != nil {
		return nil, err
	}
	return w.withBricks(out), nil
}

func relabelVolume(vol volume.Buffer, mapper map[uint64]uint64) {
	shape := vol.ShapeVec()
	for z := int64(0); z < shape[0]; z++ {
		for y := int64(0); y < shape[1]; y++ {
			for x := int64(0); x < shape[2]; x++ {
				if mapped, ok := mapper[vol.Get(z, y, x)]; ok {
					vol.Set(z, y, x, mapped)
				}
			}
		}
	}
}
