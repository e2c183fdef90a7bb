package brickwall

import (
	"context"

	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
)

// DropEmpty filters out every brick whose voxel buffer is entirely
// zero.
func (w *BrickWall) DropEmpty(ctx context.Context) (*BrickWall, error) {
	out, err := collection.MapPartitions(ctx, w.Bricks, func(part []*brick.Brick) ([]*brick.Brick, error) {
		kept := make([]*brick.Brick, 0, len(part))
		for _, b := range part {
			vol, err := b.Volume(ctx)
			if err != nil {
				return nil, err
			}
			if vol.Any() {
				kept = append(kept, b)
			}
		}
		w.Metrics.ObserveDropped("empty", len(part)-len(kept))
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	return w.withBricks(out), nil
}
