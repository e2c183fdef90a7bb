package brick

import (
	"context"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

// Translate returns a new brick with LogicalBox and PhysicalBox shifted
// by delta, preserving b's current lifecycle state exactly; voxel
// buffers are never touched by a translate. A lazy
// brick's creation function keeps fetching from its original,
// untranslated physical box, since that is where the external volume
// service's data actually lives; only the brick's own coordinates move.
func (b *Brick) Translate(delta box.Vec3) *Brick {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := &Brick{
		LogicalBox:  b.LogicalBox.Translate(delta),
		PhysicalBox: b.PhysicalBox.Translate(delta),
		state:       b.state,
		volume:      b.volume,
		compressed:  b.compressed,
		compDType:   b.compDType,
		compShape:   b.compShape,
		hash:        b.hash,
		hasHash:     b.hasHash,
	}
	if b.state == Lazy {
		origCreate := b.create
		origPhys := b.PhysicalBox
		out.create = func(ctx context.Context, _ box.Box) (volume.Buffer, error) {
			return origCreate(ctx, origPhys)
		}
	}
	return out
}
