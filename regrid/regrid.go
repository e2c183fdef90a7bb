// Package regrid is the shuffle core: it re-tiles bricks from one grid
// to another by splitting each source brick into per-destination
// fragments, grouping fragments by destination across workers, and
// reassembling one brick per destination.
package regrid

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/metrics"
	"github.com/janelia-flyem/recospark/volume"
)

// FragmentKey identifies a destination brick during the shuffle. Two
// fragments with equal LogicalBoxLo belong to the same destination.
// The co-location hash that pins every fragment for one destination
// onto the same shuffle partition travels beside the key, in
// collection.KV.Hash (see DestinationHash).
type FragmentKey struct {
	LogicalBoxLo box.Vec3
}

// DestinationHash computes H(⌊logicalLo / blockShape⌋), the custom
// hash used to force fragment co-location.
func DestinationHash(logicalLo, blockShape box.Vec3) int64 {
	return brick.HashLo(logicalLo.Div(blockShape))
}

// ErrEmptyIntersection is returned by ClipToLogical when a brick's
// physical box does not intersect its logical box at all.
type ErrEmptyIntersection struct {
	Logical, Physical box.Box
}

func (e *ErrEmptyIntersection) Error() string {
	return fmt.Sprintf("regrid: physical_box %s does not intersect logical_box %s", e.Physical, e.Logical)
}

// ClipToLogical truncates b's physical box to its intersection with
// its logical box, extracting the corresponding subvolume. It fails if
// that intersection is empty. Used to strip source halo before a
// brick is split under a new grid.
func ClipToLogical(ctx context.Context, b *brick.Brick) (*brick.Brick, error) {
	clipped := box.Intersect(b.LogicalBox, b.PhysicalBox)
	if clipped.Empty() {
		return nil, &ErrEmptyIntersection{Logical: b.LogicalBox, Physical: b.PhysicalBox}
	}
	if clipped.Equal(b.PhysicalBox) {
		return b, nil
	}
	vol, err := b.Volume(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := volume.Extract(vol, b.PhysicalBox.Lo, clipped)
	if err != nil {
		return nil, fmt.Errorf("regrid: clip_to_logical: %w", err)
	}
	return brick.NewMaterialised(b.LogicalBox, clipped, sub)
}

// Split decomposes one source brick into per-destination fragments
// under g1. s.PhysicalBox must already be
// contained in s.LogicalBox; call ClipToLogical first if it isn't.
func Split(ctx context.Context, s *brick.Brick, g1 grid.Grid) ([]collection.KV[FragmentKey, *brick.Brick], error) {
	if !s.LogicalBox.Contains(s.PhysicalBox) {
		return nil, fmt.Errorf("regrid: split requires physical_box %s contained in logical_box %s; call ClipToLogical first", s.PhysicalBox, s.LogicalBox)
	}

	vol, err := s.Volume(ctx)
	if err != nil {
		return nil, err
	}

	destWithHalo := g1.CellsOver(s.PhysicalBox, true)
	out := make([]collection.KV[FragmentKey, *brick.Brick], 0, len(destWithHalo))

	for _, dWithHalo := range destWithHalo {
		dLogical := box.New(dWithHalo.Lo.Add(g1.Halo), dWithHalo.Hi.Sub(g1.Halo))
		fragBox := box.Intersect(dWithHalo, s.PhysicalBox)
		if fragBox.Empty() {
			continue
		}

		fragVol, err := volume.Extract(vol, s.PhysicalBox.Lo, fragBox)
		if err != nil {
			return nil, fmt.Errorf("regrid: split: extracting fragment: %w", err)
		}
		frag, err := brick.NewMaterialised(dLogical, fragBox, fragVol)
		if err != nil {
			return nil, err
		}
		if err := frag.Compress(); err != nil {
			return nil, fmt.Errorf("regrid: split: compressing fragment: %w", err)
		}

		h := DestinationHash(dLogical.Lo, g1.BlockShape)
		out = append(out, collection.KV[FragmentKey, *brick.Brick]{
			Key:     FragmentKey{LogicalBoxLo: dLogical.Lo},
			Hash:    h,
			HasHash: true,
			Value:   frag,
		})
	}
	return out, nil
}

// Assemble reconstructs one destination brick from its fragment list
// Returns (nil, nil) if the union of
// fragment physical boxes does not intersect the destination's logical
// box at all (all fragments were pure halo), meaning the destination
// should be dropped rather than emitted.
func Assemble(ctx context.Context, logicalLo box.Vec3, blockShape box.Vec3, fragments []*brick.Brick) (*brick.Brick, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("regrid: assemble called with no fragments")
	}
	logicalBox := box.New(logicalLo, logicalLo.Add(blockShape))

	for _, f := range fragments {
		if !f.LogicalBox.Equal(logicalBox) {
			return nil, fmt.Errorf("regrid: assemble: fragment logical_box %s does not match destination %s", f.LogicalBox, logicalBox)
		}
	}

	finalPhys := fragments[0].PhysicalBox
	for _, f := range fragments[1:] {
		finalPhys = box.New(box.Vec3{
			min64(finalPhys.Lo[0], f.PhysicalBox.Lo[0]),
			min64(finalPhys.Lo[1], f.PhysicalBox.Lo[1]),
			min64(finalPhys.Lo[2], f.PhysicalBox.Lo[2]),
		}, box.Vec3{
			max64(finalPhys.Hi[0], f.PhysicalBox.Hi[0]),
			max64(finalPhys.Hi[1], f.PhysicalBox.Hi[1]),
			max64(finalPhys.Hi[2], f.PhysicalBox.Hi[2]),
		})
	}

	if box.Intersect(finalPhys, logicalBox).Empty() {
		for _, f := range fragments {
			f.Destroy()
		}
		return nil, nil
	}

	var dt volume.DType
	var out volume.Buffer
	for i, f := range fragments {
		fvol, err := f.Volume(ctx)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			dt = fvol.DType
			out = volume.NewBuffer(finalPhys.Shape(), dt)
		}
		if err := volume.Overwrite(out, finalPhys.Lo, f.PhysicalBox, fvol); err != nil {
			return nil, fmt.Errorf("regrid: assemble: writing fragment at %s: %w", f.PhysicalBox, err)
		}
		f.Destroy()
	}

	dest, err := brick.NewMaterialised(logicalBox, finalPhys, out)
	if err != nil {
		return nil, err
	}
	if err := dest.Compress(); err != nil {
		return nil, fmt.Errorf("regrid: assemble: compressing destination: %w", err)
	}
	return dest, nil
}

// Realign re-tiles bricks, already clipped to their logical boxes,
// from their current grid onto g1 via split → group_by_key → assemble.
// Bricks with halo must be passed through ClipToLogical first. obs, if
// non-nil, observes fragment counts and per-destination assembly
// outcomes.
func Realign(ctx context.Context, bricks *collection.Collection[*brick.Brick], g1 grid.Grid, obs *metrics.Metrics) (*collection.Collection[*brick.Brick], error) {
	fragments, err := collection.FlatMap(ctx, bricks, func(s *brick.Brick) ([]collection.KV[FragmentKey, *brick.Brick], error) {
		frags, err := Split(ctx, s, g1)
		if err != nil {
			return nil, err
		}
		obs.AddSplitFragments(len(frags))
		return frags, nil
	})
	if err != nil {
		return nil, err
	}

	grouped, err := collection.GroupByKey(ctx, fragments, fragments.NumPartitions())
	if err != nil {
		return nil, err
	}

	assembled, err := collection.FlatMap(ctx, grouped, func(group collection.Group[FragmentKey, *brick.Brick]) ([]*brick.Brick, error) {
		dest, err := Assemble(ctx, group.Key.LogicalBoxLo, g1.BlockShape, group.Values)
		if err != nil {
			return nil, err
		}
		obs.ObserveAssemble(dest == nil)
		if dest == nil {
			obs.ObserveDropped("halo_only", 1)
			return nil, nil
		}
		return []*brick.Brick{dest}, nil
	})
	if err != nil {
		return nil, err
	}
	return assembled, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
