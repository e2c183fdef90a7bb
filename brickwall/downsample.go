package brickwall

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/volume"
)

// Method selects the voxel downsampling algorithm.
type Method int

const (
	// Grayscale averages each window (smoothed resampling).
	Grayscale Method = iota
	// Label takes the modal value of each window, suppressing zero
	// unless the entire window is zero.
	Label
)

// Downsample shrinks every brick's boxes and voxel data by factor,
// and scales the wall's bounding box the same way. factor must evenly
// divide every brick's logical and physical box corners, keeping grid
// alignment intact after scaling.
func (w *BrickWall) Downsample(ctx context.Context, factor int64, method Method) (*BrickWall, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("brickwall: downsample: factor must be positive, got %d", factor)
	}
	step := box.Vec3{factor, factor, factor}

	out, err := collection.Map(ctx, w.Bricks, func(b *brick.Brick) (*brick.Brick, error) {
		if !dividesBox(b.LogicalBox, factor) || !dividesBox(b.PhysicalBox, factor) {
			return nil, fmt.Errorf("brickwall: downsample: factor %d does not evenly divide brick boxes (logical=%s physical=%s)", factor, b.LogicalBox, b.PhysicalBox)
		}
		vol, err := b.Volume(ctx)
		if err != nil {
			return nil, err
		}
		var down volume.Buffer
		switch method {
		case Grayscale:
			down = downsampleGrayscale(vol, factor)
		case Label:
			down = downsampleLabel(vol, factor)
		default:
			return nil, fmt.Errorf("brickwall: downsample: unknown method %d", method)
		}
		return brick.NewMaterialised(b.LogicalBox.DivScalar(factor), b.PhysicalBox.DivScalar(factor), down)
	})
	if err != nil {
		return nil, err
	}

	return &BrickWall{
		BoundingBox: w.BoundingBox.DivScalar(factor),
		Grid:        grid.NewWithHalo(w.Grid.BlockShape.Div(step), w.Grid.Offset.Div(step), w.Grid.Halo.Div(step)),
		Bricks:      out,
		Metrics:     w.Metrics,
	}, nil
}

func dividesBox(b box.Box, factor int64) bool {
	for i := 0; i < 3; i++ {
		if b.Lo[i]%factor != 0 || b.Hi[i]%factor != 0 {
			return false
		}
	}
	return true
}

// downsampleGrayscale replaces each factor^3 window with its rounded
// mean, a smoothed resampling.
func downsampleGrayscale(vol volume.Buffer, factor int64) volume.Buffer {
	shape := vol.ShapeVec()
	outShape := box.Vec3{shape[0] / factor, shape[1] / factor, shape[2] / factor}
	out := volume.NewBuffer(outShape, vol.DType)

	for oz := int64(0); oz < outShape[0]; oz++ {
		for oy := int64(0); oy < outShape[1]; oy++ {
			for ox := int64(0); ox < outShape[2]; ox++ {
				var sum uint64
				var count uint64
				for dz := int64(0); dz < factor; dz++ {
					for dy := int64(0); dy < factor; dy++ {
						for dx := int64(0); dx < factor; dx++ {
							sum += vol.Get(oz*factor+dz, oy*factor+dy, ox*factor+dx)
							count++
						}
					}
				}
				out.Set(oz, oy, ox, (sum+count/2)/count)
			}
		}
	}
	return out
}

// downsampleLabel replaces each factor^3 window with its modal value,
// suppressing zero unless every voxel in the window is zero. Ties
// among equally frequent non-zero values are
// broken by picking the smallest value, for determinism.
func downsampleLabel(vol volume.Buffer, factor int64) volume.Buffer {
	shape := vol.ShapeVec()
	outShape := box.Vec3{shape[0] / factor, shape[1] / factor, shape[2] / factor}
	out := volume.NewBuffer(outShape, vol.DType)

	freq := make(map[uint64]int)
	for oz := int64(0); oz < outShape[0]; oz++ {
		for oy := int64(0); oy < outShape[1]; oy++ {
			for ox := int64(0); ox < outShape[2]; ox++ {
				for k := range freq {
					delete(freq, k)
				}
				var nonZero int
				for dz := int64(0); dz < factor; dz++ {
					for dy := int64(0); dy < factor; dy++ {
						for dx := int64(0); dx < factor; dx++ {
							v := vol.Get(oz*factor+dz, oy*factor+dy, ox*factor+dx)
							freq[v]++
							if v != 0 {
								nonZero++
							}
						}
					}
				}
				if nonZero == 0 {
					out.Set(oz, oy, ox, 0)
					continue
				}
				var best uint64
				bestCount := -1
				for v, c := range freq {
					if v == 0 {
						continue
					}
					if c > bestCount || (c == bestCount && v < best) {
						best, bestCount = v, c
					}
				}
				out.Set(oz, oy, ox, best)
			}
		}
	}
	return out
}
