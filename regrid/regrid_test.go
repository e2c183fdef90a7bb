package regrid

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/generate"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/metrics"
	"github.com/janelia-flyem/recospark/volume"
)

func fillValue(z, y, x int64) uint64 { return uint64(z*16 + y*4 + x) }

func sourceAccessor() volume.Accessor {
	return volume.AccessorFunc(func(ctx context.Context, b box.Box) (volume.Buffer, error) {
		buf := volume.NewBuffer(b.Shape(), volume.U8)
		for z := int64(0); z < b.Shape()[0]; z++ {
			for y := int64(0); y < b.Shape()[1]; y++ {
				for x := int64(0); x < b.Shape()[2]; x++ {
					buf.Set(z, y, x, fillValue(b.Lo[0]+z, b.Lo[1]+y, b.Lo[2]+x))
				}
			}
		}
		return buf, nil
	})
}

func TestDenseRegridConcatenatesSourceBricks(t *testing.T) {
	ctx := context.Background()
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	g0 := grid.New(box.Vec3{2, 2, 2}, box.Vec3{0, 0, 0})
	g1 := grid.New(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0})
	accessor := sourceAccessor()

	sources, err := generate.Generate(ctx, bb, g0, accessor, generate.Options{})
	require.NoError(t, err)
	require.Len(t, sources, 8)

	coll := collection.New(collection.Sequential(), sources, 4)
	result, err := Realign(ctx, coll, g1, nil)
	require.NoError(t, err)
	out := result.Collect()
	require.Len(t, out, 1, "eight 2-cubes under a 4-cube grid make one destination")

	dest := out[0]
	assert.True(t, dest.PhysicalBox.Equal(bb))
	vol, err := dest.Volume(ctx)
	require.NoError(t, err)
	for z := int64(0); z < 4; z++ {
		for y := int64(0); y < 4; y++ {
			for x := int64(0); x < 4; x++ {
				require.EqualValues(t, fillValue(z, y, x), vol.Get(z, y, x), "voxel (%d,%d,%d)", z, y, x)
			}
		}
	}
}

func TestRealignToSameGridPreservesVoxels(t *testing.T) {
	ctx := context.Background()
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	g0 := grid.New(box.Vec3{2, 2, 2}, box.Vec3{0, 0, 0})
	accessor := sourceAccessor()

	sources, err := generate.Generate(ctx, bb, g0, accessor, generate.Options{})
	require.NoError(t, err)
	coll := collection.New(collection.Sequential(), sources, 2)

	result, err := Realign(ctx, coll, g0, nil)
	require.NoError(t, err)
	out := result.Collect()
	require.Len(t, out, 8, "realigning onto the same grid keeps one brick per cell")

	for _, d := range out {
		assert.True(t, d.PhysicalBox.Equal(d.LogicalBox))
		vol, err := d.Volume(ctx)
		require.NoError(t, err)
		for z := int64(0); z < 2; z++ {
			for y := int64(0); y < 2; y++ {
				for x := int64(0); x < 2; x++ {
					want := fillValue(d.PhysicalBox.Lo[0]+z, d.PhysicalBox.Lo[1]+y, d.PhysicalBox.Lo[2]+x)
					require.EqualValues(t, want, vol.Get(z, y, x))
				}
			}
		}
	}
}

func TestHaloDestinationFeedsNeighbourVoxels(t *testing.T) {
	ctx := context.Background()
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{8, 8, 8})
	g0 := grid.New(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0})
	g1 := grid.NewWithHalo(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0}, box.Vec3{1, 1, 1})
	accessor := sourceAccessor()

	sources, err := generate.Generate(ctx, bb, g0, accessor, generate.Options{})
	require.NoError(t, err)
	coll := collection.New(collection.Sequential(), sources, 2)
	result, err := Realign(ctx, coll, g1, nil)
	require.NoError(t, err)
	out := result.Collect()
	require.Len(t, out, 8)

	for _, d := range out {
		// Every destination touches the volume edge on one side of each
		// axis, so its halo extent is 4 + 1 = 5 voxels per axis here.
		shape := d.PhysicalBox.Shape()
		for i := 0; i < 3; i++ {
			assert.EqualValues(t, 5, shape[i], "destination %s axis %d", d.PhysicalBox, i)
		}

		// Halo voxels carry real neighbour data, not zero fill.
		vol, err := d.Volume(ctx)
		require.NoError(t, err)
		p := d.PhysicalBox
		for z := int64(0); z < shape[0]; z++ {
			for y := int64(0); y < shape[1]; y++ {
				for x := int64(0); x < shape[2]; x++ {
					want := fillValue(p.Lo[0]+z, p.Lo[1]+y, p.Lo[2]+x)
					require.EqualValues(t, want, vol.Get(z, y, x),
						"halo voxel (%d,%d,%d) of destination %s", z, y, x, d.LogicalBox)
				}
			}
		}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestRealignReportsFragmentAndAssemblyMetrics(t *testing.T) {
	ctx := context.Background()
	bb := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	g0 := grid.New(box.Vec3{2, 2, 2}, box.Vec3{0, 0, 0})
	g1 := grid.New(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0})

	sources, err := generate.Generate(ctx, bb, g0, sourceAccessor(), generate.Options{})
	require.NoError(t, err)
	coll := collection.New(collection.Sequential(), sources, 2)

	m := metrics.New(prometheus.NewRegistry())
	_, err = Realign(ctx, coll, g1, m)
	require.NoError(t, err)

	// Eight 2-cubes each emit one fragment for the single 4-cube
	// destination, which is assembled and kept.
	assert.EqualValues(t, 8, counterValue(t, m.SplitFragments))
	assert.EqualValues(t, 1, counterValue(t, m.AssembleCalls.WithLabelValues("kept")))
	assert.EqualValues(t, 0, counterValue(t, m.AssembleCalls.WithLabelValues("dropped_halo_only")))
}

func TestClipToLogicalTrimsHaloAndFailsOnEmptyIntersection(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	physical := box.New(box.Vec3{-1, -1, -1}, box.Vec3{5, 5, 5})
	vol := volume.NewBuffer(physical.Shape(), volume.U8)
	b, err := brick.NewMaterialised(logical, physical, vol)
	require.NoError(t, err)

	clipped, err := ClipToLogical(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, clipped.PhysicalBox.Equal(logical))

	disjointLogical := box.New(box.Vec3{100, 100, 100}, box.Vec3{104, 104, 104})
	disjoint, err := brick.NewMaterialised(disjointLogical, physical, vol)
	require.NoError(t, err)
	_, err = ClipToLogical(context.Background(), disjoint)
	var empty *ErrEmptyIntersection
	require.ErrorAs(t, err, &empty)
}

func TestSplitRequiresHaloFreePhysicalBox(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	physical := box.New(box.Vec3{-1, -1, -1}, box.Vec3{5, 5, 5})
	vol := volume.NewBuffer(physical.Shape(), volume.U8)
	b, err := brick.NewMaterialised(logical, physical, vol)
	require.NoError(t, err)

	g1 := grid.New(box.Vec3{4, 4, 4}, box.Vec3{0, 0, 0})
	_, err = Split(context.Background(), b, g1)
	require.Error(t, err)
}

func TestSplitEmitsCompressedCoLocatedFragments(t *testing.T) {
	ctx := context.Background()
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	vol := volume.NewBuffer(logical.Shape(), volume.U8)
	b, err := brick.NewMaterialised(logical, logical, vol)
	require.NoError(t, err)

	g1 := grid.New(box.Vec3{2, 2, 2}, box.Vec3{0, 0, 0})
	frags, err := Split(ctx, b, g1)
	require.NoError(t, err)
	require.Len(t, frags, 8)

	for _, kv := range frags {
		assert.True(t, kv.HasHash, "every fragment must carry the destination co-location hash")
		assert.Equal(t, DestinationHash(kv.Key.LogicalBoxLo, g1.BlockShape), kv.Hash)
		assert.Equal(t, brick.Compressed, kv.Value.State(), "fragments are compressed immediately")
	}
}

func TestAssembleDropsPureHaloDestination(t *testing.T) {
	logicalLo := box.Vec3{0, 0, 0}
	blockShape := box.Vec3{4, 4, 4}
	// A fragment whose physical box lies entirely in the halo, outside
	// [0,4) on every axis.
	fragBox := box.New(box.Vec3{4, 4, 4}, box.Vec3{5, 5, 5})
	vol := volume.NewBuffer(fragBox.Shape(), volume.U8)
	logicalBox := box.New(logicalLo, logicalLo.Add(blockShape))
	frag, err := brick.NewMaterialised(logicalBox, fragBox, vol)
	require.NoError(t, err)

	dest, err := Assemble(context.Background(), logicalLo, blockShape, []*brick.Brick{frag})
	require.NoError(t, err)
	assert.Nil(t, dest, "a pure-halo destination is dropped, not emitted")
}

func TestAssembleRejectsMismatchedLogicalBoxes(t *testing.T) {
	blockShape := box.Vec3{4, 4, 4}
	a := box.New(box.Vec3{0, 0, 0}, box.Vec3{4, 4, 4})
	other := box.New(box.Vec3{4, 0, 0}, box.Vec3{8, 4, 4})

	frag, err := brick.NewMaterialised(other, other, volume.NewBuffer(other.Shape(), volume.U8))
	require.NoError(t, err)
	_, err = Assemble(context.Background(), a.Lo, blockShape, []*brick.Brick{frag})
	require.Error(t, err)
}

func TestAssembleDestroysFragmentsAfterCopy(t *testing.T) {
	logicalLo := box.Vec3{0, 0, 0}
	blockShape := box.Vec3{2, 2, 2}
	logicalBox := box.New(logicalLo, logicalLo.Add(blockShape))

	frag, err := brick.NewMaterialised(logicalBox, logicalBox, volume.NewBuffer(blockShape, volume.U8))
	require.NoError(t, err)

	dest, err := Assemble(context.Background(), logicalLo, blockShape, []*brick.Brick{frag})
	require.NoError(t, err)
	require.NotNil(t, dest)
	assert.Equal(t, brick.Destroyed, frag.State(), "fragments are destroyed once copied")
	assert.Equal(t, brick.Compressed, dest.State(), "the assembled brick leaves the worker compressed")
}
