package brick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

func makeVolume(shape box.Vec3, fill func(z, y, x int64) uint64) volume.Buffer {
	buf := volume.NewBuffer(shape, volume.U8)
	for z := int64(0); z < shape[0]; z++ {
		for y := int64(0); y < shape[1]; y++ {
			for x := int64(0); x < shape[2]; x++ {
				buf.Set(z, y, x, fill(z, y, x))
			}
		}
	}
	return buf
}

func TestMaterialisedVolumeRoundTrip(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	vol := makeVolume(box.Vec3{2, 2, 2}, func(z, y, x int64) uint64 { return uint64(z*4 + y*2 + x) })
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)

	got, err := b.Volume(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.Get(1, 1, 1))
}

func TestNewMaterialisedRejectsShapeMismatch(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	vol := volume.NewBuffer(box.Vec3{3, 3, 3}, volume.U8)
	_, err := NewMaterialised(logical, logical, vol)
	require.Error(t, err)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{3, 3, 3})
	vol := makeVolume(box.Vec3{3, 3, 3}, func(z, y, x int64) uint64 { return uint64(z*9 + y*3 + x) })
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)

	require.NoError(t, b.Compress())
	require.Equal(t, Compressed, b.State())

	got, err := b.Volume(context.Background())
	require.NoError(t, err)
	for z := int64(0); z < 3; z++ {
		for y := int64(0); y < 3; y++ {
			for x := int64(0); x < 3; x++ {
				require.EqualValues(t, z*9+y*3+x, got.Get(z, y, x), "voxel (%d,%d,%d)", z, y, x)
			}
		}
	}
	assert.Equal(t, Materialised, b.State(), "state should flip back to Materialised after access")
}

func TestCompressionRoundTripsAllDTypes(t *testing.T) {
	for _, dt := range []volume.DType{volume.U8, volume.U16, volume.U32, volume.U64} {
		vol := volume.NewBuffer(box.Vec3{2, 3, 4}, dt)
		var i uint64
		for z := int64(0); z < 2; z++ {
			for y := int64(0); y < 3; y++ {
				for x := int64(0); x < 4; x++ {
					vol.Set(z, y, x, i*7919)
					i++
				}
			}
		}
		blob, err := Compress(vol)
		require.NoError(t, err, "dtype %s", dt)
		back, err := Decompress(blob, dt, vol.ShapeVec())
		require.NoError(t, err, "dtype %s", dt)
		assert.Equal(t, vol.Data, back.Data, "dtype %s must round-trip bit-for-bit", dt)
	}
}

func TestLazyCreationInvokedOnce(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	calls := 0
	b := NewLazy(logical, logical, func(ctx context.Context, phys box.Box) (volume.Buffer, error) {
		calls++
		return volume.NewBuffer(phys.Shape(), volume.U8), nil
	})
	_, err := b.Volume(context.Background())
	require.NoError(t, err)
	_, err = b.Volume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "lazy creation must run at most once")
}

func TestLazyCreationShapeMismatchFails(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	b := NewLazy(logical, logical, func(ctx context.Context, phys box.Box) (volume.Buffer, error) {
		return volume.NewBuffer(box.Vec3{1, 1, 1}, volume.U8), nil
	})
	_, err := b.Volume(context.Background())
	require.Error(t, err)
}

func TestDestroyedBrickFailsOnAccess(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	vol := volume.NewBuffer(box.Vec3{2, 2, 2}, volume.U8)
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)
	b.Destroy()

	_, err = b.Volume(context.Background())
	var de *DestroyedError
	require.ErrorAs(t, err, &de)
	require.ErrorAs(t, b.Compress(), &de)
}

func TestHashLoIsDeterministicAndSpreads(t *testing.T) {
	assert.Equal(t, HashLo(box.Vec3{0, 0, 0}), HashLo(box.Vec3{0, 0, 0}))
	assert.NotEqual(t, HashLo(box.Vec3{0, 0, 0}), HashLo(box.Vec3{1, 0, 0}))
}

func TestCustomHashOverridesDefault(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	vol := volume.NewBuffer(box.Vec3{2, 2, 2}, volume.U8)
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)
	b.SetHash(42)
	assert.EqualValues(t, 42, b.Hash())
}
