package brick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

func TestTranslateShiftsBoxesNotData(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	vol := makeVolume(box.Vec3{2, 2, 2}, func(z, y, x int64) uint64 { return uint64(z*4 + y*2 + x) })
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)

	moved := b.Translate(box.Vec3{10, 0, 0})
	assert.True(t, moved.LogicalBox.Equal(box.New(box.Vec3{10, 0, 0}, box.Vec3{12, 2, 2})))

	got, err := moved.Volume(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.Get(1, 1, 1), "translate must not alter voxel data")
}

func TestTranslateRoundTripRestoresBoxes(t *testing.T) {
	logical := box.New(box.Vec3{4, 8, 12}, box.Vec3{8, 12, 16})
	vol := volume.NewBuffer(logical.Shape(), volume.U8)
	b, err := NewMaterialised(logical, logical, vol)
	require.NoError(t, err)

	delta := box.Vec3{3, -7, 11}
	back := b.Translate(delta).Translate(delta.Scale(-1))
	assert.True(t, back.LogicalBox.Equal(b.LogicalBox))
	assert.True(t, back.PhysicalBox.Equal(b.PhysicalBox))
}

func TestTranslateLazyFetchesFromOriginalLocation(t *testing.T) {
	logical := box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2})
	var seenPhys box.Box
	b := NewLazy(logical, logical, func(ctx context.Context, phys box.Box) (volume.Buffer, error) {
		seenPhys = phys
		return volume.NewBuffer(phys.Shape(), volume.U8), nil
	})
	moved := b.Translate(box.Vec3{100, 0, 0})
	_, err := moved.Volume(context.Background())
	require.NoError(t, err)
	assert.True(t, seenPhys.Equal(logical), "lazy fetch must use the original physical_box")
}
