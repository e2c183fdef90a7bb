package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/recospark/box"
)

func TestLocalBackendWriteThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir(), U8)
	require.NoError(t, err)

	origin := box.Vec3{0, 0, 0}
	buf := NewBuffer(box.Vec3{2, 2, 2}, U8)
	buf.Set(1, 1, 1, 9)

	require.NoError(t, backend.Write(ctx, origin, 0, buf))

	got, err := backend.Get(ctx, box.New(origin, origin.Add(box.Vec3{2, 2, 2})))
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.Get(1, 1, 1))
}

func TestLocalBackendGetMissingReturnsZeroBuffer(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir(), U8)
	require.NoError(t, err)

	got, err := backend.Get(ctx, box.New(box.Vec3{0, 0, 0}, box.Vec3{2, 2, 2}))
	require.NoError(t, err)
	assert.False(t, got.Any(), "a missing file reads back as all-zero")
}
