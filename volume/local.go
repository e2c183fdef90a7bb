package volume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/janelia-flyem/recospark/box"
)

// LocalBackend stores whole-box buffers as flat binary files under a
// base directory, for tests and single-node demo runs where no cloud
// credentials are available.
type LocalBackend struct {
	basePath string
	dtype    DType
}

// NewLocalBackend creates basePath if needed and returns a backend
// rooted there.
func NewLocalBackend(basePath string, dtype DType) (*LocalBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("volume: creating base path %s: %w", basePath, err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("volume: resolving base path %s: %w", basePath, err)
	}
	return &LocalBackend{basePath: abs, dtype: dtype}, nil
}

func (l *LocalBackend) path(origin box.Vec3, shape box.Vec3, scale int) string {
	name := fmt.Sprintf("scale%d_%d_%d_%d-%d_%d_%d.bin", scale,
		origin[0], origin[1], origin[2], shape[0], shape[1], shape[2])
	return filepath.Join(l.basePath, name)
}

// Get implements Accessor. A box with no corresponding file reads back
// as all-zero, matching a sparse volume service's default.
func (l *LocalBackend) Get(ctx context.Context, b box.Box) (Buffer, error) {
	data, err := os.ReadFile(l.path(b.Lo, b.Shape(), 0))
	if os.IsNotExist(err) {
		return NewBuffer(b.Shape(), l.dtype), nil
	}
	if err != nil {
		return Buffer{}, fmt.Errorf("volume: local read %s: %w", b, err)
	}
	want := b.Volume() * int64(l.dtype.Size())
	if int64(len(data)) != want {
		return Buffer{}, fmt.Errorf("volume: local file for %s holds %d bytes, want %d", b, len(data), want)
	}
	return Buffer{Shape: [3]int64(b.Shape()), DType: l.dtype, Data: data}, nil
}

// Write implements Writer.
func (l *LocalBackend) Write(ctx context.Context, origin box.Vec3, scale int, buf Buffer) error {
	path := l.path(origin, buf.ShapeVec(), scale)
	if err := os.WriteFile(path, buf.Data, 0o644); err != nil {
		return fmt.Errorf("volume: local write %s: %w", path, err)
	}
	return nil
}
