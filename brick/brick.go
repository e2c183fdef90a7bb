// Package brick implements the unit of work the regridding core moves
// around: a logical grid cell, the physical extent actually backed by
// data, and a lazily materialised voxel buffer with four lifecycle
// states (Lazy, Materialised, Compressed, Destroyed).
package brick

import (
	"context"
	"fmt"
	"sync"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

// State is the brick's current voxel-buffer lifecycle state.
type State int

const (
	Lazy State = iota
	Materialised
	Compressed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Lazy:
		return "lazy"
	case Materialised:
		return "materialised"
	case Compressed:
		return "compressed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// CreateFn lazily produces a brick's volume for the given physical box,
// invoked at most once, on first access.
type CreateFn func(ctx context.Context, physical box.Box) (volume.Buffer, error)

// DestroyedError is returned by any data access on a destroyed brick.
type DestroyedError struct {
	LogicalBox box.Box
}

func (e *DestroyedError) Error() string {
	return fmt.Sprintf("brick: access to destroyed brick (logical_box=%s)", e.LogicalBox)
}

// Brick is a (logical_box, physical_box, volume) triple plus lifecycle
// state. LogicalBox is always an exact grid cell; PhysicalBox is the
// region actually backed by the volume buffer and may be smaller
// (volume edge) or larger (halo) than LogicalBox.
type Brick struct {
	LogicalBox  box.Box
	PhysicalBox box.Box

	mu         sync.Mutex
	state      State
	volume     volume.Buffer
	compressed []byte
	compDType  volume.DType
	compShape  box.Vec3
	create     CreateFn

	hash    int64
	hasHash bool
}

// NewMaterialised builds a brick that already holds its voxel data.
// vol.ShapeVec() must equal physical.Shape().
func NewMaterialised(logical, physical box.Box, vol volume.Buffer) (*Brick, error) {
	if vol.ShapeVec() != physical.Shape() {
		return nil, fmt.Errorf("brick: volume shape %s does not match physical_box shape %s", vol.ShapeVec(), physical.Shape())
	}
	return &Brick{LogicalBox: logical, PhysicalBox: physical, state: Materialised, volume: vol}, nil
}

// NewLazy builds a brick whose volume is created on first access via create.
func NewLazy(logical, physical box.Box, create CreateFn) *Brick {
	return &Brick{LogicalBox: logical, PhysicalBox: physical, state: Lazy, create: create}
}

// SetHash explicitly overrides this brick's hash, returning the brick
// so this reads naturally in a map/transform chain. Custom hashes are
// used during regridding to co-locate all fragments of one destination
// during realign.
func (b *Brick) SetHash(h int64) *Brick {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hash = h
	b.hasHash = true
	return b
}

// Hash returns this brick's hash: the explicit custom hash if set,
// otherwise a BLAKE2b-derived spread of LogicalBox.Lo, a deterministic
// function of the logical origin that spreads cells uniformly across
// partitions.
func (b *Brick) Hash() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasHash {
		return b.hash
	}
	return HashLo(b.LogicalBox.Lo)
}

// State returns the brick's current lifecycle state.
func (b *Brick) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Volume returns the materialised voxel buffer, decompressing or
// invoking the lazy creation function on first access as needed. Fails
// if the brick has been destroyed, or if a lazy creation function
// returns a buffer whose shape does not match PhysicalBox.
func (b *Brick) Volume(ctx context.Context) (volume.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volumeLocked(ctx)
}

func (b *Brick) volumeLocked(ctx context.Context) (volume.Buffer, error) {
	switch b.state {
	case Destroyed:
		return volume.Buffer{}, &DestroyedError{LogicalBox: b.LogicalBox}
	case Materialised:
		return b.volume, nil
	case Compressed:
		vol, err := Decompress(b.compressed, b.compDType, b.compShape)
		if err != nil {
			return volume.Buffer{}, fmt.Errorf("brick: decompress failed: %w", err)
		}
		b.volume = vol
		b.compressed = nil
		b.state = Materialised
		return b.volume, nil
	case Lazy:
		vol, err := b.create(ctx, b.PhysicalBox)
		if err == nil && vol.ShapeVec() != b.PhysicalBox.Shape() {
			err = fmt.Errorf(
				"brick: lazy creation function returned shape %s, want %s (physical_box)",
				vol.ShapeVec(), b.PhysicalBox.Shape())
		}
		if err != nil {
			// Later accesses report the same failure without invoking
			// the creation function again.
			b.create = func(context.Context, box.Box) (volume.Buffer, error) { return volume.Buffer{}, err }
			return volume.Buffer{}, err
		}
		b.volume = vol
		b.create = nil
		b.state = Materialised
		return b.volume, nil
	default:
		return volume.Buffer{}, fmt.Errorf("brick: unknown state %v", b.state)
	}
}

// Compress replaces a materialised volume with an opaque compressed
// blob, decompressed transparently on next access. A brick that is
// Lazy or already Compressed is left unchanged; compression only acts
// on data currently resident in memory, matching the "transport across
// worker boundaries must serialise a brick in its Compressed form"
// contract without forcing decompression of lazy/compressed bricks
// that haven't been touched yet.
func (b *Brick) Compress() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Destroyed {
		return &DestroyedError{LogicalBox: b.LogicalBox}
	}
	if b.state != Materialised {
		return nil
	}
	blob, err := Compress(b.volume)
	if err != nil {
		return fmt.Errorf("brick: compress failed: %w", err)
	}
	b.compressed = blob
	b.compDType = b.volume.DType
	b.compShape = b.volume.ShapeVec()
	b.volume = volume.Buffer{}
	b.state = Compressed
	return nil
}

// Destroy releases the brick's data and marks it terminal. Any
// subsequent Volume/Compress call fails with *DestroyedError.
func (b *Brick) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = volume.Buffer{}
	b.compressed = nil
	b.create = nil
	b.state = Destroyed
}

func (b *Brick) String() string {
	if b.LogicalBox.Equal(b.PhysicalBox) {
		return fmt.Sprintf("Brick{logical=physical=%s}", b.LogicalBox)
	}
	return fmt.Sprintf("Brick{logical=%s, physical=%s}", b.LogicalBox, b.PhysicalBox)
}
