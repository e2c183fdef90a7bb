// Package volume defines the wire format and external accessor
// contract the regridding core is built against: a dense, typed,
// C-contiguous voxel buffer, and the Accessor/Writer
// interfaces an external storage service must implement.
package volume

import (
	"fmt"

	"github.com/janelia-flyem/recospark/box"
)

// DType is one of the four scalar voxel types the core supports.
type DType uint8

const (
	U8 DType = iota
	U16
	U32
	U64
)

// Size returns the byte width of one voxel of this dtype.
func (d DType) Size() int {
	switch d {
	case U8:
		return 1
	case U16:
		return 2
	case U32:
		return 4
	case U64:
		return 8
	default:
		panic(fmt.Sprintf("volume: unknown dtype %d", d))
	}
}

func (d DType) String() string {
	switch d {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	default:
		return "unknown"
	}
}

// Buffer is a dense n-D voxel buffer stored C-contiguous
// (last-axis-fastest, i.e. x varies fastest, then y, then z).
type Buffer struct {
	Shape [3]int64
	DType DType
	// Data holds Shape[0]*Shape[1]*Shape[2]*DType.Size() bytes.
	Data []byte
}

// NewBuffer allocates a zeroed buffer of the given shape and dtype.
func NewBuffer(shape box.Vec3, dt DType) Buffer {
	n := shape[0] * shape[1] * shape[2] * int64(dt.Size())
	return Buffer{Shape: [3]int64(shape), DType: dt, Data: make([]byte, n)}
}

// ShapeVec returns Shape as a box.Vec3.
func (b Buffer) ShapeVec() box.Vec3 {
	return box.Vec3(b.Shape)
}

// VoxelCount returns the total number of voxels in the buffer.
func (b Buffer) VoxelCount() int64 {
	return b.Shape[0] * b.Shape[1] * b.Shape[2]
}

// strides returns the element strides (in voxels, not bytes) for
// C-contiguous (z,y,x) indexing: strideZ = shape.y*shape.x, strideY = shape.x, strideX = 1.
func (b Buffer) strides() [3]int64 {
	return [3]int64{b.Shape[1] * b.Shape[2], b.Shape[2], 1}
}

// Get returns the voxel at (z,y,x) as a uint64, widened from the
// buffer's native dtype.
func (b Buffer) Get(z, y, x int64) uint64 {
	st := b.strides()
	idx := (z*st[0] + y*st[1] + x*st[2]) * int64(b.DType.Size())
	return decodeAt(b.Data, idx, b.DType)
}

// Set writes v (truncated to the buffer's native dtype width) at (z,y,x).
func (b Buffer) Set(z, y, x int64, v uint64) {
	st := b.strides()
	idx := (z*st[0] + y*st[1] + x*st[2]) * int64(b.DType.Size())
	encodeAt(b.Data, idx, b.DType, v)
}

// Any reports whether the buffer contains any non-zero voxel.
func (b Buffer) Any() bool {
	for _, v := range b.Data {
		if v != 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of b.
func (b Buffer) Clone() Buffer {
	cp := make([]byte, len(b.Data))
	copy(cp, b.Data)
	return Buffer{Shape: b.Shape, DType: b.DType, Data: cp}
}

func decodeAt(data []byte, idx int64, dt DType) uint64 {
	switch dt {
	case U8:
		return uint64(data[idx])
	case U16:
		return uint64(data[idx]) | uint64(data[idx+1])<<8
	case U32:
		var v uint64
		for i := int64(0); i < 4; i++ {
			v |= uint64(data[idx+i]) << (8 * i)
		}
		return v
	case U64:
		var v uint64
		for i := int64(0); i < 8; i++ {
			v |= uint64(data[idx+i]) << (8 * i)
		}
		return v
	default:
		panic("volume: unknown dtype")
	}
}

func encodeAt(data []byte, idx int64, dt DType, v uint64) {
	n := dt.Size()
	for i := 0; i < n; i++ {
		data[idx+int64(i)] = byte(v >> (8 * uint(i)))
	}
}

// Extract copies the subregion (b - origin) of vol into a new, tightly
// packed Buffer of shape shape(b). Fails if b is not fully contained
// within the buffer's extent.
func Extract(vol Buffer, origin box.Vec3, b box.Box) (Buffer, error) {
	volBox := box.New(origin, origin.Add(vol.ShapeVec()))
	if !volBox.Contains(b) {
		return Buffer{}, fmt.Errorf("volume: extract box %s not contained in volume %s", b, volBox)
	}
	rel := b.Translate(origin.Scale(-1))
	out := NewBuffer(b.Shape(), vol.DType)
	shape := b.Shape()
	for z := int64(0); z < shape[0]; z++ {
		for y := int64(0); y < shape[1]; y++ {
			for x := int64(0); x < shape[2]; x++ {
				v := vol.Get(rel.Lo[0]+z, rel.Lo[1]+y, rel.Lo[2]+x)
				out.Set(z, y, x, v)
			}
		}
	}
	return out, nil
}

// Overwrite writes src into vol at (b - origin). Fails if src's shape
// does not equal shape(b), or if b does not fit inside vol.
func Overwrite(vol Buffer, origin box.Vec3, b box.Box, src Buffer) error {
	if src.ShapeVec() != b.Shape() {
		return fmt.Errorf("volume: overwrite shape mismatch: src=%s box=%s", src.ShapeVec(), b.Shape())
	}
	volBox := box.New(origin, origin.Add(vol.ShapeVec()))
	if !volBox.Contains(b) {
		return fmt.Errorf("volume: overwrite box %s not contained in volume %s", b, volBox)
	}
	if vol.DType != src.DType {
		return fmt.Errorf("volume: overwrite dtype mismatch: vol=%s src=%s", vol.DType, src.DType)
	}
	rel := b.Translate(origin.Scale(-1))
	shape := b.Shape()
	for z := int64(0); z < shape[0]; z++ {
		for y := int64(0); y < shape[1]; y++ {
			for x := int64(0); x < shape[2]; x++ {
				v := src.Get(z, y, x)
				vol.Set(rel.Lo[0]+z, rel.Lo[1]+y, rel.Lo[2]+x, v)
			}
		}
	}
	return nil
}
