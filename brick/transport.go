package brick

import (
	"encoding/binary"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

// MarshalBinary encodes b in its compressed transport form, the
// default wire encoding: logical and physical boxes, dtype, compressed
// shape, then the compressed blob.
// A Lazy or Destroyed brick cannot be transported; callers must
// materialise (and this call will then compress) first.
func (b *Brick) MarshalBinary() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Destroyed:
		return nil, &DestroyedError{LogicalBox: b.LogicalBox}
	case Lazy:
		return nil, fmt.Errorf("brick: cannot marshal a lazy brick without materialising it first")
	case Materialised:
		blob, err := Compress(b.volume)
		if err != nil {
			return nil, fmt.Errorf("brick: marshal: compress: %w", err)
		}
		b.compressed = blob
		b.compDType = b.volume.DType
		b.compShape = b.volume.ShapeVec()
		b.volume = volume.Buffer{}
		b.state = Compressed
	case Compressed:
		// already in transport form
	}

	out := make([]byte, 0, 48+48+1+24+8+len(b.compressed))
	out = appendVec3(out, b.LogicalBox.Lo)
	out = appendVec3(out, b.LogicalBox.Hi)
	out = appendVec3(out, b.PhysicalBox.Lo)
	out = appendVec3(out, b.PhysicalBox.Hi)
	out = append(out, byte(b.compDType))
	out = appendVec3(out, b.compShape)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b.compressed)))
	out = append(out, lenBuf[:]...)
	out = append(out, b.compressed...)
	return out, nil
}

// UnmarshalBinary decodes the wire form MarshalBinary produces into b,
// leaving the brick in the Compressed state. b should be a freshly
// allocated, zero-value *Brick.
func (b *Brick) UnmarshalBinary(data []byte) error {
	const headerLen = 4*24 + 1 + 24 + 8 // 2 boxes' 4 corners + dtype + comp shape + blob length
	if len(data) < headerLen {
		return fmt.Errorf("brick: unmarshal: truncated header (%d bytes)", len(data))
	}

	off := 0
	logicalLo := readVec3(data[off:])
	off += 24
	logicalHi := readVec3(data[off:])
	off += 24
	physicalLo := readVec3(data[off:])
	off += 24
	physicalHi := readVec3(data[off:])
	off += 24

	dt := volume.DType(data[off])
	off++

	shape := readVec3(data[off:])
	off += 24

	blobLen := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	if uint64(len(data)-off) < blobLen {
		return fmt.Errorf("brick: unmarshal: truncated payload, want %d bytes, have %d", blobLen, len(data)-off)
	}
	blob := make([]byte, blobLen)
	copy(blob, data[off:off+int(blobLen)])

	b.mu.Lock()
	defer b.mu.Unlock()
	b.LogicalBox = box.New(logicalLo, logicalHi)
	b.PhysicalBox = box.New(physicalLo, physicalHi)
	b.compDType = dt
	b.compShape = shape
	b.compressed = blob
	b.state = Compressed
	return nil
}

func appendVec3(out []byte, v box.Vec3) []byte {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v[0]))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v[1]))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(v[2]))
	return append(out, buf[:]...)
}

func readVec3(data []byte) box.Vec3 {
	return box.Vec3{
		int64(binary.LittleEndian.Uint64(data[0:8])),
		int64(binary.LittleEndian.Uint64(data[8:16])),
		int64(binary.LittleEndian.Uint64(data[16:24])),
	}
}
