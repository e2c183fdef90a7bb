package brick

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

// Compress produces an opaque, lossless blob of vol.Data using DEFLATE
// at BestSpeed; fragments are compressed on every split, so codec
// throughput matters more than ratio here.
func Compress(vol volume.Buffer) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(vol.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress, reconstructing a Buffer of the given
// dtype and shape. Round-trip is lossless for any supported dtype,
// satisfying the compression codec's round-trip contract.
func Decompress(blob []byte, dt volume.DType, shape box.Vec3) (volume.Buffer, error) {
	r := flate.NewReader(bytes.NewReader(blob))
	defer r.Close()

	out := volume.NewBuffer(shape, dt)
	n, err := io.ReadFull(r, out.Data)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return volume.Buffer{}, err
	}
	if n != len(out.Data) {
		return volume.Buffer{}, fmt.Errorf("brick: decompressed %d bytes, want %d", n, len(out.Data))
	}
	return out, nil
}
