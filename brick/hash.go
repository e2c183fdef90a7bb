package brick

import (
	"encoding/binary"

	"github.com/gtank/blake2/blake2b"
	"github.com/janelia-flyem/recospark/box"
)

// HashLo computes the default brick hash: a BLAKE2b-64 digest of the
// logical box's lo corner, folded into an int64, so bricks spread
// uniformly across partitions regardless of how regularly the grid's
// logical cells are spaced.
func HashLo(lo box.Vec3) int64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(lo[0]))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(lo[1]))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(lo[2]))

	d, err := blake2b.NewDigest(nil, nil, nil, 8)
	if err != nil {
		// NewDigest only fails for invalid key/salt/personalization
		// lengths or an out-of-range output size; none of which can
		// happen with the fixed, valid arguments above.
		panic(err)
	}
	d.Write(buf[:])
	sum := d.Sum(nil)
	return int64(binary.LittleEndian.Uint64(sum))
}
