// Package box implements axis-aligned 3D integer interval algebra.
//
// A Box is a half-open interval [Lo, Hi) in (z, y, x) order. All
// operations here are pure and total: a box with a non-positive
// component in its shape is "empty" and carries no special sentinel
// value, it is just a box whose Hi does not exceed its Lo on some axis.
package box

import "fmt"

// Vec3 is a (z, y, x) integer 3-vector.
type Vec3 [3]int64

// Add returns a + b componentwise.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub returns a - b componentwise.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Mul returns a * b componentwise.
func (a Vec3) Mul(b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Div returns the floor quotient a / b componentwise. b must be > 0.
func (a Vec3) Div(b Vec3) Vec3 {
	return Vec3{floorDiv(a[0], b[0]), floorDiv(a[1], b[1]), floorDiv(a[2], b[2])}
}

// Scale multiplies every component by s.
func (a Vec3) Scale(s int64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

// Min returns the componentwise minimum of a and b.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{min64(a[0], b[0]), min64(a[1], b[1]), min64(a[2], b[2])}
}

// Max returns the componentwise maximum of a and b.
func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{max64(a[0], b[0]), max64(a[1], b[1]), max64(a[2], b[2])}
}

func (a Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", a[0], a[1], a[2])
}

// Box is a half-open axis-aligned interval [Lo, Hi) in global coordinates.
type Box struct {
	Lo, Hi Vec3
}

// New builds a Box from two corners.
func New(lo, hi Vec3) Box {
	return Box{Lo: lo, Hi: hi}
}

// Shape returns Hi - Lo. A non-positive component means the box is empty.
func (b Box) Shape() Vec3 {
	return b.Hi.Sub(b.Lo)
}

// Empty reports whether the box has a non-positive extent on any axis.
func (b Box) Empty() bool {
	s := b.Shape()
	return s[0] <= 0 || s[1] <= 0 || s[2] <= 0
}

// Volume returns the voxel count of the box, 0 if empty.
func (b Box) Volume() int64 {
	if b.Empty() {
		return 0
	}
	s := b.Shape()
	return s[0] * s[1] * s[2]
}

// Intersect returns the componentwise intersection of a and b.
// The result may be empty (non-positive shape); this is never an error,
// callers must check Empty() where emptiness is meaningful.
func Intersect(a, b Box) Box {
	return Box{Lo: a.Lo.Max(b.Lo), Hi: a.Hi.Min(b.Hi)}
}

// Intersects reports whether a and b overlap on a non-trivial region.
func Intersects(a, b Box) bool {
	return !Intersect(a, b).Empty()
}

// Translate shifts both endpoints by delta.
func (b Box) Translate(delta Vec3) Box {
	return Box{Lo: b.Lo.Add(delta), Hi: b.Hi.Add(delta)}
}

// DivScalar divides both endpoints by a uniform integer factor. Used by
// downsample, where both logical and physical boxes are required
// (precondition, checked by the caller) to be aligned to factor.
func (b Box) DivScalar(factor int64) Box {
	return Box{
		Lo: Vec3{b.Lo[0] / factor, b.Lo[1] / factor, b.Lo[2] / factor},
		Hi: Vec3{b.Hi[0] / factor, b.Hi[1] / factor, b.Hi[2] / factor},
	}
}

// Contains reports whether b fully contains other.
func (b Box) Contains(other Box) bool {
	return other.Lo[0] >= b.Lo[0] && other.Lo[1] >= b.Lo[1] && other.Lo[2] >= b.Lo[2] &&
		other.Hi[0] <= b.Hi[0] && other.Hi[1] <= b.Hi[1] && other.Hi[2] <= b.Hi[2]
}

// AlignedTo reports whether both endpoints of b, after subtracting
// offset, land on a multiple of step on every axis.
func (b Box) AlignedTo(offset, step Vec3) bool {
	off := b.Translate(offset.Scale(-1))
	for i := 0; i < 3; i++ {
		if off.Lo[i]%step[i] != 0 || off.Hi[i]%step[i] != 0 {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("[%s, %s)", b.Lo, b.Hi)
}

// Equal reports exact equality of both corners.
func (a Box) Equal(b Box) bool {
	return a.Lo == b.Lo && a.Hi == b.Hi
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
