package box

import "testing"

func TestIntersectDisjointIsEmpty(t *testing.T) {
	a := New(Vec3{0, 0, 0}, Vec3{4, 4, 4})
	b := New(Vec3{10, 10, 10}, Vec3{14, 14, 14})
	got := Intersect(a, b)
	if !got.Empty() {
		t.Fatalf("expected empty intersection, got %v", got)
	}
}

func TestIntersectOverlap(t *testing.T) {
	a := New(Vec3{0, 0, 0}, Vec3{4, 4, 4})
	b := New(Vec3{2, 2, 2}, Vec3{6, 6, 6})
	got := Intersect(a, b)
	want := New(Vec3{2, 2, 2}, Vec3{4, 4, 4})
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestShapeAndVolume(t *testing.T) {
	b := New(Vec3{1, 2, 3}, Vec3{5, 6, 10})
	if got := b.Shape(); got != (Vec3{4, 4, 7}) {
		t.Fatalf("shape = %v", got)
	}
	if got := b.Volume(); got != 4*4*7 {
		t.Fatalf("volume = %d", got)
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	b := New(Vec3{1, 2, 3}, Vec3{5, 6, 7})
	delta := Vec3{10, -3, 100}
	got := b.Translate(delta).Translate(delta.Scale(-1))
	if !got.Equal(b) {
		t.Fatalf("translate round trip failed: %v != %v", got, b)
	}
}

func TestAlignedTo(t *testing.T) {
	b := New(Vec3{0, 0, 0}, Vec3{8, 8, 8})
	if !b.AlignedTo(Vec3{0, 0, 0}, Vec3{4, 4, 4}) {
		t.Fatalf("expected aligned")
	}
	b2 := New(Vec3{0, 0, 0}, Vec3{9, 8, 8})
	if b2.AlignedTo(Vec3{0, 0, 0}, Vec3{4, 4, 4}) {
		t.Fatalf("expected not aligned")
	}
}

func TestContains(t *testing.T) {
	outer := New(Vec3{0, 0, 0}, Vec3{10, 10, 10})
	inner := New(Vec3{2, 2, 2}, Vec3{5, 5, 5})
	if !outer.Contains(inner) {
		t.Fatalf("expected containment")
	}
	if outer.Contains(New(Vec3{-1, 0, 0}, Vec3{5, 5, 5})) {
		t.Fatalf("expected non-containment")
	}
}

func TestDivScalar(t *testing.T) {
	b := New(Vec3{0, 0, 0}, Vec3{8, 16, 24})
	got := b.DivScalar(4)
	want := New(Vec3{0, 0, 0}, Vec3{2, 4, 6})
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFloorDivNegative(t *testing.T) {
	a := Vec3{-1, -5, 7}
	b := Vec3{4, 4, 4}
	got := a.Div(b)
	want := Vec3{-1, -2, 1}
	if got != want {
		t.Fatalf("floor div got %v want %v", got, want)
	}
}
