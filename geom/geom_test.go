// SPDX-License-Identifier: Unlicense OR MIT

package geom

import (
	"math"
	"testing"
)

func eq(p1, p2 Point) bool {
	tol := float32(1e-5)
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	return float32(math.Abs(math.Sqrt(float64(dx*dx+dy*dy)))) < tol
}

func TestTransformOffset(t *testing.T) {
	p := Point{X: 1, Y: 2}
	o := Point{X: 2, Y: -3}

	r := Affine2D{}.Offset(o).Transform(p)
	if !eq(r, Pt(3, -1)) {
		t.Errorf("offset transformation mismatch: have %v, want {3 -1}", r)
	}
	i := Affine2D{}.Offset(o).Invert().Transform(r)
	if !eq(i, p) {
		t.Errorf("offset inverse mismatch: have %v, want %v", i, p)
	}
}

func TestTransform3DRowsRoundTrips(t *testing.T) {
	want := Translate3D(4, -5, 2).PreMul(FromAffine2D(NewAffine2D(0.5, 0.1, -0.1, 0.5, 3, 7)))
	got := Transform3DFromRows(want.Rows())
	if got != want {
		t.Errorf("Rows/Transform3DFromRows round-trip mismatch: got %v want %v", got, want)
	}
}

func TestTransformRotateAndInvert(t *testing.T) {
	p := Point{X: 1, Y: 0}
	a := float32(math.Pi / 2)

	r := Affine2D{}.Rotate(Point{}, a).Transform(p)
	if !eq(r, Pt(0, 1)) {
		t.Errorf("rotate mismatch: have %v, want {0 1}", r)
	}
	i := Affine2D{}.Rotate(Point{}, a).Invert().Transform(r)
	if !eq(i, p) {
		t.Errorf("rotate inverse mismatch: have %v, want %v", i, p)
	}
}

func TestPreservesAxisAlignment(t *testing.T) {
	id := Identity()
	if !id.PreservesAxisAlignment() {
		t.Error("identity must preserve axis alignment")
	}
	scaled := Affine2D{}.Scale(Point{}, Pt(2, 3))
	if !scaled.PreservesAxisAlignment() {
		t.Error("pure scale must preserve axis alignment")
	}
	rotated := Affine2D{}.Rotate(Point{}, math.Pi/6)
	if rotated.PreservesAxisAlignment() {
		t.Error("30 degree rotation must not preserve axis alignment")
	}
	quarterTurn := Affine2D{}.Rotate(Point{}, math.Pi/2)
	if !quarterTurn.PreservesAxisAlignment() {
		t.Error("90 degree rotation swaps axes but stays axis-aligned")
	}
}

func TestRectIntersectUnion(t *testing.T) {
	a := Rectangle(0, 0, 10, 10)
	b := Rectangle(5, 5, 20, 20)
	got := a.Intersect(b)
	want := Rectangle(5, 5, 10, 10)
	if got != want {
		t.Errorf("intersect: have %v, want %v", got, want)
	}
	u := a.Union(b)
	if u != Rectangle(0, 0, 20, 20) {
		t.Errorf("union: have %v, want {0 0 20 20}", u)
	}
}

func TestRectContains(t *testing.T) {
	outer := Rectangle(0, 0, 100, 100)
	inner := Rectangle(10, 10, 20, 20)
	if !outer.Contains(inner) {
		t.Error("outer should contain inner")
	}
	if inner.Contains(outer) {
		t.Error("inner should not contain outer")
	}
}

func TestProjectRectBehindEye(t *testing.T) {
	// A perspective transform whose w becomes non-positive for points
	// beyond the vanishing point; confirm ProjectRect reports failure
	// rather than returning an infinite/garbage rect.
	t3 := Identity3D()
	t3.m[0][3] = -1.0 / 500 // perspective divide on x
	t3.m[3][3] = 1
	r := Rectangle(-1e6, -1e6, 1e6, 1e6)
	if _, ok := ProjectRect(t3, r); ok {
		t.Error("expected ProjectRect to fail for a rect crossing w=0")
	}
}

func TestProjectRectAxisAligned(t *testing.T) {
	t3 := FromAffine2D(Affine2D{}.Offset(Pt(10, 20)))
	r := Rectangle(0, 0, 100, 50)
	got, ok := ProjectRect(t3, r)
	if !ok {
		t.Fatal("expected projection to succeed")
	}
	if want := Rectangle(10, 20, 110, 70); got != want {
		t.Errorf("have %v, want %v", got, want)
	}
}
