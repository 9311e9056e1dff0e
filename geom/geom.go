// SPDX-License-Identifier: Unlicense OR MIT

// Package geom is a float32 implementation of 2D points, rectangles and
// affine/projective transforms used throughout the compositor.
//
// The coordinate space has the origin in the top left corner with the
// axes extending right and down, matching gioui.org/f32.
package geom

import "math"

// Point is a two dimensional point.
type Point struct {
	X, Y float32
}

// Pt is a shorthand for Point{X: x, Y: y}.
func Pt(x, y float32) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Mul(s float32) Point { return Point{p.X * s, p.Y * s} }

// Rect contains the points (X, Y) where Min.X <= X < Max.X, Min.Y <= Y < Max.Y.
type Rect struct {
	Min, Max Point
}

// Rectangle builds a Rect from its four edges.
func Rectangle(minX, minY, maxX, maxY float32) Rect {
	return Rect{Point{minX, minY}, Point{maxX, maxY}}
}

func (r Rect) Size() Point { return Point{r.Dx(), r.Dy()} }
func (r Rect) Dx() float32 { return r.Max.X - r.Min.X }
func (r Rect) Dy() float32 { return r.Max.Y - r.Min.Y }

func (r Rect) Intersect(s Rect) Rect {
	if r.Min.X < s.Min.X {
		r.Min.X = s.Min.X
	}
	if r.Min.Y < s.Min.Y {
		r.Min.Y = s.Min.Y
	}
	if r.Max.X > s.Max.X {
		r.Max.X = s.Max.X
	}
	if r.Max.Y > s.Max.Y {
		r.Max.Y = s.Max.Y
	}
	return r
}

func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	if r.Min.X > s.Min.X {
		r.Min.X = s.Min.X
	}
	if r.Min.Y > s.Min.Y {
		r.Min.Y = s.Min.Y
	}
	if r.Max.X < s.Max.X {
		r.Max.X = s.Max.X
	}
	if r.Max.Y < s.Max.Y {
		r.Max.Y = s.Max.Y
	}
	return r
}

func (r Rect) Empty() bool { return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y }

func (r Rect) Add(p Point) Rect { return Rect{r.Min.Add(p), r.Max.Add(p)} }
func (r Rect) Sub(p Point) Rect { return Rect{r.Min.Sub(p), r.Max.Sub(p)} }

// Contains reports whether s is entirely contained within r.
func (r Rect) Contains(s Rect) bool {
	if s.Empty() {
		return true
	}
	return r.Min.X <= s.Min.X && r.Min.Y <= s.Min.Y && r.Max.X >= s.Max.X && r.Max.Y >= s.Max.Y
}

// ContainsPt reports whether p lies within r.
func (r Rect) ContainsPt(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// MaxRect returns a rectangle large enough to behave as the identity of
// Intersect, mirroring webrender's LayoutRect::max_rect().
func MaxRect() Rect {
	const inf = 1e18
	return Rectangle(-inf, -inf, inf, inf)
}

// Affine2D is a 2D affine transformation mapping (x, y) to
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
type Affine2D struct {
	a, b, c, d, e, f float32
}

// NewAffine2D returns the transform mapping (x, y) to
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
func NewAffine2D(a, b, c, d, e, f float32) Affine2D {
	return Affine2D{a, b, c, d, e, f}
}

func Identity() Affine2D { return Affine2D{a: 1, d: 1} }

func (a Affine2D) Elems() (a0, b0, c0, d0, e0, f0 float32) {
	if a == (Affine2D{}) {
		return 1, 0, 0, 1, 0, 0
	}
	return a.a, a.b, a.c, a.d, a.e, a.f
}

// Offset returns A translated by o.
func (a Affine2D) Offset(o Point) Affine2D {
	a0, b0, c0, d0, e0, f0 := a.Elems()
	return Affine2D{a0, b0, c0, d0, e0 + o.X, f0 + o.Y}
}

// Scale returns A scaled about origin by s.
func (a Affine2D) Scale(origin, s Point) Affine2D {
	if origin == (Point{}) {
		a0, b0, c0, d0, e0, f0 := a.Elems()
		return Affine2D{a0 * s.X, b0 * s.Y, c0 * s.X, d0 * s.Y, e0 * s.X, f0 * s.Y}
	}
	return a.Offset(origin.Mul(-1)).Scale(Point{}, s).Offset(origin)
}

// Rotate returns A rotated about origin by angle, in radians clockwise.
func (a Affine2D) Rotate(origin Point, radians float32) Affine2D {
	if origin == (Point{}) {
		sin, cos := float32(math.Sin(float64(radians))), float32(math.Cos(float64(radians)))
		a0, b0, c0, d0, e0, f0 := a.Elems()
		return Affine2D{
			a0*cos - b0*sin, a0*sin + b0*cos,
			c0*cos - d0*sin, c0*sin + d0*cos,
			e0*cos - f0*sin, e0*sin + f0*cos,
		}
	}
	return a.Offset(origin.Mul(-1)).Rotate(Point{}, radians).Offset(origin)
}

// Shear returns A sheared about origin.
func (a Affine2D) Shear(origin Point, radiansX, radiansY float32) Affine2D {
	if origin == (Point{}) {
		tx, ty := float32(math.Tan(float64(radiansX))), float32(math.Tan(float64(radiansY)))
		a0, b0, c0, d0, e0, f0 := a.Elems()
		return Affine2D{a0 + b0*ty, a0*tx + b0, c0 + d0*ty, c0*tx + d0, e0 + f0*ty, e0*tx + f0}
	}
	return a.Offset(origin.Mul(-1)).Shear(Point{}, radiansX, radiansY).Offset(origin)
}

// Mul returns the transform that is equivalent to applying first a, then b.
func (a Affine2D) Mul(b Affine2D) Affine2D {
	a0, a1, a2, a3, a4, a5 := a.Elems()
	b0, b1, b2, b3, b4, b5 := b.Elems()
	return Affine2D{
		a0*b0 + a1*b2, a0*b1 + a1*b3,
		a2*b0 + a3*b2, a2*b1 + a3*b3,
		a4*b0 + a5*b2 + b4, a4*b1 + a5*b3 + b5,
	}
}

// Invert returns the inverse transform of A.
func (a Affine2D) Invert() Affine2D {
	a0, b0, c0, d0, e0, f0 := a.Elems()
	det := a0*d0 - b0*c0
	if det == 0 {
		return Identity()
	}
	ia, ib := d0/det, -b0/det
	ic, id := -c0/det, a0/det
	ie := -(e0*ia + f0*ic)
	if2 := -(e0*ib + f0*id)
	return Affine2D{ia, ib, ic, id, ie, if2}
}

// Transform applies A to p.
func (a Affine2D) Transform(p Point) Point {
	a0, b0, c0, d0, e0, f0 := a.Elems()
	return Point{a0*p.X + c0*p.Y + e0, b0*p.X + d0*p.Y + f0}
}

// PreservesAxisAlignment reports whether A maps axis-aligned rectangles to
// axis-aligned rectangles, i.e. it contains no rotation or shear component.
func (a Affine2D) PreservesAxisAlignment() bool {
	a0, b0, c0, d0, _, _ := a.Elems()
	const eps = 1e-6
	return (abs(b0) < eps && abs(c0) < eps) || (abs(a0) < eps && abs(d0) < eps)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// TransformRect maps a rect through an axis-aligning affine transform. The
// caller must have established PreservesAxisAlignment; behavior for a
// rotated/sheared transform is undefined (use Bounds instead).
func (a Affine2D) TransformRect(r Rect) Rect {
	p0 := a.Transform(r.Min)
	p1 := a.Transform(r.Max)
	return Rectangle(min32(p0.X, p1.X), min32(p0.Y, p1.Y), max32(p0.X, p1.X), max32(p0.Y, p1.Y))
}

// Bounds returns the axis-aligned bounding box of r's four corners mapped
// through A, valid for any affine transform (rotation and shear included).
func (a Affine2D) Bounds(r Rect) Rect {
	corners := [4]Point{
		{r.Min.X, r.Min.Y}, {r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y}, {r.Min.X, r.Max.Y},
	}
	p0 := a.Transform(corners[0])
	out := Rect{p0, p0}
	for _, c := range corners[1:] {
		p := a.Transform(c)
		out.Min.X = min32(out.Min.X, p.X)
		out.Min.Y = min32(out.Min.Y, p.Y)
		out.Max.X = max32(out.Max.X, p.X)
		out.Max.Y = max32(out.Max.Y, p.Y)
	}
	return out
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
