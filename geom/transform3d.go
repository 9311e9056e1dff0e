// SPDX-License-Identifier: Unlicense OR MIT

package geom

// Transform3D is a 4x4 homogeneous transform used for reference-frame
// perspective and rotation. Spatial nodes compose these to map between
// local and world space; clip-chain instantiation projects rectangles
// through them.
type Transform3D struct {
	m [4][4]float32
}

// Identity3D returns the identity transform.
func Identity3D() Transform3D {
	var t Transform3D
	for i := range t.m {
		t.m[i][i] = 1
	}
	return t
}

// FromAffine2D lifts a 2D affine transform into 3D space (z is unaffected).
func FromAffine2D(a Affine2D) Transform3D {
	a0, b0, c0, d0, e0, f0 := a.Elems()
	t := Identity3D()
	t.m[0][0], t.m[0][1] = a0, b0
	t.m[1][0], t.m[1][1] = c0, d0
	t.m[3][0], t.m[3][1] = e0, f0
	return t
}

// Translate3D returns a translation by (x, y, z).
func Translate3D(x, y, z float32) Transform3D {
	t := Identity3D()
	t.m[3][0], t.m[3][1], t.m[3][2] = x, y, z
	return t
}

// PreMul returns the transform equivalent to applying t first, then this.
func (t Transform3D) PreMul(o Transform3D) Transform3D {
	var r Transform3D
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += o.m[i][k] * t.m[k][j]
			}
			r.m[i][j] = sum
		}
	}
	return r
}

// As2D returns the equivalent Affine2D when t has no z or perspective
// component (the common case for reference frames in a 2D compositor),
// and false otherwise.
func (t Transform3D) As2D() (Affine2D, bool) {
	const eps = 1e-6
	flat := func(v, want float32) bool {
		d := v - want
		return d > -eps && d < eps
	}
	if !flat(t.m[0][2], 0) || !flat(t.m[1][2], 0) || !flat(t.m[2][0], 0) || !flat(t.m[2][1], 0) ||
		!flat(t.m[2][2], 1) || !flat(t.m[3][2], 0) ||
		!flat(t.m[0][3], 0) || !flat(t.m[1][3], 0) || !flat(t.m[2][3], 0) || !flat(t.m[3][3], 1) {
		return Affine2D{}, false
	}
	return NewAffine2D(t.m[0][0], t.m[0][1], t.m[1][0], t.m[1][1], t.m[3][0], t.m[3][1]), true
}

// PreservesAxisAlignment reports whether t maps axis-aligned rectangles to
// axis-aligned rectangles. True 3D/perspective transforms never do, per
// §9's design note on coordinate-system ids.
func (t Transform3D) PreservesAxisAlignment() bool {
	a, ok := t.As2D()
	return ok && a.PreservesAxisAlignment()
}

// InverseFootprint returns the bound of the pre-image of r under t when
// t is a 2D affine transform, and r itself, unchanged, when t carries a
// true perspective component (no pre-image is computed in that case),
// mirroring webrender's inverse_rect_footprint fallback.
func (t Transform3D) InverseFootprint(r Rect) Rect {
	if a, ok := t.As2D(); ok {
		return a.Invert().Bounds(r)
	}
	return r
}

// Rows returns t's matrix in row-major form, for callers (capture
// serialization) that need to store or reconstruct a Transform3D
// verbatim.
func (t Transform3D) Rows() [4][4]float32 { return t.m }

// Transform3DFromRows builds a Transform3D from a row-major matrix, the
// inverse of Rows.
func Transform3DFromRows(rows [4][4]float32) Transform3D { return Transform3D{m: rows} }

// HomogeneousPoint is a point in clip (w-divided) space.
type HomogeneousPoint struct {
	X, Y, Z, W float32
}

// TransformPoint maps a 2D point (z=0) through t, returning the homogeneous
// result without dividing by w, so callers can detect w<=0 before
// projecting (see ProjectRect).
func (t Transform3D) TransformPoint(p Point) HomogeneousPoint {
	x, y, z := p.X, p.Y, float32(0)
	return HomogeneousPoint{
		X: x*t.m[0][0] + y*t.m[1][0] + z*t.m[2][0] + t.m[3][0],
		Y: x*t.m[0][1] + y*t.m[1][1] + z*t.m[2][1] + t.m[3][1],
		Z: x*t.m[0][2] + y*t.m[1][2] + z*t.m[2][2] + t.m[3][2],
		W: x*t.m[0][3] + y*t.m[1][3] + z*t.m[2][3] + t.m[3][3],
	}
}

// wEpsilon clamps a non-positive w during polygon clipping to avoid
// infinities when a rectangle straddles the eye plane, mirroring
// webrender's plane-split epsilon.
const wEpsilon = 1e-6

// ProjectRect maps the four corners of r through t and returns the
// axis-aligned bound of their 2D projections. It reports false if any
// corner's homogeneous w is non-positive: the rect crosses the w=0 plane
// and the caller (clip-chain instantiation, §4.6) must fall back to the
// 3D polygon clip, or — for the common case where the whole rect is
// behind the eye — simply cull the primitive.
func ProjectRect(t Transform3D, r Rect) (Rect, bool) {
	corners := [4]Point{
		{r.Min.X, r.Min.Y}, {r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y}, {r.Min.X, r.Max.Y},
	}
	var out Rect
	for i, c := range corners {
		h := t.TransformPoint(c)
		if h.W <= 0 {
			return Rect{}, false
		}
		inv := 1 / h.W
		p := Point{h.X * inv, h.Y * inv}
		if i == 0 {
			out = Rect{p, p}
		} else {
			if p.X < out.Min.X {
				out.Min.X = p.X
			}
			if p.Y < out.Min.Y {
				out.Min.Y = p.Y
			}
			if p.X > out.Max.X {
				out.Max.X = p.X
			}
			if p.Y > out.Max.Y {
				out.Max.Y = p.Y
			}
		}
	}
	return out, true
}

// ProjectRectClamped is like ProjectRect but never fails: corners with
// w<=0 are clamped to wEpsilon before dividing, producing a (very large
// but finite) bound instead of infinities. Nothing in this module calls
// it; clip-chain instantiation culls a primitive when ProjectRect fails.
func ProjectRectClamped(t Transform3D, r Rect) Rect {
	corners := [4]Point{
		{r.Min.X, r.Min.Y}, {r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y}, {r.Min.X, r.Max.Y},
	}
	var out Rect
	for i, c := range corners {
		h := t.TransformPoint(c)
		w := h.W
		if w < wEpsilon {
			w = wEpsilon
		}
		inv := 1 / w
		p := Point{h.X * inv, h.Y * inv}
		if i == 0 {
			out = Rect{p, p}
		} else {
			out = out.Union(Rect{p, p})
		}
	}
	return out
}
