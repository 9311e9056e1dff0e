// SPDX-License-Identifier: Unlicense OR MIT

package glyph

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestQuantizeSubpixelBoundaryTable(t *testing.T) {
	cases := []struct {
		pos  float32
		want SubpixelBucket
	}{
		{0.0, Zero},
		{0.124, Zero},
		{0.125, Quarter},
		{0.374, Quarter},
		{0.375, Half},
		{0.624, Half},
		{0.625, ThreeQuarters},
		{0.874, ThreeQuarters},
		{0.875, Zero},
	}
	for _, c := range cases {
		if got := QuantizeSubpixel(c.pos); got != c.want {
			t.Errorf("QuantizeSubpixel(%v) = %v, want %v", c.pos, got, c.want)
		}
	}
}

func TestQuantizeSubpixelWrapsAcrossWholePixels(t *testing.T) {
	for _, pos := range []float32{0.2, 0.6, 0.9} {
		a := QuantizeSubpixel(pos)
		b := QuantizeSubpixel(pos + 1.0)
		if a != b {
			t.Errorf("quantize(%v)=%v != quantize(%v)=%v, want equal", pos, a, pos+1, b)
		}
	}
}

func TestFontTransformQuantizeIsIdempotent(t *testing.T) {
	xf := FontTransform{ScaleX: 1.0001, SkewX: 0.33333, SkewY: -0.1, ScaleY: 0.9999}
	once := xf.Quantize()
	twice := once.Quantize()
	if once != twice {
		t.Errorf("quantizing an already-quantized transform changed it: %v -> %v", once, twice)
	}
}

func TestKeyPackRoundTripsGlyphIndexAndBuckets(t *testing.T) {
	k := Key{GlyphIndex: 0x0ABCDEF1, SubpixelX: ThreeQuarters, SubpixelY: Half}
	packed := k.Pack()
	if got := (packed >> 4) & 0x0fffffff; got != k.GlyphIndex {
		t.Errorf("glyph index didn't round-trip: got %x want %x", got, k.GlyphIndex)
	}
	if got := SubpixelBucket((packed >> 2) & 3); got != k.SubpixelX {
		t.Errorf("subpixel X didn't round-trip: got %v want %v", got, k.SubpixelX)
	}
	if got := SubpixelBucket(packed & 3); got != k.SubpixelY {
		t.Errorf("subpixel Y didn't round-trip: got %v want %v", got, k.SubpixelY)
	}
}

// countingFace rasterizes a trivial 2x2 opaque bitmap and counts calls,
// for asserting dispatch behavior without a real font backend.
type countingFace struct {
	calls int32
}

func (f *countingFace) Rasterize(instance FontInstance, glyphIndex uint32) (Bitmap, error) {
	atomic.AddInt32(&f.calls, 1)
	return Bitmap{Pix: []byte{255, 255, 255, 255}, Stride: 2, W: 2, H: 2}, nil
}

func TestRequestDispatchesImmediatelyAtThreshold(t *testing.T) {
	face := &countingFace{}
	r := NewRasterizer(face, 4)
	instance := FontInstance{Font: 1}

	keys := make([]Key, immediateDispatchThreshold)
	for i := range keys {
		keys[i] = Key{GlyphIndex: uint32(i)}
	}
	r.Request(instance, keys)

	results, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != immediateDispatchThreshold {
		t.Errorf("expected %d results from the immediately-dispatched batch, got %d", immediateDispatchThreshold, len(results))
	}
}

func TestResolveRasterizesSmallPendingBatchesInline(t *testing.T) {
	face := &countingFace{}
	r := NewRasterizer(face, 4)
	instance := FontInstance{Font: 1}
	r.Request(instance, []Key{{GlyphIndex: 1}, {GlyphIndex: 2}})

	results, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestResolveSortsResultsByFontThenKey(t *testing.T) {
	face := &countingFace{}
	r := NewRasterizer(face, 4)
	r.Request(FontInstance{Font: 2}, []Key{{GlyphIndex: 9}})
	r.Request(FontInstance{Font: 1}, []Key{{GlyphIndex: 5}, {GlyphIndex: 2}})

	results, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.Instance.Font > cur.Instance.Font {
			t.Fatalf("results not sorted by font: %v before %v", prev.Instance.Font, cur.Instance.Font)
		}
		if prev.Instance.Font == cur.Instance.Font && prev.Key.Pack() > cur.Key.Pack() {
			t.Fatalf("results not sorted by key within font: %v before %v", prev.Key, cur.Key)
		}
	}
}

func TestDistributeAcrossThreadsHintPinsToInlinePath(t *testing.T) {
	face := &countingFace{}
	r := NewRasterizer(face, 4)
	r.SetDistributeAcrossThreads(func(FontInstance) bool { return false })

	instance := FontInstance{Font: 1}
	keys := make([]Key, workerDispatchThreshold)
	for i := range keys {
		keys[i] = Key{GlyphIndex: uint32(i)}
	}
	r.Request(instance, keys)

	results, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != workerDispatchThreshold {
		t.Errorf("expected %d results even when pinned off the pool, got %d", workerDispatchThreshold, len(results))
	}
}

func TestBoxDownsampleHalvesDimensions(t *testing.T) {
	bmp := Bitmap{
		Pix:    []byte{10, 20, 30, 40},
		Stride: 2,
		W:      2,
		H:      2,
	}
	out := boxDownsample(bmp)
	if out.W != 1 || out.H != 1 {
		t.Fatalf("expected a 1x1 result, got %dx%d", out.W, out.H)
	}
	if want := byte((10 + 20 + 30 + 40) / 4); out.Pix[0] != want {
		t.Errorf("expected averaged pixel %d, got %d", want, out.Pix[0])
	}
}

func TestDedicatedRasterizerProcessesJobsSequentially(t *testing.T) {
	face := &countingFace{}
	r := NewDedicatedRasterizer(face)
	defer r.Close()

	r.Request(FontInstance{Font: 1}, []Key{{GlyphIndex: 1}})
	results, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result from the dedicated path, got %d", len(results))
	}
}
