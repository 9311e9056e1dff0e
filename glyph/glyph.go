// SPDX-License-Identifier: Unlicense OR MIT

// Package glyph implements glyph-key quantization, font-instance
// transforms, and the batching worker-pool rasterizer of §4.4.
package glyph

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

// SubpixelBucket is one of the four quantized fractional positions per
// axis used as part of a glyph's cache key (§3, §8 boundary table).
type SubpixelBucket uint8

const (
	Zero SubpixelBucket = iota
	Quarter
	Half
	ThreeQuarters
)

// QuantizeSubpixel buckets a fractional pixel position into one of four
// subpixel buckets, matching the exact boundaries in §8: the fractional
// part is multiplied by 8 and floored, then folded into quadrants, with
// 0.875 and above wrapping back to Zero (since it rounds to the next
// whole pixel).
func QuantizeSubpixel(pos float32) SubpixelBucket {
	frac := pos - float32(int(pos))
	if frac < 0 {
		frac += 1
	}
	bucket := int(frac * 8)
	switch {
	case bucket == 0:
		return Zero
	case bucket < 3:
		return Quarter
	case bucket < 5:
		return Half
	case bucket < 7:
		return ThreeQuarters
	default:
		return Zero
	}
}

// Key is a glyph's cache key: 28 bits of glyph index plus 2+2 bits of
// subpixel bucket per axis (§3).
type Key struct {
	GlyphIndex uint32 // must fit in 28 bits
	SubpixelX  SubpixelBucket
	SubpixelY  SubpixelBucket
}

// Pack encodes k into a single uint32, matching the bit layout named in
// §3 (28-bit index, 2+2-bit subpixel buckets).
func (k Key) Pack() uint32 {
	return (k.GlyphIndex&0x0fffffff)<<4 | uint32(k.SubpixelX&3)<<2 | uint32(k.SubpixelY&3)
}

// FontTransform is the font-instance transform applied before
// rasterization (scale/skew, used for synthetic oblique and non-axis-
// aligned text). Quantize folds it to a canonical representative so
// that re-quantizing an already-quantized transform is the identity
// (§8 round-trip property).
type FontTransform struct {
	ScaleX, SkewX, SkewY, ScaleY float32
}

// Quantize rounds t's components to a fixed-point grid fine enough for
// rasterization but coarse enough to coalesce near-identical instances
// into the same cache key.
func (t FontTransform) Quantize() FontTransform {
	const precision = 1 << 8
	q := func(v float32) float32 {
		return float32(math.Floor(float64(v*precision)+0.5)) / precision
	}
	return FontTransform{q(t.ScaleX), q(t.SkewX), q(t.SkewY), q(t.ScaleY)}
}

// FontInstance names a font template plus the size/transform/rendering
// mode it's instantiated with (§3/§4.4).
type FontInstance struct {
	Font      uint32
	Size      fixed.Int26_6
	Transform FontTransform
	Synthetic SyntheticStyle
}

// SyntheticStyle requests a synthesized style variant absent from the
// font itself.
type SyntheticStyle struct {
	Bold   bool
	Oblique bool
}

// Bitmap is a rasterized glyph: an alpha or RGBA coverage buffer plus
// its placement relative to the glyph origin.
type Bitmap struct {
	Pix    []byte
	Stride int
	W, H   int
	Left, Top int
	ColorGlyph bool
}

// Face rasterizes one glyph of one font instance. Production code wires
// github.com/go-text/typesetting's font.Face behind this interface (the
// teacher also depends on go-text/typesetting directly); keeping
// rasterization behind a narrow interface lets package glyph own
// batching/threading independent of the shaping library's exact API.
type Face interface {
	Rasterize(instance FontInstance, glyphIndex uint32) (Bitmap, error)
}

// job is one pending rasterization request.
type job struct {
	instance FontInstance
	keys     []Key
}

// Result is one rasterized glyph, tagged with its originating instance
// and key for sorting and GPU-cache placement.
type Result struct {
	Instance FontInstance
	Key      Key
	Bitmap   Bitmap
	Err      error
}

// immediateDispatchThreshold: a font instance's batch is sent to the
// worker pool as soon as it reaches this many pending keys, rather than
// waiting for Resolve (§4.4).
const immediateDispatchThreshold = 32

// workerDispatchThreshold: at Resolve, a font instance's remaining
// batch is dispatched to the worker pool if it has at least this many
// pending keys; smaller batches are rasterized inline to avoid
// dispatch overhead exceeding the work itself (§4.4).
const workerDispatchThreshold = 8

// Rasterizer batches glyph requests per font instance and rasterizes
// them either inline, across a work-stealing worker pool
// (golang.org/x/sync/errgroup, mirroring the teacher's fan-out pattern
// and the pack's phanxgames-willow use of errgroup), or via a single
// dedicated OS thread that owns one font context (§5 "optional
// dedicated glyph-raster thread").
type Rasterizer struct {
	face    Face
	workers int

	mu      sync.Mutex
	batches map[FontInstance][]Key
	results []Result
	wg      sync.WaitGroup

	dedicated     bool
	dedicatedJobs chan job
	dedicatedDone chan struct{}

	distributeHint func(FontInstance) bool
}

// NewRasterizer returns a worker-pool rasterizer with the given worker
// count (at least 1).
func NewRasterizer(face Face, workers int) *Rasterizer {
	if workers < 1 {
		workers = 1
	}
	return &Rasterizer{face: face, workers: workers, batches: map[FontInstance][]Key{}}
}

// NewDedicatedRasterizer returns a rasterizer that processes all jobs on
// a single dedicated goroutine locked to its OS thread, for font backends that keep per-thread
// state and cannot tolerate a work-stealing pool (§5).
func NewDedicatedRasterizer(face Face) *Rasterizer {
	r := &Rasterizer{face: face, workers: 1, batches: map[FontInstance][]Key{}, dedicated: true}
	r.dedicatedJobs = make(chan job, 64)
	r.dedicatedDone = make(chan struct{})
	go r.dedicatedLoop()
	return r
}

// SetDistributeAcrossThreads installs the distribute_across_threads
// hint (§9 "Glyph rasterization thread affinity"): when it returns
// false for a font instance, Resolve rasterizes that instance's
// remaining batch inline instead of handing it to the worker pool.
// Batches that Request dispatches early, on reaching
// immediateDispatchThreshold, do not consult the hint.
func (r *Rasterizer) SetDistributeAcrossThreads(hint func(FontInstance) bool) {
	r.distributeHint = hint
}

// Request queues glyphs for rasterization, dispatching immediately if
// the font instance's batch reaches immediateDispatchThreshold (§4.4).
func (r *Rasterizer) Request(instance FontInstance, keys []Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance.Transform = instance.Transform.Quantize()
	batch := append(r.batches[instance], keys...)
	if len(batch) >= immediateDispatchThreshold {
		r.dispatchLocked(instance, batch)
		delete(r.batches, instance)
		return
	}
	r.batches[instance] = batch
}

// dispatchLocked sends a batch off for rasterization; must hold r.mu.
// The rasterizer's WaitGroup tracks it so Resolve can block until it
// finishes, whichever path it takes.
func (r *Rasterizer) dispatchLocked(instance FontInstance, keys []Key) {
	r.wg.Add(1)
	if r.dedicated {
		r.dedicatedJobs <- job{instance: instance, keys: keys}
		return
	}
	go r.rasterizeBatch(instance, keys)
}

// Resolve flushes all remaining batches, dispatching to the worker pool
// those at or above workerDispatchThreshold and rasterizing the rest
// inline (a dedicated rasterizer instead sends every remaining batch to
// its dedicated goroutine), then blocks until every outstanding job
// (pool or dedicated) completes and returns the sorted results (§4.4, §5
// "block_until_all_resources_added").
func (r *Rasterizer) Resolve(ctx context.Context) ([]Result, error) {
	r.mu.Lock()
	pending := r.batches
	r.batches = map[FontInstance][]Key{}
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	var mu sync.Mutex
	var results []Result

	for instance, keys := range pending {
		instance, keys := instance, keys
		if r.dedicated {
			r.wg.Add(1)
			r.dedicatedJobs <- job{instance: instance, keys: keys}
			continue
		}
		pinned := r.distributeHint != nil && !r.distributeHint(instance)
		if len(keys) >= workerDispatchThreshold && !pinned {
			g.Go(func() error {
				res := r.rasterize(instance, keys)
				mu.Lock()
				results = append(results, res...)
				mu.Unlock()
				return nil
			})
		} else {
			results = append(results, r.rasterize(instance, keys)...)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.wg.Wait()
	r.mu.Lock()
	results = append(results, r.results...)
	r.results = nil
	r.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Instance.Font != results[j].Instance.Font {
			return results[i].Instance.Font < results[j].Instance.Font
		}
		return results[i].Key.Pack() < results[j].Key.Pack()
	})
	return results, nil
}

func (r *Rasterizer) rasterizeBatch(instance FontInstance, keys []Key) {
	defer r.wg.Done()
	res := r.rasterize(instance, keys)
	r.mu.Lock()
	r.results = append(r.results, res...)
	r.mu.Unlock()
}

func (r *Rasterizer) rasterize(instance FontInstance, keys []Key) []Result {
	out := make([]Result, 0, len(keys))
	for _, k := range keys {
		bmp, err := r.face.Rasterize(instance, k.GlyphIndex)
		if err == nil {
			bmp = preprocess(bmp, instance)
		}
		out = append(out, Result{Instance: instance, Key: k, Bitmap: bmp, Err: err})
	}
	return out
}

func (r *Rasterizer) dedicatedLoop() {
	runtime.LockOSThread()
	for j := range r.dedicatedJobs {
		res := r.rasterize(j.instance, j.keys)
		r.mu.Lock()
		r.results = append(r.results, res...)
		r.mu.Unlock()
		r.wg.Done()
	}
	close(r.dedicatedDone)
}

// Close shuts down a dedicated rasterizer's goroutine. No-op for a
// worker-pool rasterizer.
func (r *Rasterizer) Close() {
	if !r.dedicated {
		return
	}
	close(r.dedicatedJobs)
	<-r.dedicatedDone
}

// preprocess applies post-rasterization transforms named in §4.4:
// repeated 2x2 box-filter downsampling for bitmap glyphs that will be
// substantially downscaled, and a synthetic-bold offset-blend
// multi-strike for instances requesting it.
func preprocess(bmp Bitmap, instance FontInstance) Bitmap {
	const downscaleThreshold = 0.5
	effectiveScale := (instance.Transform.ScaleX + instance.Transform.ScaleY) / 2
	if effectiveScale != 0 && effectiveScale <= downscaleThreshold {
		bmp = boxDownsample(bmp)
	}
	if instance.Synthetic.Bold {
		bmp = syntheticBold(bmp)
	}
	return bmp
}

// boxDownsample halves bmp's dimensions with a 2x2 box filter.
func boxDownsample(bmp Bitmap) Bitmap {
	if bmp.W < 2 || bmp.H < 2 {
		return bmp
	}
	w, h := bmp.W/2, bmp.H/2
	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := x*2, y*2
			sum := int(bmp.Pix[sy*bmp.Stride+sx]) + int(bmp.Pix[sy*bmp.Stride+sx+1]) +
				int(bmp.Pix[(sy+1)*bmp.Stride+sx]) + int(bmp.Pix[(sy+1)*bmp.Stride+sx+1])
			out[y*w+x] = byte(sum / 4)
		}
	}
	return Bitmap{Pix: out, Stride: w, W: w, H: h, Left: bmp.Left / 2, Top: bmp.Top / 2}
}

// syntheticBold blends bmp with a one-pixel offset copy of itself, a
// cheap multi-strike approximation of true bold hinting.
func syntheticBold(bmp Bitmap) Bitmap {
	out := make([]byte, len(bmp.Pix))
	copy(out, bmp.Pix)
	for y := 0; y < bmp.H; y++ {
		for x := 1; x < bmp.W; x++ {
			i := y*bmp.Stride + x
			prev := y*bmp.Stride + x - 1
			v := int(out[i]) + int(bmp.Pix[prev])
			if v > 255 {
				v = 255
			}
			out[i] = byte(v)
		}
	}
	bmp.Pix = out
	return bmp
}
