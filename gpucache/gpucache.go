// SPDX-License-Identifier: Unlicense OR MIT

// Package gpucache implements the GPU cache (§4.1): a fixed-width,
// growing-height texture of 4xf32 texel blocks that supplies per-primitive
// constants to shaders. Callers hold opaque Handles across frames; Cache
// decides whether a handle's data needs to be (re)written this frame.
package gpucache

import "math"

// blockWidth is the fixed texel width of the cache texture; rows grow
// downward as more blocks are required.
const blockWidth = 1024

// Address is a 2D texel address packed into a 32-bit id, valid for the
// current frame only (rows may be reused across frames as handles
// expire).
type Address uint32

// NewAddress packs (x, y) texel coordinates into an Address.
func NewAddress(x, y int) Address {
	return Address(uint32(x) | uint32(y)<<16)
}

func (a Address) X() int { return int(uint32(a) & 0xFFFF) }
func (a Address) Y() int { return int(uint32(a) >> 16) }

// Block is one 16-byte texel (4 x float32).
type Block [4]float32

// Handle is an opaque, caller-held reference into the cache. The zero
// value denotes a handle that has never been requested; request(h)
// allocates storage for it on first use.
type Handle struct {
	loc         location
	lastBumped  uint64 // frame id this handle was last confirmed live
	initialized bool
}

// Valid reports whether the handle currently addresses live storage.
func (h *Handle) Valid() bool { return h.initialized }

type location struct {
	row   int
	start int // block offset within the row
	count int
}

// row tracks which blocks of one texel row are in use; Evict clears the
// used flags of a handle's blocks so alloc can hand them out again.
type row struct {
	blocks []Block // not populated; pushed block data lives in Cache.pending
	used   []bool
}

// Cache is the addressable GPU texel store. It is not safe for concurrent
// use; the render backend (§5) owns it on its single thread.
type Cache struct {
	rows      []row
	frameID   uint64
	pending   []pendingUpdate
	freeRows  []int // not read: alloc scans every row in order
}

type pendingUpdate struct {
	addr   Address
	blocks []Block
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// BeginFrame advances the frame counter. Call once before building a new
// frame's primitives.
func (c *Cache) BeginFrame() {
	c.frameID++
	c.pending = c.pending[:0]
}

// Writer lets the caller push exactly the number of blocks declared at
// request() time.
type Writer struct {
	cache *Cache
	addr  Address
	want  int
	n     int
}

// Push appends one block's worth of data. Calling it more than the
// declared block count panics, matching the invariant in spec.md §8 that
// every request() writer call writes exactly its declared block count.
func (w *Writer) Push(v [4]float32) {
	if w.n >= w.want {
		panic("gpucache: writer pushed more blocks than requested")
	}
	w.n++
	w.cache.pending = append(w.cache.pending, pendingUpdate{})
	// The address of block k within a multi-block item is the base
	// address offset by k columns, wrapping is not permitted: callers
	// must size requests so they fit within blockWidth.
	addr := Address(uint32(w.addr) + uint32(w.n-1))
	w.cache.pending[len(w.cache.pending)-1] = pendingUpdate{addr: addr, blocks: []Block{Block(v)}}
}

// Request reports whether handle needs fresh data this frame. If the
// handle is stale (newly created or evicted), it allocates storage for
// blockCount contiguous blocks and returns a Writer of exactly that
// width; the caller must push exactly blockCount blocks. If the handle
// is still valid, Request returns (nil, false) and the caller must skip
// writing — the previously-written data and address remain valid for
// this frame.
func (c *Cache) Request(h *Handle, blockCount int) (*Writer, bool) {
	if h.initialized {
		h.lastBumped = c.frameID
		return nil, false
	}
	row, start := c.alloc(blockCount)
	h.loc = location{row: row, start: start, count: blockCount}
	h.initialized = true
	h.lastBumped = c.frameID
	return &Writer{cache: c, addr: NewAddress(start, row), want: blockCount}, true
}

// GetAddress returns the texel address of a valid handle. Calling it on a
// handle that has never been requested is a caller bug.
func (c *Cache) GetAddress(h *Handle) Address {
	if !h.initialized {
		panic("gpucache: GetAddress on a handle never passed to Request")
	}
	return NewAddress(h.loc.start, h.loc.row)
}

func (c *Cache) alloc(blockCount int) (rowIdx, start int) {
	for ri := range c.rows {
		r := &c.rows[ri]
		if start, ok := findRun(r.used, blockCount); ok {
			markUsed(r, start, blockCount)
			return ri, start
		}
	}
	ri := len(c.rows)
	c.rows = append(c.rows, row{used: make([]bool, blockWidth)})
	markUsed(&c.rows[ri], 0, blockCount)
	return ri, 0
}

func findRun(used []bool, n int) (int, bool) {
	run := 0
	for i, u := range used {
		if u {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1, true
		}
	}
	return 0, false
}

func markUsed(r *row, start, n int) {
	for i := start; i < start+n; i++ {
		r.used[i] = true
	}
}

// Evict invalidates h, marking its storage free for reuse by a future
// Request. The render backend calls this at frame end or under memory
// pressure for handles not touched (§4.1 invariant) this frame.
func (c *Cache) Evict(h *Handle) {
	if !h.initialized {
		return
	}
	r := &c.rows[h.loc.row]
	for i := h.loc.start; i < h.loc.start+h.loc.count; i++ {
		r.used[i] = false
	}
	*h = Handle{}
}

// Stale reports whether h was not confirmed live during the current
// frame (i.e. Request was never called on it this BeginFrame cycle). The
// backend's eviction sweep uses this to decide what to Evict.
func (h *Handle) Stale(currentFrame uint64) bool {
	return !h.initialized || h.lastBumped != currentFrame
}

// PendingUpdates returns the flat buffer of blocks pushed via Request
// this frame, paired with their (address, block-count) runs, ready for
// upload to the GPU as described in §4.1.
func (c *Cache) PendingUpdates() []Update {
	// Coalesce contiguous single-block pushes sharing a row into runs so
	// callers issue one upload per contiguous span instead of one per
	// block.
	out := make([]Update, 0, len(c.pending))
	for _, p := range c.pending {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if contiguous(last.Address, len(last.Blocks), p.addr) {
				last.Blocks = append(last.Blocks, p.blocks...)
				continue
			}
		}
		out = append(out, Update{Address: p.addr, Blocks: append([]Block(nil), p.blocks...)})
	}
	return out
}

func contiguous(base Address, count int, next Address) bool {
	return base.Y() == next.Y() && base.X()+count == next.X()
}

// Update is a contiguous run of blocks to upload at Address.
type Update struct {
	Address Address
	Blocks  []Block
}

// Rows reports how many texel rows are currently allocated; used by the
// renderer to size the backing texture (width=blockWidth, height=Rows()).
func (c *Cache) Rows() int { return len(c.rows) }

// heightFor returns the smallest power-of-two row count >= n, mirroring
// the teacher's habit (gpu/compute.go) of rounding dynamic targets to
// favor predictable reuse over exact-fit allocation.
func heightFor(n int) int {
	return int(math.Exp2(math.Ceil(math.Log2(float64(n)))))
}
