// SPDX-License-Identifier: Unlicense OR MIT

// Package texturecache implements the texture cache (§4.2): a binning
// guillotine allocator that packs variable-size rectangles into GPU
// atlas textures, with coalescing to defragment the free list and a
// 1-pixel border around every allocation to prevent bilinear filter
// bleed.
package texturecache

import (
	"image"
	"sort"
	"time"
)

// bin classifies a free rect (or a request) by its smaller side, so the
// allocator doesn't have to sift through many small slivers when
// searching for a large rect, and vice versa.
type bin int

const (
	binSmall bin = iota
	binMedium
	binLarge
	numBins
)

const (
	mediumThreshold = 16
	largeThreshold  = 32
)

func binFor(size image.Point) bin {
	m := size.X
	if size.Y < m {
		m = size.Y
	}
	switch {
	case m >= largeThreshold:
		return binLarge
	case m >= mediumThreshold:
		return binMedium
	default:
		return binSmall
	}
}

// coalesceTimeout bounds how long a single coalesce() call may run before
// it gives up and keeps the partially-defragmented state, per §4.2.
const coalesceTimeout = 100 * time.Millisecond

// coalesceCheckInterval is how many free rects are processed between
// wall-clock deadline checks.
const coalesceCheckInterval = 256

// page is a single atlas allocator: a guillotine free list over one
// texture-sized rectangle. It corresponds to one WebRender TexturePage /
// one gio atlas page.
type page struct {
	size       image.Point
	free       [numBins][]image.Rectangle
	dirty      bool
	allocCount int
}

func newPage(size image.Point) *page {
	p := &page{size: size}
	p.clear()
	return p
}

func (p *page) clear() {
	for b := range p.free {
		p.free[b] = p.free[b][:0]
	}
	p.push(image.Rectangle{Max: p.size})
	p.allocCount = 0
	p.dirty = false
}

func (p *page) push(r image.Rectangle) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	b := binFor(r.Size())
	p.free[b] = append(p.free[b], r)
}

// tryAdd attempts to place a rect of the given size, returning its
// origin. It implements the bin search order from §4.2: try the exact
// bin, then escalate to larger bins (small may also fall through to
// medium then large; medium falls through to large).
func (p *page) tryAdd(size image.Point) (image.Point, bool) {
	if origin, ok := p.allocate(size); ok {
		return origin, true
	}
	if p.dirty {
		p.coalesce()
		if origin, ok := p.allocate(size); ok {
			return origin, true
		}
	}
	return image.Point{}, false
}

func (p *page) allocate(size image.Point) (image.Point, bool) {
	start := binFor(size)
	for b := start; b < numBins; b++ {
		if idx, ok := p.bestFit(b, size); ok {
			chosen := p.free[b][idx]
			p.removeAt(b, idx)
			p.split(chosen, size)
			p.allocCount++
			return chosen.Min, true
		}
	}
	return image.Point{}, false
}

// bestFit finds the smallest-area free rect in bin b that fits size
// (Best-Area-Fit), matching webrender's find_index_of_best_rect_in_bin.
func (p *page) bestFit(b bin, size image.Point) (int, bool) {
	best := -1
	bestArea := 0
	for i, r := range p.free[b] {
		rs := r.Size()
		if rs.X < size.X || rs.Y < size.Y {
			continue
		}
		area := rs.X * rs.Y
		if best < 0 || area < bestArea {
			best, bestArea = i, area
		}
	}
	return best, best >= 0
}

func (p *page) removeAt(b bin, idx int) {
	list := p.free[b]
	list[idx] = list[len(list)-1]
	p.free[b] = list[:len(list)-1]
}

// split guillotines chosen into a right and bottom remainder using the
// MINAS (minimum-area-split) rule: pick whichever cut direction leaves
// the single larger remaining rect whole.
func (p *page) split(chosen image.Rectangle, size image.Point) {
	right := image.Rect(chosen.Min.X+size.X, chosen.Min.Y, chosen.Max.X, chosen.Min.Y+size.Y)
	bottom := image.Rect(chosen.Min.X, chosen.Min.Y+size.Y, chosen.Min.X+size.X, chosen.Max.Y)
	rightArea := area(right)
	bottomArea := area(bottom)

	var newRight, newBottom image.Rectangle
	if rightArea > bottomArea {
		newRight = image.Rect(right.Min.X, right.Min.Y, right.Max.X, chosen.Max.Y)
		newBottom = bottom
	} else {
		newRight = right
		newBottom = image.Rect(bottom.Min.X, bottom.Min.Y, chosen.Max.X, bottom.Max.Y)
	}
	if area(newRight) > 0 {
		p.push(newRight)
		p.dirty = true
	}
	if area(newBottom) > 0 {
		p.push(newBottom)
		p.dirty = true
	}
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

// free releases rect back to the page's free list, or clears the whole
// page if it was the last live allocation (cheap reset instead of a
// guillotine merge).
func (p *page) freeRect(r image.Rectangle) {
	p.allocCount--
	if p.allocCount <= 0 {
		p.clear()
		return
	}
	p.push(r)
	p.dirty = true
}

// grow enlarges the page to newSize, adding the right and bottom strips
// as fresh free rects. newSize must be >= the current size on both axes.
func (p *page) grow(newSize image.Point) {
	if newSize.X < p.size.X || newSize.Y < p.size.Y {
		panic("texturecache: grow must not shrink a page")
	}
	if newSize.X > p.size.X {
		p.push(image.Rect(p.size.X, 0, newSize.X, newSize.Y))
	}
	if newSize.Y > p.size.Y {
		p.push(image.Rect(0, p.size.Y, p.size.X, newSize.Y))
	}
	p.size = newSize
}

// coalesce merges adjacent free rects that share a width (scanning by
// (width, x)) and then a height (scanning by (height, y)), bounded by a
// wall-clock deadline as described in §4.2. On timeout the
// partially-coalesced state is kept and the page remains dirty.
func (p *page) coalesce() {
	deadline := time.Now().Add(coalesceTimeout)
	all := p.allFree()

	merged, changed, timedOut := mergeByWidth(all, deadline)
	if !timedOut {
		merged, changed2, timedOut2 := mergeByHeight(merged, deadline)
		changed = changed || changed2
		timedOut = timedOut2
		all = merged
	} else {
		all = merged
	}

	for b := range p.free {
		p.free[b] = p.free[b][:0]
	}
	for _, r := range all {
		p.push(r)
	}
	p.dirty = timedOut || changed
}

func (p *page) allFree() []image.Rectangle {
	var all []image.Rectangle
	for b := range p.free {
		all = append(all, p.free[b]...)
	}
	return all
}

func mergeByWidth(rects []image.Rectangle, deadline time.Time) ([]image.Rectangle, bool, bool) {
	sort.Slice(rects, func(i, j int) bool {
		wi, wj := rects[i].Dx(), rects[j].Dx()
		if wi != wj {
			return wi < wj
		}
		return rects[i].Min.X < rects[j].Min.X
	})
	changed := false
	for i := range rects {
		if i%coalesceCheckInterval == 0 && time.Now().After(deadline) {
			return rects, changed, true
		}
		if rects[i].Dx() == 0 {
			continue
		}
		for j := i + 1; j < len(rects); j++ {
			if rects[j].Dx() != rects[i].Dx() || rects[j].Min.X != rects[i].Min.X {
				break
			}
			if rects[i].Min.Y == rects[j].Max.Y || rects[i].Max.Y == rects[j].Min.Y {
				rects[i] = rects[i].Union(rects[j])
				rects[j] = image.Rectangle{}
				changed = true
			}
		}
	}
	return compact(rects), changed, false
}

func mergeByHeight(rects []image.Rectangle, deadline time.Time) ([]image.Rectangle, bool, bool) {
	sort.Slice(rects, func(i, j int) bool {
		hi, hj := rects[i].Dy(), rects[j].Dy()
		if hi != hj {
			return hi < hj
		}
		return rects[i].Min.Y < rects[j].Min.Y
	})
	changed := false
	for i := range rects {
		if i%coalesceCheckInterval == 0 && time.Now().After(deadline) {
			return rects, changed, true
		}
		if rects[i].Dy() == 0 {
			continue
		}
		for j := i + 1; j < len(rects); j++ {
			if rects[j].Dy() != rects[i].Dy() || rects[j].Min.Y != rects[i].Min.Y {
				break
			}
			if rects[i].Min.X == rects[j].Max.X || rects[i].Max.X == rects[j].Min.X {
				rects[i] = rects[i].Union(rects[j])
				rects[j] = image.Rectangle{}
				changed = true
			}
		}
	}
	return compact(rects), changed, false
}

func compact(rects []image.Rectangle) []image.Rectangle {
	out := rects[:0]
	for _, r := range rects {
		if area(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}
