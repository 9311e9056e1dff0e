// SPDX-License-Identifier: Unlicense OR MIT

package spatial

import "compose2d.dev/geom"

// SetScrollOrigin pins a scroll frame's offset to the given origin,
// clamping to its scrollable range, per the "scroll-node-with-id" API
// message (§6). It reports false if idx does not name a scroll frame.
func (t *Tree) SetScrollOrigin(idx NodeIndex, origin geom.Point) bool {
	n := &t.Nodes[idx]
	if n.Kind != KindScrollFrame {
		return false
	}
	n.Scroll.Offset = clampScrollOffset(origin.Mul(-1), n)
	return true
}

// Scroll applies a relative scroll delta to a scroll frame, clamping to
// its scrollable range and triggering the overscroll spring when the
// delta would carry the offset past the clamped range (§3 "Scroll
// frame", overscroll spring).
func (t *Tree) Scroll(idx NodeIndex, delta geom.Point) bool {
	n := &t.Nodes[idx]
	if n.Kind != KindScrollFrame {
		return false
	}
	wanted := n.Scroll.Offset.Add(delta)
	clamped := clampScrollOffset(wanted, n)
	overshoot := wanted.Sub(clamped)
	n.Scroll.Offset = clamped
	if overshoot.X != 0 || overshoot.Y != 0 {
		n.Scroll.OverscrollSpring.Offset = n.Scroll.OverscrollSpring.Offset.Add(overshoot)
		n.Scroll.OverscrollSpring.Active = true
	}
	return true
}

// clampScrollOffset restricts a scroll frame's offset to
// [-(scrollableSize-viewport), 0], webrender's convention of a
// non-positive scroll offset (content moves up/left as the user scrolls
// down/right).
func clampScrollOffset(offset geom.Point, n *Node) geom.Point {
	viewport := n.LocalViewportRect.Size()
	maxX := max32(0, n.Scroll.ScrollableSize.X-viewport.X)
	maxY := max32(0, n.Scroll.ScrollableSize.Y-viewport.Y)
	return geom.Point{
		X: clampf(offset.X, -maxX, 0),
		Y: clampf(offset.Y, -maxY, 0),
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// TickScrollingBounceAnimation advances every active overscroll spring by
// one step, per the "tick-scrolling-bounce" API message (§6). It reports
// whether any spring is still active, so the backend knows to schedule
// another frame.
func (t *Tree) TickScrollingBounceAnimation() bool {
	anyActive := false
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Kind != KindScrollFrame {
			continue
		}
		n.Scroll.OverscrollSpring.Tick()
		anyActive = anyActive || n.Scroll.OverscrollSpring.Active
	}
	return anyActive
}
