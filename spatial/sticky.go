// SPDX-License-Identifier: Unlicense OR MIT

package spatial

import "compose2d.dev/geom"

// calculateStickyOffset computes how far a sticky frame must be nudged
// this frame to keep its configured margins satisfied, per axis
// independently (§4.5). sticky_rect is the frame's local viewport
// translated by its nearest scrolling ancestor's current offset; each
// margin either pushes the frame back toward the viewport edge it
// guards or, if previously pushed and no longer needed, backs the
// offset off — never past zero, and never past the configured bounds.
func calculateStickyOffset(n *Node, state updateState) geom.Point {
	s := &n.Sticky
	if !s.MarginTop.Set && !s.MarginBottom.Set && !s.MarginLeft.Set && !s.MarginRight.Set {
		return geom.Point{}
	}

	viewport := state.nearestScrollingAncestorViewport
	stickyRect := n.LocalViewportRect.Add(state.nearestScrollingAncestorOffset)

	offset := geom.Point{
		X: stickyAxis(viewport.Min.X, viewport.Max.X, stickyRect.Min.X, stickyRect.Max.X,
			s.MarginLeft, s.MarginRight, s.PreviouslyAppliedOffset.X, s.HorizontalBounds),
		Y: stickyAxis(viewport.Min.Y, viewport.Max.Y, stickyRect.Min.Y, stickyRect.Max.Y,
			s.MarginTop, s.MarginBottom, s.PreviouslyAppliedOffset.Y, s.VerticalBounds),
	}

	s.PreviouslyAppliedOffset = offset
	return offset
}

// stickyAxis implements one axis of the algorithm: marginBegin guards
// the top/left edge (produces a non-negative delta when active alone),
// marginEnd guards the bottom/right edge (non-positive delta), and the
// bottom/right check only runs when the top/left side hasn't already
// pushed the offset positive, since a frame can't be stuck to both
// edges of the same axis at once.
func stickyAxis(viewportMin, viewportMax, rectMin, rectMax float32, marginBegin, marginEnd StickyMargin, prevApplied float32, bounds OffsetBounds) float32 {
	delta := float32(0)

	if marginBegin.Set {
		deficit := (viewportMin + marginBegin.Value) - rectMin
		switch {
		case deficit > 0:
			delta = deficit
		case prevApplied > 0:
			delta = deficit
			if delta+prevApplied < 0 {
				delta = -prevApplied
			}
		}
	}

	if marginEnd.Set && delta+prevApplied <= 0 {
		deficit := rectMax - (viewportMax - marginEnd.Value)
		switch {
		case deficit > 0:
			delta = -deficit
		case prevApplied < 0:
			delta = -deficit
			if delta+prevApplied > 0 {
				delta = -prevApplied
			}
		}
	}

	return clampf(delta+prevApplied, bounds.Min, bounds.Max)
}
