// SPDX-License-Identifier: Unlicense OR MIT

// Package spatial implements the clip-scroll tree (§4.5, §3 "Spatial
// node"): a tree of reference frames, scroll frames, sticky frames and
// clip nodes, and the single pre-order traversal that keeps their
// transforms, accumulated clip bounds and coordinate-system ids
// up to date each frame.
package spatial

import "compose2d.dev/geom"

// NodeIndex addresses a node in a Tree's flat array; it also serves as
// the linear index shaders use to fetch a node's data (§3).
type NodeIndex uint32

// Root is always the tree's reference-frame root (§3 invariant).
const Root NodeIndex = 0

// CoordSystemID is an equivalence class of nodes connected only by
// axis-aligned transforms (see GLOSSARY and §9 design note: preferred
// over float transform comparison because rounding would churn an id
// computed from equality).
type CoordSystemID uint32

// RootCoordSystem is the coordinate system of the tree's root reference
// frame.
const RootCoordSystem CoordSystemID = 0

// Kind discriminates the spatial node variants of §3.
type Kind int

const (
	KindReferenceFrame Kind = iota
	KindScrollFrame
	KindStickyFrame
	KindClip
)

// ScrollSensitivity controls whether a scroll frame reacts to input
// events (wheel/touch) or only to script-driven scroll-node-with-id
// messages.
type ScrollSensitivity int

const (
	SensitiveToInput ScrollSensitivity = iota
	ScriptOnly
)

// Spring models the overscroll bounce-back animation of a scroll frame.
type Spring struct {
	// Offset is the current bounce displacement.
	Offset geom.Point
	// Velocity is the current bounce velocity, advanced by Tick.
	Velocity geom.Point
	// Active reports whether the spring is still animating.
	Active bool
}

const (
	springStiffness = 0.2
	springDamping   = 0.7
)

// Tick advances the spring one animation step toward zero displacement,
// per the "tick-scrolling-bounce" API message (§6).
func (s *Spring) Tick() {
	if !s.Active {
		return
	}
	accel := s.Offset.Mul(-springStiffness)
	s.Velocity = s.Velocity.Add(accel).Mul(springDamping)
	s.Offset = s.Offset.Add(s.Velocity)
	if nearZero(s.Offset.X) && nearZero(s.Offset.Y) && nearZero(s.Velocity.X) && nearZero(s.Velocity.Y) {
		s.Offset = geom.Point{}
		s.Velocity = geom.Point{}
		s.Active = false
	}
}

func nearZero(v float32) bool {
	const eps = 1e-3
	return v > -eps && v < eps
}

// ScrollInfo holds a scroll frame's mutable scrolling state (§3).
type ScrollInfo struct {
	Offset          geom.Point
	ScrollableSize  geom.Point
	Sensitivity     ScrollSensitivity
	OverscrollSpring Spring
}

// OffsetBounds clamps a sticky offset to [Min, Max] on one axis.
type OffsetBounds struct {
	Min, Max float32
}

// StickyMargin is an optional CSS-style sticky margin: present and the
// distance from the corresponding viewport edge, or absent.
type StickyMargin struct {
	Value float32
	Set   bool
}

// StickyInfo holds a sticky frame's configuration and mutable state
// (§3, §4.5).
type StickyInfo struct {
	MarginTop, MarginBottom, MarginLeft, MarginRight StickyMargin
	VerticalBounds, HorizontalBounds                 OffsetBounds
	PreviouslyAppliedOffset                          geom.Point
	CurrentOffset                                    geom.Point
}

// ReferenceFrameInfo holds a reference frame's 3D transform and its
// origin relative to its parent reference frame.
type ReferenceFrameInfo struct {
	Transform               geom.Transform3D
	OriginInParentReference geom.Point
}

// Node is one entry of the clip-scroll tree (§3).
type Node struct {
	Kind Kind

	Parent   NodeIndex
	HasParent bool
	Children []NodeIndex

	PipelineID uint64

	// LocalViewportRect is the node's viewport in the parent reference
	// frame's coordinate space.
	LocalViewportRect geom.Rect
	// LocalClipRect additionally restricts the viewport (equal to
	// LocalViewportRect except in overscroll cases, per §3).
	LocalClipRect geom.Rect
	// CombinedLocalViewport is the intersection of the parent's combined
	// viewport (mapped to this node's local space) and LocalClipRect.
	CombinedLocalViewport geom.Rect

	WorldViewportTransform geom.Transform3D
	WorldContentTransform  geom.Transform3D

	// AccumulatedScrollOffset sums scroll/sticky offsets from the nearest
	// reference-frame ancestor.
	AccumulatedScrollOffset geom.Point
	// CoordSystemRelativeOffset is the accumulated offset at the point
	// this node entered its current coordinate system; clip-chain
	// instantiation subtracts two of these to get an Offset conversion.
	CoordSystemRelativeOffset geom.Point

	// CombinedOuterClipBoundsDevice is the accumulated outer clip bound
	// in device pixels.
	CombinedOuterClipBoundsDevice geom.Rect

	CoordSystem CoordSystemID

	Reference ReferenceFrameInfo
	Scroll    ScrollInfo
	Sticky    StickyInfo
	// ClipHandle, when Kind == KindClip, names the clip-store range this
	// node contributes (see package clip).
	ClipHandle uint32
}

// ScrollOffset returns the scroll/sticky contribution this node itself
// applies to its content (zero for reference frames and clip nodes).
func (n *Node) ScrollOffset() geom.Point {
	switch n.Kind {
	case KindScrollFrame:
		return n.Scroll.Offset.Add(n.Scroll.OverscrollSpring.Offset)
	case KindStickyFrame:
		return n.Sticky.CurrentOffset
	default:
		return geom.Point{}
	}
}
