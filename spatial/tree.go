// SPDX-License-Identifier: Unlicense OR MIT

package spatial

import "compose2d.dev/geom"

// Tree is the clip-scroll tree: a flat array of Nodes addressed by
// NodeIndex, rebuilt once per scene and updated once per frame by
// Update.
type Tree struct {
	Nodes []Node

	nextCoordSystem CoordSystemID
}

// New returns a Tree containing just the root reference frame, as
// required by §3's invariant that the root is always a reference frame.
func New() *Tree {
	t := &Tree{}
	t.Nodes = append(t.Nodes, Node{
		Kind:                  KindReferenceFrame,
		LocalViewportRect:     geom.MaxRect(),
		LocalClipRect:         geom.MaxRect(),
		CombinedLocalViewport: geom.MaxRect(),
		Reference:             ReferenceFrameInfo{Transform: geom.Identity3D()},
	})
	t.nextCoordSystem = RootCoordSystem + 1
	return t
}

func (t *Tree) Node(i NodeIndex) *Node { return &t.Nodes[i] }

// AddReferenceFrame appends a new reference-frame node under parent.
func (t *Tree) AddReferenceFrame(parent NodeIndex, pipeline uint64, rect geom.Rect, transform geom.Transform3D, originInParent geom.Point) NodeIndex {
	return t.add(parent, pipeline, rect, Node{
		Kind:      KindReferenceFrame,
		Reference: ReferenceFrameInfo{Transform: transform, OriginInParentReference: originInParent},
	})
}

// AddScrollFrame appends a new scroll-frame node under parent.
func (t *Tree) AddScrollFrame(parent NodeIndex, pipeline uint64, rect geom.Rect, scrollableSize geom.Point, sensitivity ScrollSensitivity) NodeIndex {
	return t.add(parent, pipeline, rect, Node{
		Kind:   KindScrollFrame,
		Scroll: ScrollInfo{ScrollableSize: scrollableSize, Sensitivity: sensitivity},
	})
}

// AddStickyFrame appends a new sticky-frame node under parent.
func (t *Tree) AddStickyFrame(parent NodeIndex, pipeline uint64, rect geom.Rect, sticky StickyInfo) NodeIndex {
	return t.add(parent, pipeline, rect, Node{Kind: KindStickyFrame, Sticky: sticky})
}

// AddClipNode appends a new clip node under parent, referencing a range
// in the clip store via clipHandle.
func (t *Tree) AddClipNode(parent NodeIndex, pipeline uint64, rect geom.Rect, clipHandle uint32) NodeIndex {
	return t.add(parent, pipeline, rect, Node{Kind: KindClip, ClipHandle: clipHandle})
}

func (t *Tree) add(parent NodeIndex, pipeline uint64, rect geom.Rect, n Node) NodeIndex {
	n.Parent = parent
	n.HasParent = true
	n.PipelineID = pipeline
	n.LocalViewportRect = rect
	n.LocalClipRect = rect
	idx := NodeIndex(len(t.Nodes))
	t.Nodes = append(t.Nodes, n)
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	return idx
}

// updateState carries the per-traversal accumulators of §4.5's
// TransformUpdateState down through the pre-order walk.
type updateState struct {
	parentReferenceFrameTransform geom.Transform3D
	parentCombinedViewport        geom.Rect
	parentAccumulatedScrollOffset geom.Point

	nearestScrollingAncestorOffset    geom.Point
	nearestScrollingAncestorViewport  geom.Rect

	combinedOuterClipBoundsDevice geom.Rect

	currentCoordSystem CoordSystemID
	// nextCoordSystem is shared by every copy of the state, so sibling
	// subtrees never hand out the same id.
	nextCoordSystem *CoordSystemID
}

// Update performs the single depth-first pre-order traversal described
// in §4.5, recomputing every node's transforms, combined viewport and
// coordinate-system id. onClipNode is invoked for every clip-kind node
// so the caller (the frame builder) can push the node's clip-store range
// onto the ambient clip chain used by descendant primitives.
func (t *Tree) Update(onClipNode func(idx NodeIndex)) {
	next := RootCoordSystem + 1
	state := updateState{
		parentReferenceFrameTransform:    geom.Identity3D(),
		parentCombinedViewport:           geom.MaxRect(),
		nearestScrollingAncestorViewport: geom.MaxRect(),
		combinedOuterClipBoundsDevice:    geom.MaxRect(),
		currentCoordSystem:               RootCoordSystem,
		nextCoordSystem:                  &next,
	}
	t.updateNode(Root, state, onClipNode)
	t.nextCoordSystem = next
}

// updateNode recomputes n and recurses into its children, following
// clip_scroll_node.rs's update_transform: each node kind folds its own
// contribution into the inherited state before handing it to children.
func (t *Tree) updateNode(idx NodeIndex, state updateState, onClipNode func(NodeIndex)) {
	n := &t.Nodes[idx]

	childState := state

	switch n.Kind {
	case KindReferenceFrame:
		n.CombinedLocalViewport = n.Reference.Transform.InverseFootprint(state.parentCombinedViewport)
		n.CoordSystemRelativeOffset = geom.Point{}
		n.AccumulatedScrollOffset = geom.Point{}
		n.WorldViewportTransform = state.parentReferenceFrameTransform.PreMul(n.Reference.Transform)
		n.WorldContentTransform = n.WorldViewportTransform

		childState.parentReferenceFrameTransform = n.WorldViewportTransform
		childState.parentCombinedViewport = n.CombinedLocalViewport
		childState.parentAccumulatedScrollOffset = geom.Point{}
		childState.nearestScrollingAncestorViewport = state.nearestScrollingAncestorViewport.Add(n.Reference.OriginInParentReference)

		if n.Reference.Transform.PreservesAxisAlignment() {
			n.CoordSystem = state.currentCoordSystem
		} else {
			n.CoordSystem = *state.nextCoordSystem
			childState.currentCoordSystem = n.CoordSystem
			*state.nextCoordSystem++
		}

	case KindClip:
		n.CombinedLocalViewport = state.parentCombinedViewport.Intersect(n.LocalClipRect)
		n.CoordSystemRelativeOffset = state.parentAccumulatedScrollOffset
		n.AccumulatedScrollOffset = state.parentAccumulatedScrollOffset
		n.WorldViewportTransform = state.parentReferenceFrameTransform.PreMul(
			geom.Translate3D(state.parentAccumulatedScrollOffset.X, state.parentAccumulatedScrollOffset.Y, 0))
		n.WorldContentTransform = n.WorldViewportTransform
		n.CoordSystem = state.currentCoordSystem

		childState.parentCombinedViewport = n.CombinedLocalViewport
		onClipNode(idx)

	case KindScrollFrame:
		n.CoordSystemRelativeOffset = state.parentAccumulatedScrollOffset
		n.AccumulatedScrollOffset = state.parentAccumulatedScrollOffset
		n.CombinedLocalViewport = state.parentCombinedViewport.Intersect(n.LocalClipRect)
		n.WorldViewportTransform = state.parentReferenceFrameTransform.PreMul(
			geom.Translate3D(state.parentAccumulatedScrollOffset.X, state.parentAccumulatedScrollOffset.Y, 0))
		scrollOffset := n.ScrollOffset()
		n.WorldContentTransform = n.WorldViewportTransform.PreMul(geom.Translate3D(scrollOffset.X, scrollOffset.Y, 0))
		n.CoordSystem = state.currentCoordSystem

		childState.parentCombinedViewport = n.CombinedLocalViewport.Add(scrollOffset.Mul(-1))
		childState.parentAccumulatedScrollOffset = state.parentAccumulatedScrollOffset.Add(scrollOffset)
		childState.nearestScrollingAncestorOffset = scrollOffset
		childState.nearestScrollingAncestorViewport = n.LocalViewportRect

	case KindStickyFrame:
		stickyOffset := calculateStickyOffset(n, state)
		n.Sticky.CurrentOffset = stickyOffset
		n.CoordSystemRelativeOffset = state.parentAccumulatedScrollOffset
		n.AccumulatedScrollOffset = state.parentAccumulatedScrollOffset
		n.CombinedLocalViewport = state.parentCombinedViewport.Sub(stickyOffset).Intersect(n.LocalClipRect)
		n.WorldViewportTransform = state.parentReferenceFrameTransform.PreMul(
			geom.Translate3D(state.parentAccumulatedScrollOffset.X, state.parentAccumulatedScrollOffset.Y, 0))
		n.WorldContentTransform = n.WorldViewportTransform.PreMul(geom.Translate3D(stickyOffset.X, stickyOffset.Y, 0))
		n.CoordSystem = state.currentCoordSystem

		childState.parentCombinedViewport = n.CombinedLocalViewport
		childState.parentAccumulatedScrollOffset = state.parentAccumulatedScrollOffset.Add(stickyOffset)
	}

	children := n.Children
	for _, c := range children {
		t.updateNode(c, childState, onClipNode)
	}
}
