// SPDX-License-Identifier: Unlicense OR MIT

// Package clip implements the clip item / clip chain data model and
// per-primitive clip-chain instantiation of §4.6: a flat arena of clip
// items addressed through singly-linked chain nodes, and the walk that
// turns a chain plus a primitive's bounding rect into the small set of
// clips that actually need a mask this frame.
package clip

import (
	"compose2d.dev/geom"
	"compose2d.dev/gpucache"
	"compose2d.dev/spatial"
)

// ItemKind discriminates the clip source variants named in §3/GLOSSARY.
type ItemKind int

const (
	KindRect ItemKind = iota
	KindRoundedRect
	KindImageMask
	KindBoxShadow
	KindLineDecoration
)

// Item is one entry of the clip-item arena.
type Item struct {
	Kind      ItemKind
	LocalRect geom.Rect
	// Radii holds the per-corner radius (top-left, top-right,
	// bottom-right, bottom-left), used by KindRoundedRect.
	Radii [4]geom.Point
	// ImageMask names a resource-cache image handle, used by
	// KindImageMask.
	ImageMask uint32

	gpu              gpucache.Handle
	lastUpdatedFrame uint64
}

// InnerRect returns the largest rect guaranteed to lie entirely inside
// the clip, used by the Accept probe (§4.6): exact for a plain rect,
// conservatively shrunk by the largest corner-radius pair per edge for a
// rounded rect, and empty (never accepts) for shapes with no cheap
// conservative bound.
func (it *Item) InnerRect() geom.Rect {
	switch it.Kind {
	case KindRect:
		return it.LocalRect
	case KindRoundedRect:
		left := maxf(it.Radii[0].X, it.Radii[3].X)
		right := maxf(it.Radii[1].X, it.Radii[2].X)
		top := maxf(it.Radii[0].Y, it.Radii[1].Y)
		bottom := maxf(it.Radii[2].Y, it.Radii[3].Y)
		r := it.LocalRect
		inner := geom.Rectangle(r.Min.X+left, r.Min.Y+top, r.Max.X-right, r.Max.Y-bottom)
		if inner.Empty() {
			return geom.Rect{}
		}
		return inner
	default:
		return geom.Rect{}
	}
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// ChainID addresses a node in a Store's chain-node arena.
type ChainID int32

// NoChain terminates a chain (the root has no parent).
const NoChain ChainID = -1

type chainNode struct {
	itemsStart, itemsCount int
	spatialNode            spatial.NodeIndex
	parent                 ChainID
}

// Store is the flat arena backing every clip chain in the scene (§9
// "Arena + indices for the clip store and clip chain").
type Store struct {
	items []Item
	nodes []chainNode
	frame uint64
}

func NewStore() *Store { return &Store{} }

// BeginFrame advances the store's frame counter, used by the
// lastUpdatedFrame generation check to dedup GPU-cache writes (§9 Open
// question).
func (s *Store) BeginFrame() { s.frame++ }

// PushChain appends a new chain node holding items, associated with
// spatialNode, in front of parent, returning the new chain's id.
func (s *Store) PushChain(parent ChainID, spatialNode spatial.NodeIndex, items ...Item) ChainID {
	start := len(s.items)
	s.items = append(s.items, items...)
	s.nodes = append(s.nodes, chainNode{itemsStart: start, itemsCount: len(items), spatialNode: spatialNode, parent: parent})
	return ChainID(len(s.nodes) - 1)
}

// Item returns the item at the given arena index, for callers (e.g. the
// render-task builder) holding a NodeInstance from a ClipChainInstance.
func (s *Store) Item(idx int) *Item { return &s.items[idx] }

// spaceKind is the per-item space conversion of §4.6 step 1.
type spaceKind int

const (
	spaceLocal spaceKind = iota
	spaceOffset
	spaceTransform
)

// NodeInstance packs one surviving clip item's arena index plus the
// flags §9 assigns to the top 8 bits in the original design (same
// spatial node, same coordinate system); kept unpacked here since Go has
// no reason to bit-pack a Go slice element.
type NodeInstance struct {
	ItemIndex       int
	SameSpatialNode bool
	SameCoordSystem bool
}

// ChainInstance is the per-primitive, per-frame realization of a clip
// chain (§6.6 GLOSSARY "Clip-chain instance").
type ChainInstance struct {
	Instances              []NodeInstance
	LocalClipRect           geom.Rect
	WorldClipRect           geom.Rect
	OutsideRootCoordSystem  bool
}

// BuildInstance walks chain from head to NoChain, culling the primitive
// if any contributing clip empties its running intersection, and
// returns the surviving (Partial) clips as a ChainInstance. The second
// return is false if the primitive is culled entirely this frame.
func (s *Store) BuildInstance(chain ChainID, tree *spatial.Tree, localRect, localClipRect geom.Rect, spatialNode spatial.NodeIndex, gpu *gpucache.Cache) (ChainInstance, bool) {
	primNode := tree.Node(spatialNode)

	localClip := localRect.Intersect(localClipRect)
	primBounding := localClip
	worldClip := geom.MaxRect()
	outsideRoot := primNode.CoordSystem != spatial.RootCoordSystem

	type walked struct {
		idx       int
		space     spaceKind
		transform geom.Transform3D
		delta     geom.Point
	}
	var all []walked

	for cur := chain; cur != NoChain; {
		node := &s.nodes[cur]
		clipSpatial := tree.Node(node.spatialNode)
		if clipSpatial.CoordSystem != spatial.RootCoordSystem {
			outsideRoot = true
		}

		var space spaceKind
		var delta geom.Point
		switch {
		case node.spatialNode == spatialNode:
			space = spaceLocal
		case clipSpatial.CoordSystem == primNode.CoordSystem:
			space = spaceOffset
			delta = clipSpatial.CoordSystemRelativeOffset.Sub(primNode.CoordSystemRelativeOffset)
		default:
			space = spaceTransform
		}

		for i := node.itemsStart; i < node.itemsStart+node.itemsCount; i++ {
			it := &s.items[i]
			switch space {
			case spaceLocal:
				localClip = localClip.Intersect(it.LocalRect)
			case spaceOffset:
				localClip = localClip.Intersect(it.LocalRect.Add(delta))
			case spaceTransform:
				projected, ok := geom.ProjectRect(clipSpatial.WorldContentTransform, it.LocalRect)
				if !ok {
					return ChainInstance{}, false
				}
				worldClip = worldClip.Intersect(projected)
			}
			if localClip.Empty() {
				return ChainInstance{}, false
			}
			all = append(all, walked{idx: i, space: space, transform: clipSpatial.WorldContentTransform, delta: delta})
		}
		cur = node.parent
	}

	worldBounding, ok := geom.ProjectRect(primNode.WorldContentTransform, localClip)
	if !ok {
		return ChainInstance{}, false
	}
	worldClip = worldClip.Intersect(worldBounding)
	if worldClip.Empty() {
		return ChainInstance{}, false
	}

	var instances []NodeInstance
	for _, w := range all {
		it := &s.items[w.idx]

		bounding := primBounding
		inner := it.InnerRect()
		if w.space == spaceOffset && !inner.Empty() {
			inner = inner.Add(w.delta)
		}
		if w.space == spaceTransform {
			bounding = worldClip
			if !inner.Empty() {
				projectedInner, ok := geom.ProjectRect(w.transform, inner)
				if !ok {
					inner = geom.Rect{}
				} else {
					inner = projectedInner
				}
			}
		}
		if !inner.Empty() && inner.Contains(bounding) {
			// Accept: this clip has no visible effect on the primitive.
			continue
		}

		s.touch(it, gpu)
		instances = append(instances, NodeInstance{
			ItemIndex:       w.idx,
			SameSpatialNode: w.space == spaceLocal,
			SameCoordSystem: w.space != spaceTransform,
		})
	}

	return ChainInstance{
		Instances:              instances,
		LocalClipRect:          localClip,
		WorldClipRect:          worldClip,
		OutsideRootCoordSystem: outsideRoot,
	}, true
}

// touch ensures a surviving clip item's GPU-cache entry is up to date
// this frame, deduped via lastUpdatedFrame so a clip shared by many
// chains (or visited by many primitives) is only pushed once per frame
// (§9 Open question).
func (s *Store) touch(it *Item, gpu *gpucache.Cache) {
	if it.lastUpdatedFrame == s.frame {
		return
	}
	it.lastUpdatedFrame = s.frame
	if w, stale := gpu.Request(&it.gpu, 2); stale {
		w.Push(gpuBlock(it))
		w.Push(gpuBlock2(it))
	}
}

func gpuBlock(it *Item) [4]float32 {
	return [4]float32{it.LocalRect.Min.X, it.LocalRect.Min.Y, it.LocalRect.Max.X, it.LocalRect.Max.Y}
}

func gpuBlock2(it *Item) [4]float32 {
	return [4]float32{it.Radii[0].X, it.Radii[0].Y, float32(it.Kind), 0}
}
