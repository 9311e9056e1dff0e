// SPDX-License-Identifier: Unlicense OR MIT

// Package framebuilder walks a scene's display lists into the flat set
// of primitives and clip-chain instances a frame actually needs to draw
// (§4.8). It builds no render tasks.
package framebuilder

import (
	"compose2d.dev/clip"
	"compose2d.dev/geom"
	"compose2d.dev/gpucache"
	"compose2d.dev/resource"
	"compose2d.dev/scene"
	"compose2d.dev/spatial"
)

// BuiltPrimitive is one primitive ready to draw this frame: its rect
// has already absorbed every ancestor stacking context's folded
// translation, and its clip chain has been resolved to the small set of
// clips that actually affect it.
type BuiltPrimitive struct {
	Source      scene.Primitive
	WorldRect   geom.Rect
	SpatialNode spatial.NodeIndex
	Clip        clip.ChainInstance
}

// Builder owns the spatial tree, clip store and resource cache a frame
// is built against, mirroring §5's "render backend owns the scene, the
// clip-scroll tree, the resource cache".
type Builder struct {
	Tree      *spatial.Tree
	Clips     *clip.Store
	Resources *resource.Cache
	GPU       *gpucache.Cache

	// ScrollNodes maps every scroll frame allocated by the most recent
	// BuildScene call to its tree node, so a caller (the backend) can
	// resolve scroll-node-with-id/get-scroll-node-state messages and
	// carry scroll offsets over a scene rebuild by key (§3 "Spatial
	// nodes exist for the duration of a scene; a new scene rebuilds the
	// tree while reusing scroll offsets by key").
	ScrollNodes map[ScrollKey]spatial.NodeIndex
}

// ScrollKey names a scroll frame within a pipeline, matching the
// embedder-assigned scroll-root id of §6's scroll-node-with-id message.
type ScrollKey struct {
	Pipeline scene.PipelineID
	ID       uint64
}

func New(tree *spatial.Tree, clips *clip.Store, resources *resource.Cache, gpu *gpucache.Cache) *Builder {
	return &Builder{Tree: tree, Clips: clips, Resources: resources, GPU: gpu, ScrollNodes: map[ScrollKey]spatial.NodeIndex{}}
}

// ctx carries the per-walk accumulators named in §4.8: the current
// pipeline and spatial node, and the reference-frame-relative offset
// that static translations fold into instead of allocating a new
// reference frame. Each primitive still names its own clip chain
// explicitly (§3), so ctx doesn't need to carry one.
type ctx struct {
	pipeline    scene.PipelineID
	spatialNode spatial.NodeIndex
	offset      geom.Point
}

// staged is a primitive collected during the display-list walk, before
// its clip chain is resolved against the tree. Resolution has to wait
// until after Tree.Update, since a stacking context with a transform
// allocates its reference frame node mid-walk and that node's world
// transform isn't computed until Update runs (§4.5, §4.8).
type staged struct {
	prim        *scene.Primitive
	spatialNode spatial.NodeIndex
	offset      geom.Point
}

// BuildScene walks every pipeline reachable from scn's root, starting
// at the tree's root reference frame; allocates any reference frames
// new stacking-context transforms require; runs the tree's single
// transform-update pass; and returns the flattened, clipped,
// offset-folded primitive list for this frame.
func (b *Builder) BuildScene(scn *scene.Scene) []BuiltPrimitive {
	return b.buildScene(scn, nil)
}

// BuildSceneWithScrollRestore builds scn exactly as BuildScene does, but
// first applies offsets onto any freshly allocated scroll frame whose
// ScrollKey matches, before the tree's transform-update pass runs. A
// caller (the backend) that replaces Tree/Clips wholesale on every
// rebuild uses this to carry scroll offsets over by key, per §3
// ("a new scene rebuilds the tree while reusing scroll offsets by
// key") — restoration has to land before Update, since Update is what
// turns a scroll frame's offset into its WorldContentTransform.
func (b *Builder) BuildSceneWithScrollRestore(scn *scene.Scene, offsets map[ScrollKey]geom.Point) []BuiltPrimitive {
	return b.buildScene(scn, offsets)
}

func (b *Builder) buildScene(scn *scene.Scene, restore map[ScrollKey]geom.Point) []BuiltPrimitive {
	dl, ok := scn.Pipelines[scn.Root]
	if !ok {
		return nil
	}
	b.ScrollNodes = map[ScrollKey]spatial.NodeIndex{}
	var pending []staged
	b.walkDisplayList(scn, dl, ctx{pipeline: dl.Pipeline, spatialNode: spatial.Root}, &pending)

	for key, idx := range b.ScrollNodes {
		if off, ok := restore[key]; ok {
			b.Tree.Node(idx).Scroll.Offset = off
		}
	}

	b.Tree.Update(func(spatial.NodeIndex) {})

	var out []BuiltPrimitive
	for _, s := range pending {
		if built, ok := b.resolve(s); ok {
			out = append(out, built...)
		}
	}
	return out
}

// walkDisplayList collects dl's own primitives, then recurses into each
// iframe it embeds: a new reference frame translated by the iframe's
// bounds, followed by that iframe's own display list starting from its
// root stacking context (§4.8).
func (b *Builder) walkDisplayList(scn *scene.Scene, dl *scene.DisplayList, c ctx, pending *[]staged) {
	b.collect(&dl.Root, c, pending)
	for pipeline, bounds := range dl.Iframes {
		child, ok := scn.Pipelines[pipeline]
		if !ok {
			continue
		}
		rf := b.Tree.AddReferenceFrame(c.spatialNode, uint64(pipeline), geom.MaxRect(), geom.Translate3D(bounds.Min.X, bounds.Min.Y, 0), geom.Point{})
		b.walkDisplayList(scn, child, ctx{pipeline: pipeline, spatialNode: rf}, pending)
	}
}

// collect walks a stacking context depth-first, folding translations
// into the ambient offset and allocating a reference frame for any
// transform/perspective stacking context, per §4.8. A stacking context
// that will_make_invisible is skipped entirely.
func (b *Builder) collect(sc *scene.StackingContext, c ctx, pending *[]staged) {
	if sc.WillMakeInvisible() {
		return
	}

	next := c
	switch {
	case sc.ScrollFrame != nil:
		sf := sc.ScrollFrame
		viewport := sf.ViewportRect.Add(c.offset.Add(sc.Offset))
		node := b.Tree.AddScrollFrame(c.spatialNode, uint64(c.pipeline), viewport, sf.ScrollableSize, sf.Sensitivity)
		b.ScrollNodes[ScrollKey{Pipeline: c.pipeline, ID: sf.ID}] = node
		next.spatialNode = node
		next.offset = geom.Point{}
	case sc.Transform != nil:
		rf := b.Tree.AddReferenceFrame(c.spatialNode, uint64(c.pipeline), geom.MaxRect(), *sc.Transform, c.offset.Add(sc.Offset))
		next.spatialNode = rf
		next.offset = geom.Point{}
	default:
		next.offset = c.offset.Add(sc.Offset)
	}

	for i := range sc.Primitives {
		p := &sc.Primitives[i]
		if p.Kind == scene.KindTextRun {
			b.requestGlyphs(p)
		}
		if p.Kind == scene.KindImage {
			b.Resources.RequestImage(p.Image)
		}
		*pending = append(*pending, staged{prim: p, spatialNode: next.spatialNode, offset: next.offset})
	}
	for i := range sc.Children {
		b.collect(&sc.Children[i], next, pending)
	}
}

// requestGlyphs asks the resource cache to rasterize every glyph a
// text-run primitive references, per §4.8 "request the glyphs from the
// resource cache during build".
func (b *Builder) requestGlyphs(p *scene.Primitive) {
	indices := make([]uint32, len(p.Glyphs))
	for i, g := range p.Glyphs {
		indices[i] = g.Index
	}
	b.Resources.RequestGlyphs(p.Font, indices)
}

// resolve folds s's offset into its primitive's rects and resolves its
// clip-chain instance against the now-updated tree, decomposing tiled
// images into one BuiltPrimitive per tile (§4.3, §4.8). A primitive
// fully culled by its clip chain is dropped (the second return is
// false).
func (b *Builder) resolve(s staged) ([]BuiltPrimitive, bool) {
	p := s.prim
	localRect := p.LocalRect.Add(s.offset)
	localClipRect := p.LocalClipRect.Add(s.offset)

	if p.Kind == scene.KindImage {
		return b.resolveTiledImage(p, localRect, localClipRect, s.spatialNode)
	}

	instance, ok := b.Clips.BuildInstance(p.ClipChain, b.Tree, localRect, localClipRect, s.spatialNode, b.GPU)
	if !ok {
		return nil, false
	}
	out := *p
	out.LocalRect = localRect
	out.LocalClipRect = localClipRect
	return []BuiltPrimitive{{Source: out, WorldRect: instance.WorldClipRect, SpatialNode: s.spatialNode, Clip: instance}}, true
}

// resolveTiledImage decomposes an image primitive into one primitive
// per registered tile, positioning each tile within localRect by its
// fraction of the whole image (§4.3's tiling scheme, applied from the
// frame builder per §4.8).
func (b *Builder) resolveTiledImage(p *scene.Primitive, localRect, localClipRect geom.Rect, spatialNode spatial.NodeIndex) ([]BuiltPrimitive, bool) {
	tmpl, ok := b.Resources.ImageTemplate(p.Image)
	if !ok {
		return nil, false
	}

	cols, rows := tmpl.Tiles()
	if cols == 1 && rows == 1 {
		instance, ok := b.Clips.BuildInstance(p.ClipChain, b.Tree, localRect, localClipRect, spatialNode, b.GPU)
		if !ok {
			return nil, false
		}
		out := *p
		out.LocalRect = localRect
		out.LocalClipRect = localClipRect
		return []BuiltPrimitive{{Source: out, WorldRect: instance.WorldClipRect, SpatialNode: spatialNode, Clip: instance}}, true
	}

	full := tmpl.Descriptor.Size
	width, height := localRect.Dx(), localRect.Dy()
	var result []BuiltPrimitive
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tileRect := tmpl.TileRect(col, row)
			frac := geom.Rectangle(
				float32(tileRect.Min.X)/float32(full.X),
				float32(tileRect.Min.Y)/float32(full.Y),
				float32(tileRect.Max.X)/float32(full.X),
				float32(tileRect.Max.Y)/float32(full.Y),
			)
			tileLocal := geom.Rectangle(
				localRect.Min.X+frac.Min.X*width,
				localRect.Min.Y+frac.Min.Y*height,
				localRect.Min.X+frac.Max.X*width,
				localRect.Min.Y+frac.Max.Y*height,
			)
			if tileLocal.Intersect(localClipRect).Empty() {
				continue
			}
			instance, ok := b.Clips.BuildInstance(p.ClipChain, b.Tree, tileLocal, localClipRect, spatialNode, b.GPU)
			if !ok {
				continue
			}
			out := *p
			out.LocalRect = tileLocal
			out.LocalClipRect = localClipRect
			out.ImageTile = scene.ImageTile(col, row)
			result = append(result, BuiltPrimitive{Source: out, WorldRect: instance.WorldClipRect, SpatialNode: spatialNode, Clip: instance})
		}
	}
	return result, len(result) > 0
}
