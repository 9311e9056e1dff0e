// SPDX-License-Identifier: Unlicense OR MIT

// Package backend is the single-threaded render backend of §5: it owns
// the scene, the clip-scroll tree, the clip store and every cache, and
// drains a channel of arrival-ordered API messages (§6), publishing
// built frames to a result channel the render thread consumes. The
// channel layout is grounded on the teacher's app/loop.go renderLoop:
// a dedicated goroutine holding every mutable owned resource, driven by
// a select over typed channels, with runtime.LockOSThread() pinning it
// the way the teacher pins its GL thread — here because §5 requires the
// backend's caches to have exactly one owning thread, not because of a
// GL context.
package backend

import (
	"context"
	"image"
	"runtime"

	"compose2d.dev/api"
	"compose2d.dev/clip"
	"compose2d.dev/framebuilder"
	"compose2d.dev/geom"
	"compose2d.dev/glyph"
	"compose2d.dev/gpucache"
	"compose2d.dev/internal/xlog"
	"compose2d.dev/resource"
	"compose2d.dev/scene"
	"compose2d.dev/spatial"
	"compose2d.dev/texturecache"
)

var log = xlog.For("backend")

// dlKey matches a set-display-list control message to its payload,
// per §5/§6.
type dlKey struct {
	Pipeline scene.PipelineID
	Epoch    scene.Epoch
}

// Backend is the render backend: the sole owner of every package built
// earlier in this repo, reachable only through its message channels
// once Run starts (§5 "owns the scene, the clip-scroll tree, the
// resource cache, and all caches").
type Backend struct {
	cfg      Config
	notifier api.Notifier

	scene      *scene.Scene
	builder    *framebuilder.Builder
	resources  *resource.Cache
	gpu        *gpucache.Cache
	textures   *texturecache.Cache
	rasterizer *glyph.Rasterizer

	fontInstances  map[scene.FontInstanceID]glyph.FontInstance
	scrollOffsets  map[framebuilder.ScrollKey]geom.Point
	pendingControl map[dlKey]api.SetDisplayList
	pendingPayload map[dlKey]api.DisplayListPayload

	hasGeneratedFrame bool
	pageZoom          float32
	pinchZoom         float32
	pinchFocus        geom.Point
	pan               geom.Point

	messages chan api.Message
	payloads chan api.DisplayListPayload
	frames   chan api.Frame
	stop     chan struct{}
	stopped  chan struct{}
}

// New constructs a Backend. face rasterizes glyphs (production code
// wires github.com/go-text/typesetting behind it, see package glyph);
// notifier receives the §6 embedder callbacks. Run must be called to
// start draining messages.
func New(face glyph.Face, notifier api.Notifier, cfg Config, opts ...Option) *Backend {
	for _, opt := range opts {
		opt(&cfg)
	}

	rasterizer := glyph.NewRasterizer(face, cfg.GlyphWorkers)
	if cfg.DedicatedGlyphThread {
		rasterizer = glyph.NewDedicatedRasterizer(face)
	}

	resources := resource.New(cfg.CachedImageCapacity)
	gpu := gpucache.New()
	clips := clip.NewStore()
	tree := spatial.New()
	builder := framebuilder.New(tree, clips, resources, gpu)

	return &Backend{
		cfg:            cfg,
		notifier:       notifier,
		scene:          scene.New(),
		builder:        builder,
		resources:      resources,
		gpu:            gpu,
		textures:       texturecache.New(cfg.MaxTextureDim),
		rasterizer:     rasterizer,
		fontInstances:  map[scene.FontInstanceID]glyph.FontInstance{},
		scrollOffsets:  map[framebuilder.ScrollKey]geom.Point{},
		pendingControl: map[dlKey]api.SetDisplayList{},
		pendingPayload: map[dlKey]api.DisplayListPayload{},
		pageZoom:       1,
		pinchZoom:      1,
		messages:       make(chan api.Message),
		payloads:       make(chan api.DisplayListPayload),
		frames:         make(chan api.Frame, 1),
		stop:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

// Run starts the backend's single dedicated goroutine. It returns
// immediately; the goroutine runs until Close (or a ShutDown message).
func (b *Backend) Run() {
	go func() {
		defer close(b.stopped)
		runtime.LockOSThread()
		log.Info("backend loop started")
		for {
			select {
			case msg := <-b.messages:
				if _, done := msg.(api.ShutDown); done {
					b.rasterizer.Close()
					b.notifier.ShutDown()
					log.Info("backend loop stopped", "reason", "shut_down message")
					return
				}
				b.handle(msg)
			case p := <-b.payloads:
				b.handlePayload(p)
			case <-b.stop:
				b.rasterizer.Close()
				log.Info("backend loop stopped", "reason", "Close")
				return
			}
		}
	}()
}

// Submit enqueues an API message, processed strictly in arrival order
// (§5). It blocks until the backend goroutine accepts it.
func (b *Backend) Submit(msg api.Message) { b.messages <- msg }

// SubmitPayload delivers a display-list payload on its own channel, per
// §5/§6.
func (b *Backend) SubmitPayload(p api.DisplayListPayload) { b.payloads <- p }

// Frames returns the single-producer/single-consumer channel built
// frames are published on (§5).
func (b *Backend) Frames() <-chan api.Frame { return b.frames }

// Close stops the backend goroutine without going through a ShutDown
// message (e.g. for a caller that owns shutdown outside the message
// protocol, such as a test).
func (b *Backend) Close() {
	close(b.stop)
	<-b.stopped
}

func (b *Backend) handle(msg api.Message) {
	switch m := msg.(type) {
	case api.AddFontTemplate:
		b.resources.AddFontTemplate(m.Font, m.Data)
	case api.UpdateFontTemplate:
		b.resources.UpdateFontTemplate(m.Font, m.Data)
	case api.DeleteFontTemplate:
		b.resources.DeferFontDeletion(m.Font)
	case api.AddImageTemplate:
		b.resources.AddImageTemplate(m.Image, m.Desc, m.Data, m.TileSize)
	case api.UpdateImageTemplate:
		b.resources.UpdateImageTemplate(m.Image, m.Data, m.Dirty)
	case api.DeleteImageTemplate:
		b.resources.DeleteImageTemplate(m.Image)
	case api.RegisterFontInstance:
		b.fontInstances[m.ID] = m.Instance
	case api.SetDisplayList:
		b.onSetDisplayList(m)
	case api.SetRootPipeline:
		b.scene.SetRootPipeline(m.Pipeline)
	case api.Scroll:
		b.onScroll(m)
	case api.ScrollNodeWithID:
		b.onScrollNodeWithID(m)
	case api.TickScrollingBounce:
		b.builder.Tree.TickScrollingBounceAnimation()
	case api.SetPageZoom:
		b.pageZoom = m.Scale
	case api.SetPinchZoom:
		b.pinchZoom = m.Scale
		b.pinchFocus = m.Focus
	case api.SetPan:
		b.pan = m.Offset
	case api.SetWindowParameters:
		// Device pixel ratio and window size are accepted and ignored:
		// this backend neither stores nor acts on them.
	case api.GetScrollNodeState:
		b.onGetScrollNodeState(m)
	case api.GenerateFrame:
		b.onGenerateFrame(m)
	case api.ExternalEvent:
		b.notifier.ExternalEvent(m.Payload)
	}
}

// handlePayload matches p to a waiting set-display-list control
// message by (pipeline, epoch); a payload that arrives first is held
// until its control message catches up (§5/§7 "loop until the matching
// payload arrives").
func (b *Backend) handlePayload(p api.DisplayListPayload) {
	key := dlKey{Pipeline: p.Pipeline, Epoch: p.Epoch}
	if ctrl, ok := b.pendingControl[key]; ok {
		delete(b.pendingControl, key)
		b.applyDisplayList(ctrl, p)
		return
	}
	b.pendingPayload[key] = p
}

func (b *Backend) onSetDisplayList(m api.SetDisplayList) {
	key := dlKey{Pipeline: m.Pipeline, Epoch: m.Epoch}
	if payload, ok := b.pendingPayload[key]; ok {
		delete(b.pendingPayload, key)
		b.applyDisplayList(m, payload)
		return
	}
	b.pendingControl[key] = m
}

func (b *Backend) applyDisplayList(ctrl api.SetDisplayList, payload api.DisplayListPayload) {
	dl := payload.List
	dl.Viewport = ctrl.Viewport
	b.scene.SetDisplayList(dl)
	if !ctrl.PreserveFrameState {
		for key := range b.scrollOffsets {
			if key.Pipeline == ctrl.Pipeline {
				delete(b.scrollOffsets, key)
			}
		}
	}
}

// onScroll finds the topmost scrollable node under cursor and applies
// delta to it (§6). Scroll-only messages only build a new frame if
// render_on_scroll was enabled by a preceding generate-frame (§5).
func (b *Backend) onScroll(m api.Scroll) {
	idx, ok := b.hitTestScrollFrame(m.Cursor)
	if !ok {
		return
	}
	b.builder.Tree.Scroll(idx, m.Delta)
	b.notifier.NewScrollFrameReady(true)
	if b.cfg.RenderOnScroll && b.hasGeneratedFrame {
		b.publishFrame()
	}
}

func (b *Backend) onScrollNodeWithID(m api.ScrollNodeWithID) {
	key := framebuilder.ScrollKey{Pipeline: m.Pipeline, ID: m.NodeID}
	idx, ok := b.builder.ScrollNodes[key]
	if !ok {
		return
	}
	if m.Clamp {
		b.builder.Tree.SetScrollOrigin(idx, m.Origin)
	} else {
		b.builder.Tree.Node(idx).Scroll.Offset = m.Origin.Mul(-1)
	}
	b.scrollOffsets[key] = b.builder.Tree.Node(idx).Scroll.Offset
}

func (b *Backend) onGetScrollNodeState(m api.GetScrollNodeState) {
	var states []api.ScrollNodeState
	for key, idx := range b.builder.ScrollNodes {
		if key.Pipeline != m.Pipeline {
			continue
		}
		states = append(states, api.ScrollNodeState{NodeID: key.ID, Offset: b.builder.Tree.Node(idx).Scroll.Offset})
	}
	m.Reply <- states
}

// onGenerateFrame rebuilds the scene, then builds and publishes a frame,
// blocking on resource resolution (block_until_all_resources_added, §5).
// Every generate-frame message rebuilds, whether or not Bindings is
// empty. This implementation's scene model has no animated-property
// binding table, so Bindings is not read (see DESIGN.md).
func (b *Backend) onGenerateFrame(m api.GenerateFrame) {
	b.publishFrame()
	b.hasGeneratedFrame = true
}

// publishFrame rebuilds the scene from scratch (tree and clip store
// included, carrying scroll offsets over by ScrollKey), resolves all
// pending glyph and image requests, and sends the result on Frames().
// Rebuilding unconditionally rather than diffing against the previous
// frame is simpler and always correct, at the cost of redoing work a
// production backend would skip when nothing changed; see DESIGN.md.
func (b *Backend) publishFrame() {
	for key, idx := range b.builder.ScrollNodes {
		b.scrollOffsets[key] = b.builder.Tree.Node(idx).Scroll.Offset
	}

	b.builder.Tree = spatial.New()
	b.builder.Clips = clip.NewStore()
	b.builder.Clips.BeginFrame()
	b.gpu.BeginFrame()
	b.textures.BeginFrame()
	b.resources.BeginFrame()

	built := b.builder.BuildSceneWithScrollRestore(b.scene, b.scrollOffsets)

	b.resolveResources()
	b.resources.ApplyDeferredFontDeletions()
	b.textures.EvictOlderThan(b.cfg.EvictOlderThanFrames)

	out := make([]api.BuiltPrimitive, len(built))
	for i, p := range built {
		out[i] = api.BuiltPrimitive{
			Kind:        p.Source.Kind,
			LocalRect:   p.Source.LocalRect,
			WorldRect:   p.WorldRect,
			SpatialNode: uint32(p.SpatialNode),
		}
	}

	b.frames <- api.Frame{Pipeline: b.scene.Root, Primitives: out}
	b.notifier.NewFrameReady()
}

// resolveResources rasterizes every pending glyph, allocates texture-
// cache space for each rasterized bitmap, and marks every pending image
// uploaded: the block_until_all_resources_added barrier of §5. A font
// instance with no RegisterFontInstance on file is skipped (resource-
// not-found is non-fatal, §7). Rasterized pixels aren't actually copied
// into the allocated texture-cache item — there's no GPU/renderer
// thread in this repo to receive them — so this only exercises the
// cache's allocation bookkeeping, not a real upload; see DESIGN.md.
func (b *Backend) resolveResources() {
	for font, indices := range b.resources.PendingGlyphs() {
		instance, ok := b.fontInstances[font]
		if !ok {
			continue
		}
		keys := make([]glyph.Key, len(indices))
		for i, g := range indices {
			keys[i] = glyph.Key{GlyphIndex: g}
		}
		b.rasterizer.Request(instance, keys)
	}
	results, err := b.rasterizer.Resolve(context.Background())
	if err != nil {
		log.Warn("glyph resolve failed", "error", err)
	} else {
		for _, res := range results {
			if res.Err != nil || res.Bitmap.W == 0 || res.Bitmap.H == 0 {
				continue
			}
			b.textures.Alloc(image.Pt(res.Bitmap.W, res.Bitmap.H), false)
		}
	}

	for _, key := range b.resources.PendingImages() {
		b.resources.MarkImageUploaded(key)
	}
}

// hitTestScrollFrame approximates §6's "finds the topmost scrollable
// node under cursor": every scroll-frame node's viewport is projected
// to world space and tested for cursor containment, and the last match
// wins. Tree.Nodes has no explicit z-order, so "last match in traversal
// order" stands in for "topmost in paint order" — good enough absent
// overlapping scroll frames, a simplification worth revisiting if
// nested overlapping scrollers become a real scenario (see DESIGN.md).
func (b *Backend) hitTestScrollFrame(cursor geom.Point) (spatial.NodeIndex, bool) {
	tree := b.builder.Tree
	found := spatial.NodeIndex(0)
	ok := false
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.Kind != spatial.KindScrollFrame {
			continue
		}
		world, projectOK := geom.ProjectRect(n.WorldViewportTransform, n.LocalViewportRect)
		if !projectOK || !world.ContainsPt(cursor) {
			continue
		}
		found = spatial.NodeIndex(i)
		ok = true
	}
	return found, ok
}
