// SPDX-License-Identifier: Unlicense OR MIT

package framebuilder

import (
	"image"
	"testing"

	"compose2d.dev/clip"
	"compose2d.dev/geom"
	"compose2d.dev/gpucache"
	"compose2d.dev/resource"
	"compose2d.dev/scene"
	"compose2d.dev/spatial"
)

func newTestBuilder() (*Builder, *spatial.Tree, *clip.Store, *resource.Cache, *gpucache.Cache) {
	tree := spatial.New()
	clips := clip.NewStore()
	clips.BeginFrame()
	res := resource.New(64)
	gpu := gpucache.New()
	gpu.BeginFrame()
	return New(tree, clips, res, gpu), tree, clips, res, gpu
}

func oneRectScene(rect scene.Primitive) *scene.Scene {
	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Epoch:    1,
		Root: scene.StackingContext{
			Opacity:    1,
			Primitives: []scene.Primitive{rect},
		},
	})
	s.SetRootPipeline(1)
	return s
}

func TestBuildSceneFoldsStackingContextOffsetIntoPrimitive(t *testing.T) {
	b, _, _, _, _ := newTestBuilder()
	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Root: scene.StackingContext{
			Opacity: 1,
			Offset:  geom.Point{X: 10, Y: 20},
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 5, 5), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	})
	s.SetRootPipeline(1)

	out := b.BuildScene(s)
	if len(out) != 1 {
		t.Fatalf("expected 1 built primitive, got %d", len(out))
	}
	got := out[0].Source.LocalRect
	want := geom.Rectangle(10, 20, 15, 25)
	if got != want {
		t.Errorf("expected offset folded into rect %v, got %v", want, got)
	}
}

func TestBuildSceneSkipsInvisibleStackingContext(t *testing.T) {
	b, _, _, _, _ := newTestBuilder()
	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Root: scene.StackingContext{
			Opacity: 0,
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 5, 5), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	})
	s.SetRootPipeline(1)

	out := b.BuildScene(s)
	if len(out) != 0 {
		t.Errorf("expected a zero-opacity stacking context to be skipped entirely, got %d primitives", len(out))
	}
}

func TestBuildSceneAllocatesReferenceFrameForTransform(t *testing.T) {
	b, tree, _, _, _ := newTestBuilder()
	before := len(tree.Nodes)

	xf := geom.Translate3D(3, 4, 0)
	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Root: scene.StackingContext{
			Opacity:   1,
			Transform: &xf,
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 5, 5), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	})
	s.SetRootPipeline(1)

	out := b.BuildScene(s)
	if len(tree.Nodes) != before+1 {
		t.Errorf("expected exactly one new reference frame node, tree grew from %d to %d", before, len(tree.Nodes))
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 built primitive, got %d", len(out))
	}
	if out[0].SpatialNode == spatial.Root {
		t.Error("expected the primitive to be reparented onto the new reference frame, not the root")
	}
}

func TestBuildSceneDecomposesTiledImageIntoTiles(t *testing.T) {
	b, _, _, res, _ := newTestBuilder()
	res.AddImageTemplate(1, resource.ImageDescriptor{Size: image.Pt(1024, 1024)}, nil, 512)

	s := oneRectScene(scene.Primitive{
		Kind:          scene.KindImage,
		Image:         1,
		LocalRect:     geom.Rectangle(0, 0, 1024, 1024),
		LocalClipRect: geom.MaxRect(),
		ClipChain:     clip.NoChain,
	})

	out := b.BuildScene(s)
	if len(out) != 4 {
		t.Fatalf("expected a 2x2 tile decomposition (4 primitives), got %d", len(out))
	}
}

func TestBuildSceneRequestsGlyphsForTextRuns(t *testing.T) {
	b, _, _, res, _ := newTestBuilder()
	s := oneRectScene(scene.Primitive{
		Kind:          scene.KindTextRun,
		Font:          7,
		Glyphs:        []scene.GlyphInstance{{Index: 1}, {Index: 2}, {Index: 2}},
		LocalRect:     geom.Rectangle(0, 0, 50, 20),
		LocalClipRect: geom.MaxRect(),
		ClipChain:     clip.NoChain,
	})

	b.BuildScene(s)
	pending := res.PendingGlyphs()[7]
	if len(pending) != 2 {
		t.Errorf("expected 2 deduped glyphs requested, got %d", len(pending))
	}
}

func TestBuildSceneCullsPrimitiveOutsideClipRect(t *testing.T) {
	b, _, clips, _, _ := newTestBuilder()
	chain := clips.PushChain(clip.NoChain, spatial.Root, clip.Item{Kind: clip.KindRect, LocalRect: geom.Rectangle(100, 100, 200, 200)})

	s := oneRectScene(scene.Primitive{
		Kind:          scene.KindRect,
		LocalRect:     geom.Rectangle(0, 0, 5, 5),
		LocalClipRect: geom.MaxRect(),
		ClipChain:     chain,
	})

	out := b.BuildScene(s)
	if len(out) != 0 {
		t.Errorf("expected a primitive entirely outside its clip rect to be culled, got %d", len(out))
	}
}

func TestBuildSceneAllocatesScrollFrameAndRecordsKey(t *testing.T) {
	b, tree, _, _, _ := newTestBuilder()
	before := len(tree.Nodes)

	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Root: scene.StackingContext{
			Opacity: 1,
			ScrollFrame: &scene.ScrollFrameDesc{
				ID:             42,
				ViewportRect:   geom.Rectangle(0, 0, 100, 100),
				ScrollableSize: geom.Point{X: 100, Y: 500},
			},
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 5, 5), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	})
	s.SetRootPipeline(1)

	b.BuildScene(s)
	if len(tree.Nodes) != before+1 {
		t.Fatalf("expected one new scroll frame node, tree grew from %d to %d", before, len(tree.Nodes))
	}
	node, ok := b.ScrollNodes[ScrollKey{Pipeline: 1, ID: 42}]
	if !ok {
		t.Fatal("expected the scroll frame to be registered under its key")
	}
	if tree.Node(node).Kind != spatial.KindScrollFrame {
		t.Errorf("expected the allocated node to be a scroll frame, got kind %v", tree.Node(node).Kind)
	}
}

func TestBuildSceneRecursesIntoIframe(t *testing.T) {
	b, tree, _, _, _ := newTestBuilder()
	before := len(tree.Nodes)

	s := scene.New()
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 1,
		Root:     scene.StackingContext{Opacity: 1},
		Iframes:  map[scene.PipelineID]geom.Rect{2: geom.Rectangle(100, 0, 300, 300)},
	})
	s.SetDisplayList(&scene.DisplayList{
		Pipeline: 2,
		Root: scene.StackingContext{
			Opacity: 1,
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 5, 5), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	})
	s.SetRootPipeline(1)

	out := b.BuildScene(s)
	if len(tree.Nodes) != before+1 {
		t.Errorf("expected one new reference frame for the iframe, tree grew from %d to %d", before, len(tree.Nodes))
	}
	if len(out) != 1 {
		t.Fatalf("expected the iframe's primitive to be built, got %d", len(out))
	}
	want := geom.Rectangle(100, 0, 105, 5)
	if got := out[0].WorldRect; got != want {
		t.Errorf("expected the iframe primitive's world rect translated by its bounds origin to %v, got %v", want, got)
	}
}
