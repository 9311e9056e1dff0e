// SPDX-License-Identifier: Unlicense OR MIT

package backend

import (
	"sync"
	"testing"
	"time"

	"compose2d.dev/api"
	"compose2d.dev/clip"
	"compose2d.dev/geom"
	"compose2d.dev/glyph"
	"compose2d.dev/resource"
	"compose2d.dev/scene"
)

// stubFace rasterizes a trivial opaque bitmap without touching a real
// font backend, mirroring package glyph's own countingFace test double.
type stubFace struct{}

func (stubFace) Rasterize(glyph.FontInstance, uint32) (glyph.Bitmap, error) {
	return glyph.Bitmap{Pix: []byte{255, 255, 255, 255}, Stride: 2, W: 2, H: 2}, nil
}

// stubNotifier records every callback it receives.
type stubNotifier struct {
	mu              sync.Mutex
	frameReady      int
	scrollFrame     int
	externalEvents  []any
	shutDowns       int
}

func (n *stubNotifier) NewFrameReady() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frameReady++
}

func (n *stubNotifier) NewScrollFrameReady(bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scrollFrame++
}

func (n *stubNotifier) ExternalEvent(payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.externalEvents = append(n.externalEvents, payload)
}

func (n *stubNotifier) ShutDown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shutDowns++
}

func newTestBackend() (*Backend, *stubNotifier) {
	notifier := &stubNotifier{}
	b := New(stubFace{}, notifier, Config{GlyphWorkers: 2, CachedImageCapacity: 16, MaxTextureDim: 2048, EvictOlderThanFrames: 10})
	b.Run()
	return b, notifier
}

func rectScene(pipeline scene.PipelineID, epoch scene.Epoch) *scene.DisplayList {
	return &scene.DisplayList{
		Pipeline: pipeline,
		Epoch:    epoch,
		Root: scene.StackingContext{
			Opacity: 1,
			Primitives: []scene.Primitive{
				{Kind: scene.KindRect, LocalRect: geom.Rectangle(0, 0, 10, 10), LocalClipRect: geom.MaxRect(), ClipChain: clip.NoChain},
			},
		},
	}
}

func waitFrame(t *testing.T, b *Backend) api.Frame {
	t.Helper()
	select {
	case f := <-b.Frames():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published frame")
		return api.Frame{}
	}
}

func TestGenerateFrameAfterMatchingDisplayListPublishesPrimitive(t *testing.T) {
	b, notifier := newTestBackend()
	defer b.Close()

	b.Submit(api.SetDisplayList{Pipeline: 1, Epoch: 1, Viewport: geom.Rectangle(0, 0, 800, 600)})
	b.SubmitPayload(api.DisplayListPayload{Pipeline: 1, Epoch: 1, List: rectScene(1, 1)})
	b.Submit(api.SetRootPipeline{Pipeline: 1})
	b.Submit(api.GenerateFrame{})

	frame := waitFrame(t, b)
	if len(frame.Primitives) != 1 {
		t.Fatalf("expected 1 built primitive, got %d", len(frame.Primitives))
	}
	if notifier.frameReady != 1 {
		t.Errorf("expected NewFrameReady called once, got %d", notifier.frameReady)
	}
}

func TestSetDisplayListPayloadArrivingFirstIsHeldUntilControlArrives(t *testing.T) {
	b, _ := newTestBackend()
	defer b.Close()

	b.SubmitPayload(api.DisplayListPayload{Pipeline: 2, Epoch: 1, List: rectScene(2, 1)})
	b.Submit(api.SetDisplayList{Pipeline: 2, Epoch: 1, Viewport: geom.MaxRect()})
	b.Submit(api.SetRootPipeline{Pipeline: 2})
	b.Submit(api.GenerateFrame{})

	frame := waitFrame(t, b)
	if len(frame.Primitives) != 1 {
		t.Fatalf("expected the held payload to be applied once its control message arrived, got %d primitives", len(frame.Primitives))
	}
}

func TestScrollWithoutRenderOnScrollDoesNotPublishAFrame(t *testing.T) {
	b, notifier := newTestBackend()
	defer b.Close()

	b.Submit(api.SetDisplayList{Pipeline: 1, Epoch: 1, Viewport: geom.MaxRect()})
	b.SubmitPayload(api.DisplayListPayload{Pipeline: 1, Epoch: 1, List: rectScene(1, 1)})
	b.Submit(api.SetRootPipeline{Pipeline: 1})
	b.Submit(api.GenerateFrame{})
	waitFrame(t, b)

	b.Submit(api.Scroll{Delta: geom.Point{Y: -10}, Cursor: geom.Point{X: 5, Y: 5}})

	select {
	case <-b.Frames():
		t.Fatal("expected no frame from a scroll when render_on_scroll is disabled")
	case <-time.After(100 * time.Millisecond):
	}
	if notifier.scrollFrame != 0 {
		// No scroll frame under the cursor exists in this scene (no
		// scroll-frame stacking context), so the notifier shouldn't
		// fire at all.
		t.Errorf("expected no scroll-frame hit, got %d NewScrollFrameReady calls", notifier.scrollFrame)
	}
}

func TestGetScrollNodeStateReturnsRegisteredOffsets(t *testing.T) {
	b, _ := newTestBackend()
	defer b.Close()

	dl := &scene.DisplayList{
		Pipeline: 1,
		Epoch:    1,
		Root: scene.StackingContext{
			Opacity: 1,
			ScrollFrame: &scene.ScrollFrameDesc{
				ID:             7,
				ViewportRect:   geom.Rectangle(0, 0, 100, 100),
				ScrollableSize: geom.Point{X: 100, Y: 400},
			},
		},
	}
	b.Submit(api.SetDisplayList{Pipeline: 1, Epoch: 1, Viewport: geom.MaxRect()})
	b.SubmitPayload(api.DisplayListPayload{Pipeline: 1, Epoch: 1, List: dl})
	b.Submit(api.SetRootPipeline{Pipeline: 1})
	b.Submit(api.GenerateFrame{})
	waitFrame(t, b)

	b.Submit(api.ScrollNodeWithID{Pipeline: 1, NodeID: 7, Origin: geom.Point{X: 0, Y: 50}, Clamp: true})

	reply := make(chan []api.ScrollNodeState, 1)
	b.Submit(api.GetScrollNodeState{Pipeline: 1, Reply: reply})

	select {
	case states := <-reply:
		if len(states) != 1 {
			t.Fatalf("expected 1 scroll node, got %d", len(states))
		}
		if states[0].Offset.Y != -50 {
			t.Errorf("expected scroll offset y=-50, got %v", states[0].Offset)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GetScrollNodeState reply")
	}
}

func TestShutDownStopsTheLoopAndNotifies(t *testing.T) {
	b, notifier := newTestBackend()
	b.Submit(api.ShutDown{})
	<-b.stopped
	if notifier.shutDowns != 1 {
		t.Errorf("expected ShutDown notified once, got %d", notifier.shutDowns)
	}
}

func TestExternalEventIsForwardedInOrder(t *testing.T) {
	b, notifier := newTestBackend()
	defer b.Close()

	b.Submit(api.ExternalEvent{Payload: "one"})
	b.Submit(api.ExternalEvent{Payload: "two"})

	deadline := time.Now().Add(time.Second)
	for {
		notifier.mu.Lock()
		n := len(notifier.externalEvents)
		notifier.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 external events forwarded, got %d", n)
		}
		time.Sleep(time.Millisecond)
	}
	if notifier.externalEvents[0] != "one" || notifier.externalEvents[1] != "two" {
		t.Errorf("expected events forwarded in arrival order, got %v", notifier.externalEvents)
	}
}

func TestAddFontTemplateIsVisibleToLaterGlyphRequests(t *testing.T) {
	b, _ := newTestBackend()
	defer b.Close()

	b.Submit(api.AddFontTemplate{Font: 1, Data: []byte("font-bytes")})

	// GetScrollNodeState's reply is only sent after the backend
	// goroutine finishes handling every message submitted before it,
	// so receiving it establishes a happens-before relationship with
	// the AddFontTemplate call above without racing on b.resources.
	reply := make(chan []api.ScrollNodeState, 1)
	b.Submit(api.GetScrollNodeState{Pipeline: 1, Reply: reply})
	<-reply

	if _, ok := b.resources.FontTemplate(1); !ok {
		t.Error("expected the font template to be added before the barrier message was handled")
	}
}
