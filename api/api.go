// SPDX-License-Identifier: Unlicense OR MIT

// Package api is the thin external message/notifier contract between an
// embedder and the compositor's render backend (§6). It deliberately
// carries no behavior of its own — every message is a plain data record
// the backend interprets.
package api

import (
	"image"

	"compose2d.dev/geom"
	"compose2d.dev/glyph"
	"compose2d.dev/resource"
	"compose2d.dev/scene"
)

// Message is one arrival-ordered API message (§6's message table).
type Message interface{ isMessage() }

// AddFontTemplate registers a new font template.
type AddFontTemplate struct {
	Font uint32
	Data []byte
}

// UpdateFontTemplate replaces a font template's bytes.
type UpdateFontTemplate struct {
	Font uint32
	Data []byte
}

// DeleteFontTemplate deletes a font, deferred to after resolve (§4.4
// "Cancellation").
type DeleteFontTemplate struct {
	Font uint32
}

// AddImageTemplate registers a new image, with optional explicit tiling.
type AddImageTemplate struct {
	Image    scene.ImageKey
	Desc     resource.ImageDescriptor
	Data     []byte
	TileSize int
}

// UpdateImageTemplate replaces image bytes within dirty, bumping the
// template's epoch.
type UpdateImageTemplate struct {
	Image scene.ImageKey
	Data  []byte
	Dirty image.Rectangle
}

// DeleteImageTemplate deletes a registered image.
type DeleteImageTemplate struct {
	Image scene.ImageKey
}

// SetDisplayList announces a pipeline's new display list. The matching
// payload (the actual primitive tree) arrives separately on the payload
// channel, keyed by (Pipeline, Epoch) (§5, §6).
type SetDisplayList struct {
	Pipeline           scene.PipelineID
	Epoch              scene.Epoch
	Viewport           geom.Rect
	ContentSize        geom.Point
	PreserveFrameState bool
}

// DisplayListPayload carries the actual built display list content for
// a (Pipeline, Epoch) pair a SetDisplayList message announced.
type DisplayListPayload struct {
	Pipeline scene.PipelineID
	Epoch    scene.Epoch
	List     *scene.DisplayList
}

// RegisterFontInstance associates a text run's font-instance id with
// the size/transform/rendering-mode tuple of §3's "Font instance",
// ahead of any text run that references it. Without this, request_glyphs
// (§4.4) has no transform or size to rasterize against.
type RegisterFontInstance struct {
	ID       scene.FontInstanceID
	Instance glyph.FontInstance
}

// SetRootPipeline changes which pipeline roots the scene.
type SetRootPipeline struct {
	Pipeline scene.PipelineID
}

// ScrollPhase distinguishes a scroll gesture's lifecycle, matching the
// phases a trackpad/wheel driver reports.
type ScrollPhase int

const (
	ScrollStarted ScrollPhase = iota
	ScrollMoved
	ScrollEnded
)

// Scroll finds the topmost scrollable node under Cursor and applies
// Delta to it; may trigger a frame if render_on_scroll is enabled.
type Scroll struct {
	Delta  geom.Point
	Cursor geom.Point
	Phase  ScrollPhase
}

// ScrollNodeWithID sets a specific scroll node's offset directly.
type ScrollNodeWithID struct {
	Pipeline scene.PipelineID
	NodeID   uint64
	Origin   geom.Point
	Clamp    bool
}

// TickScrollingBounce advances every active overscroll-bounce spring by
// one animation tick.
type TickScrollingBounce struct{}

// SetPageZoom updates the accumulated page-zoom scale.
type SetPageZoom struct{ Scale float32 }

// SetPinchZoom updates the accumulated pinch-zoom scale and its focal
// point.
type SetPinchZoom struct {
	Scale float32
	Focus geom.Point
}

// SetPan updates the accumulated pan offset.
type SetPan struct{ Offset geom.Point }

// SetWindowParameters updates the viewport size and device pixel ratio.
type SetWindowParameters struct {
	Size       image.Point
	DevicePixelRatio float32
}

// ScrollNodeState is one reply entry for GetScrollNodeState.
type ScrollNodeState struct {
	NodeID uint64
	Offset geom.Point
}

// GetScrollNodeState requests the current offsets of every scroll node
// in Pipeline; the backend replies on Reply.
type GetScrollNodeState struct {
	Pipeline scene.PipelineID
	Reply    chan<- []ScrollNodeState
}

// PropertyBinding overrides an animated property's value for the frame
// about to be generated.
type PropertyBinding struct {
	Key   uint64
	Value float32
}

// GenerateFrame asks the backend to rebuild the scene and build a frame,
// blocking until resource resolution completes
// (block_until_all_resources_added, §5). The backend rebuilds on every
// GenerateFrame and does not read Bindings.
type GenerateFrame struct {
	Bindings []PropertyBinding
}

// ExternalEvent carries an embedder-defined opaque payload forwarded to
// the notifier in arrival order.
type ExternalEvent struct {
	Payload any
}

// ShutDown terminates the backend loop.
type ShutDown struct{}

func (AddFontTemplate) isMessage()     {}
func (UpdateFontTemplate) isMessage()  {}
func (DeleteFontTemplate) isMessage()  {}
func (AddImageTemplate) isMessage()    {}
func (UpdateImageTemplate) isMessage() {}
func (DeleteImageTemplate) isMessage() {}
func (RegisterFontInstance) isMessage() {}
func (SetDisplayList) isMessage()      {}
func (SetRootPipeline) isMessage()     {}
func (Scroll) isMessage()              {}
func (ScrollNodeWithID) isMessage()    {}
func (TickScrollingBounce) isMessage() {}
func (SetPageZoom) isMessage()         {}
func (SetPinchZoom) isMessage()        {}
func (SetPan) isMessage()              {}
func (SetWindowParameters) isMessage() {}
func (GetScrollNodeState) isMessage()  {}
func (GenerateFrame) isMessage()       {}
func (ExternalEvent) isMessage()       {}
func (ShutDown) isMessage()            {}

// Notifier receives the embedder callbacks named in §6.
type Notifier interface {
	NewFrameReady()
	NewScrollFrameReady(compositeNeeded bool)
	ExternalEvent(payload any)
	ShutDown()
}

// Frame is a built frame published to the renderer, the unit the result
// channel carries (§5 "single-producer/single-consumer result channel
// carrying built frames").
type Frame struct {
	Pipeline   scene.PipelineID
	Epoch      scene.Epoch
	Primitives []BuiltPrimitive
}

// BuiltPrimitive mirrors framebuilder.BuiltPrimitive's shape without
// importing package framebuilder, so api stays a leaf dependency any
// backend package, embedder, or test can import without pulling in the
// whole compositor.
type BuiltPrimitive struct {
	Kind        scene.PrimitiveKind
	LocalRect   geom.Rect
	WorldRect   geom.Rect
	SpatialNode uint32
}
