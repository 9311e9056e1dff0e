// SPDX-License-Identifier: Unlicense OR MIT

// Package scene is the data model of §3: pipelines, epochs and display
// lists built from a flat list of primitives, each tagged with the
// spatial node and clip chain it's drawn under.
package scene

import (
	"compose2d.dev/clip"
	"compose2d.dev/geom"
	"compose2d.dev/spatial"
)

// PipelineID names one embedder-supplied display list (a document or
// iframe), matching §6's "(pipeline id, epoch)" payload key.
type PipelineID uint64

// Epoch versions a pipeline's display list; a payload is matched to its
// control message by (PipelineID, Epoch), per §5/§6.
type Epoch uint64

// PrimitiveKind discriminates the primitive variants named in §4.8.
type PrimitiveKind int

const (
	KindRect PrimitiveKind = iota
	KindImage
	KindTextRun
	KindGradient
	KindBorder
	KindBoxShadow
)

// GlyphInstance is one positioned glyph within a text-run primitive.
type GlyphInstance struct {
	Index  uint32
	Offset geom.Point
}

// FontInstanceID names a font instance registered with the resource
// cache (see package resource and package glyph).
type FontInstanceID uint32

// ImageKey names an image template registered with the resource cache.
type ImageKey uint32

// GradientStop is one color stop of a linear or radial gradient.
type GradientStop struct {
	Offset float32
	Color  [4]float32
}

// Primitive is one entry of a display list's flattened primitive list;
// every field outside Kind-specific data is common to all primitives per
// §3 ("a node in the clip-scroll tree carrying positioning and/or
// clipping information" applies equally to primitives via these two
// references).
type Primitive struct {
	Kind PrimitiveKind

	LocalRect     geom.Rect
	LocalClipRect geom.Rect
	SpatialNode   spatial.NodeIndex
	ClipChain     clip.ChainID

	Color [4]float32

	Image      ImageKey
	ImageTile  image2D

	Font   FontInstanceID
	Glyphs []GlyphInstance

	GradientStops     []GradientStop
	GradientStart     geom.Point
	GradientEnd       geom.Point

	BorderWidths [4]float32
	BorderRadii  [4]geom.Point

	BoxShadowBlurRadius float32
	BoxShadowSpreadRadius float32
	BoxShadowOffset       geom.Point
}

// image2D names one tile's coordinates within a tiled image (§4.3/§4.8).
type image2D struct {
	Column, Row int
}

// ImageTile returns a Primitive.ImageTile value for tile (col, row).
func ImageTile(col, row int) image2D { return image2D{Column: col, Row: row} }

// ScrollFrameDesc marks a stacking context as establishing a scroll
// frame (§3 "Scroll frame"): the frame builder allocates a
// spatial.AddScrollFrame node for it instead of folding its offset or
// allocating a plain reference frame. ID is the scroll-root id an
// embedder names in scroll-node-with-id/get-scroll-node-state API
// messages (§6); it's scoped to the owning pipeline.
type ScrollFrameDesc struct {
	ID             uint64
	ViewportRect   geom.Rect
	ScrollableSize geom.Point
	Sensitivity    spatial.ScrollSensitivity
}

// StackingContext groups a run of primitives under a shared transform
// and compositing behavior (§4.8). ScrollFrame, if set, causes the
// frame builder to allocate a scroll-frame node. Otherwise a non-nil
// Transform causes it to allocate a reference frame; absent both, its
// Offset is folded into the ambient reference-frame-relative offset.
type StackingContext struct {
	Offset      geom.Point
	Transform   *geom.Transform3D
	ScrollFrame *ScrollFrameDesc
	MixBlendMode string
	Opacity     float32

	Primitives []Primitive
	Children   []StackingContext
}

// WillMakeInvisible reports whether sc resolves to fully transparent and
// can be skipped entirely during frame building (§4.8).
func (sc *StackingContext) WillMakeInvisible() bool { return sc.Opacity <= 0 }

// DisplayList is one pipeline's content: a root stacking context plus
// any iframes it embeds.
type DisplayList struct {
	Pipeline PipelineID
	Epoch    Epoch
	Viewport geom.Rect
	Root     StackingContext
	Iframes  map[PipelineID]geom.Rect
}

// Scene is the backend's owned collection of display lists plus which
// pipeline currently roots the frame (§5 "owns the scene").
type Scene struct {
	Pipelines map[PipelineID]*DisplayList
	Root      PipelineID
}

func New() *Scene { return &Scene{Pipelines: map[PipelineID]*DisplayList{}} }

// SetDisplayList installs or replaces a pipeline's display list, per the
// "set display list" API message (§6).
func (s *Scene) SetDisplayList(dl *DisplayList) { s.Pipelines[dl.Pipeline] = dl }

// SetRootPipeline changes the scene's root, per the "set root pipeline"
// API message (§6).
func (s *Scene) SetRootPipeline(id PipelineID) { s.Root = id }
