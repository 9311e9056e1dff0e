// SPDX-License-Identifier: Unlicense OR MIT

// Package capture implements the directory-based capture/replay format
// named in §6: a sequence of YAML frame files, each carrying a full
// display list plus the resource additions since the last capture.
//
// The wire types in this file deliberately mirror package scene's shapes
// rather than tagging scene's own types for YAML, the way wrench's
// yaml_frame_writer.rs builds a separate Yaml table from the live scene
// graph instead of annotating webrender's internal structs: capture is
// a format concern, not something the hot display-list path should carry
// struct tags for.
package capture

import (
	"compose2d.dev/clip"
	"compose2d.dev/geom"
	"compose2d.dev/scene"
	"compose2d.dev/spatial"
)

// Point is geom.Point's YAML-friendly twin.
type Point struct {
	X, Y float32
}

func pointToWire(p geom.Point) Point      { return Point{X: p.X, Y: p.Y} }
func (p Point) toGeom() geom.Point        { return geom.Point{X: p.X, Y: p.Y} }

// Rect is geom.Rect's YAML-friendly twin.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

func rectToWire(r geom.Rect) Rect {
	return Rect{MinX: r.Min.X, MinY: r.Min.Y, MaxX: r.Max.X, MaxY: r.Max.Y}
}

func (r Rect) toGeom() geom.Rect {
	return geom.Rectangle(r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// Transform is geom.Transform3D's YAML-friendly twin: its row-major
// matrix, flattened so yaml.v3 doesn't need to round-trip a [4][4]
// array through an interface.
type Transform struct {
	Rows [16]float32
}

func transformToWire(t geom.Transform3D) Transform {
	rows := t.Rows()
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out.Rows[i*4+j] = rows[i][j]
		}
	}
	return out
}

func (t Transform) toGeom() geom.Transform3D {
	var rows [4][4]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = t.Rows[i*4+j]
		}
	}
	return geom.Transform3DFromRows(rows)
}

// GlyphInstance mirrors scene.GlyphInstance.
type GlyphInstance struct {
	Index  uint32
	Offset Point
}

// GradientStop mirrors scene.GradientStop.
type GradientStop struct {
	Offset float32
	Color  [4]float32
}

// ImageTile names a tiled image primitive's tile coordinates.
type ImageTile struct {
	Column, Row int
}

// Primitive mirrors scene.Primitive.
type Primitive struct {
	Kind scene.PrimitiveKind

	LocalRect     Rect
	LocalClipRect Rect
	SpatialNode   spatial.NodeIndex
	ClipChain     clip.ChainID

	Color [4]float32

	Image     scene.ImageKey    `yaml:"image,omitempty"`
	ImageTile ImageTile         `yaml:"image_tile,omitempty"`

	Font   scene.FontInstanceID `yaml:"font,omitempty"`
	Glyphs []GlyphInstance      `yaml:"glyphs,omitempty"`

	GradientStops []GradientStop `yaml:"gradient_stops,omitempty"`
	GradientStart Point          `yaml:"gradient_start,omitempty"`
	GradientEnd   Point          `yaml:"gradient_end,omitempty"`

	BorderWidths [4]float32 `yaml:"border_widths,omitempty"`
	BorderRadii  [4]Point   `yaml:"border_radii,omitempty"`

	BoxShadowBlurRadius   float32 `yaml:"box_shadow_blur_radius,omitempty"`
	BoxShadowSpreadRadius float32 `yaml:"box_shadow_spread_radius,omitempty"`
	BoxShadowOffset       Point   `yaml:"box_shadow_offset,omitempty"`
}

func primitiveToWire(p *scene.Primitive) Primitive {
	radii := [4]Point{}
	for i, r := range p.BorderRadii {
		radii[i] = pointToWire(r)
	}
	glyphs := make([]GlyphInstance, len(p.Glyphs))
	for i, g := range p.Glyphs {
		glyphs[i] = GlyphInstance{Index: g.Index, Offset: pointToWire(g.Offset)}
	}
	stops := make([]GradientStop, len(p.GradientStops))
	for i, s := range p.GradientStops {
		stops[i] = GradientStop{Offset: s.Offset, Color: s.Color}
	}
	return Primitive{
		Kind:                  p.Kind,
		LocalRect:             rectToWire(p.LocalRect),
		LocalClipRect:         rectToWire(p.LocalClipRect),
		SpatialNode:           p.SpatialNode,
		ClipChain:             p.ClipChain,
		Color:                 p.Color,
		Image:                 p.Image,
		ImageTile:             ImageTile{Column: p.ImageTile.Column, Row: p.ImageTile.Row},
		Font:                  p.Font,
		Glyphs:                glyphs,
		GradientStops:         stops,
		GradientStart:         pointToWire(p.GradientStart),
		GradientEnd:           pointToWire(p.GradientEnd),
		BorderWidths:          p.BorderWidths,
		BorderRadii:           radii,
		BoxShadowBlurRadius:   p.BoxShadowBlurRadius,
		BoxShadowSpreadRadius: p.BoxShadowSpreadRadius,
		BoxShadowOffset:       pointToWire(p.BoxShadowOffset),
	}
}

func (p Primitive) toScene() scene.Primitive {
	radii := [4]geom.Point{}
	for i, r := range p.BorderRadii {
		radii[i] = r.toGeom()
	}
	glyphs := make([]scene.GlyphInstance, len(p.Glyphs))
	for i, g := range p.Glyphs {
		glyphs[i] = scene.GlyphInstance{Index: g.Index, Offset: g.Offset.toGeom()}
	}
	stops := make([]scene.GradientStop, len(p.GradientStops))
	for i, s := range p.GradientStops {
		stops[i] = scene.GradientStop{Offset: s.Offset, Color: s.Color}
	}
	return scene.Primitive{
		Kind:                  p.Kind,
		LocalRect:             p.LocalRect.toGeom(),
		LocalClipRect:         p.LocalClipRect.toGeom(),
		SpatialNode:           p.SpatialNode,
		ClipChain:             p.ClipChain,
		Color:                 p.Color,
		Image:                 p.Image,
		ImageTile:             scene.ImageTile(p.ImageTile.Column, p.ImageTile.Row),
		Font:                  p.Font,
		Glyphs:                glyphs,
		GradientStops:         stops,
		GradientStart:         p.GradientStart.toGeom(),
		GradientEnd:           p.GradientEnd.toGeom(),
		BorderWidths:          p.BorderWidths,
		BorderRadii:           radii,
		BoxShadowBlurRadius:   p.BoxShadowBlurRadius,
		BoxShadowSpreadRadius: p.BoxShadowSpreadRadius,
		BoxShadowOffset:       p.BoxShadowOffset.toGeom(),
	}
}

// ScrollFrame mirrors scene.ScrollFrameDesc.
type ScrollFrame struct {
	ID             uint64
	ViewportRect   Rect
	ScrollableSize Point
	Sensitivity    spatial.ScrollSensitivity
}

// StackingContext mirrors scene.StackingContext.
type StackingContext struct {
	Offset       Point
	Transform    *Transform `yaml:"transform,omitempty"`
	ScrollFrame  *ScrollFrame `yaml:"scroll_frame,omitempty"`
	MixBlendMode string       `yaml:"mix_blend_mode,omitempty"`
	Opacity      float32

	Primitives []Primitive       `yaml:"primitives,omitempty"`
	Children   []StackingContext `yaml:"children,omitempty"`
}

func stackingContextToWire(sc *scene.StackingContext) StackingContext {
	prims := make([]Primitive, len(sc.Primitives))
	for i := range sc.Primitives {
		prims[i] = primitiveToWire(&sc.Primitives[i])
	}
	children := make([]StackingContext, len(sc.Children))
	for i := range sc.Children {
		children[i] = stackingContextToWire(&sc.Children[i])
	}
	out := StackingContext{
		Offset:       pointToWire(sc.Offset),
		MixBlendMode: sc.MixBlendMode,
		Opacity:      sc.Opacity,
		Primitives:   prims,
		Children:     children,
	}
	if sc.Transform != nil {
		t := transformToWire(*sc.Transform)
		out.Transform = &t
	}
	if sc.ScrollFrame != nil {
		out.ScrollFrame = &ScrollFrame{
			ID:             sc.ScrollFrame.ID,
			ViewportRect:   rectToWire(sc.ScrollFrame.ViewportRect),
			ScrollableSize: pointToWire(sc.ScrollFrame.ScrollableSize),
			Sensitivity:    sc.ScrollFrame.Sensitivity,
		}
	}
	return out
}

func (sc StackingContext) toScene() scene.StackingContext {
	prims := make([]scene.Primitive, len(sc.Primitives))
	for i, p := range sc.Primitives {
		prims[i] = p.toScene()
	}
	children := make([]scene.StackingContext, len(sc.Children))
	for i, c := range sc.Children {
		children[i] = c.toScene()
	}
	out := scene.StackingContext{
		Offset:       sc.Offset.toGeom(),
		MixBlendMode: sc.MixBlendMode,
		Opacity:      sc.Opacity,
		Primitives:   prims,
		Children:     children,
	}
	if sc.Transform != nil {
		t := sc.Transform.toGeom()
		out.Transform = &t
	}
	if sc.ScrollFrame != nil {
		out.ScrollFrame = &scene.ScrollFrameDesc{
			ID:             sc.ScrollFrame.ID,
			ViewportRect:   sc.ScrollFrame.ViewportRect.toGeom(),
			ScrollableSize: sc.ScrollFrame.ScrollableSize.toGeom(),
			Sensitivity:    sc.ScrollFrame.Sensitivity,
		}
	}
	return out
}

// Iframe names one embedded pipeline's bounds within a parent display
// list, mirroring scene.DisplayList.Iframes.
type Iframe struct {
	Pipeline scene.PipelineID
	Bounds   Rect
}
