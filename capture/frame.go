// SPDX-License-Identifier: Unlicense OR MIT

package capture

import (
	"compose2d.dev/geom"
	"compose2d.dev/scene"
)

// FontResource is a captured font template, written the first time its
// key (or a new epoch of it) is seen.
type FontResource struct {
	Data  []byte
	Epoch uint64
}

// ImageResource is a captured image template.
type ImageResource struct {
	Width, Height int
	Format        string
	TileSize      int `yaml:"tile_size,omitempty"`
	Epoch         uint64
	Data          []byte
}

// ResourceDelta carries the resource additions since the last capture
// (§6: "each frame carries a full display list plus the resource
// additions since the last capture").
type ResourceDelta struct {
	Fonts  map[uint32]FontResource          `yaml:"fonts,omitempty"`
	Images map[scene.ImageKey]ImageResource `yaml:"images,omitempty"`
}

func (d ResourceDelta) empty() bool {
	return len(d.Fonts) == 0 && len(d.Images) == 0
}

// Frame is one captured frame: a pipeline's full display list, plus
// whatever resources hadn't already been captured as of the previous
// frame.
type Frame struct {
	Number    int
	Pipeline  scene.PipelineID
	Epoch     scene.Epoch
	Viewport  Rect
	Root      StackingContext
	Iframes   []Iframe        `yaml:"iframes,omitempty"`
	Resources ResourceDelta   `yaml:"resources,omitempty"`
}

// ToFrame converts dl into its wire representation. number and
// resources are filled in by the caller (Recorder.Capture fills both;
// a direct caller building a frame by hand can leave Resources zero).
func ToFrame(dl *scene.DisplayList) Frame {
	iframes := make([]Iframe, 0, len(dl.Iframes))
	for pipeline, bounds := range dl.Iframes {
		iframes = append(iframes, Iframe{Pipeline: pipeline, Bounds: rectToWire(bounds)})
	}
	return Frame{
		Pipeline: dl.Pipeline,
		Epoch:    dl.Epoch,
		Viewport: rectToWire(dl.Viewport),
		Root:     stackingContextToWire(&dl.Root),
		Iframes:  iframes,
	}
}

// DisplayList reconstructs the scene.DisplayList f captured.
func (f Frame) DisplayList() *scene.DisplayList {
	out := &scene.DisplayList{
		Pipeline: f.Pipeline,
		Epoch:    f.Epoch,
		Viewport: f.Viewport.toGeom(),
		Root:     f.Root.toScene(),
	}
	if len(f.Iframes) > 0 {
		out.Iframes = make(map[scene.PipelineID]geom.Rect, len(f.Iframes))
		for _, i := range f.Iframes {
			out.Iframes[i.Pipeline] = i.Bounds.toGeom()
		}
	}
	return out
}
