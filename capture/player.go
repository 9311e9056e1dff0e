// SPDX-License-Identifier: Unlicense OR MIT

package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"compose2d.dev/resource"
	"compose2d.dev/scene"
	"gopkg.in/yaml.v3"
)

// Player reads a capture directory written by Recorder back into a
// sequence of display lists, applying each frame's resource additions
// to a resource.Cache before handing back its display list — the
// counterpart to wrench's yaml_frame_reader.
type Player struct {
	resources *resource.Cache
	paths     []string
	index     int
}

// NewPlayer opens dir, reading its frame-NNNN.yaml files in numeric
// order. Resources are applied to resources as each frame is consumed.
func NewPlayer(dir string, resources *resource.Cache) (*Player, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("capture: read directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return &Player{resources: resources, paths: paths}, nil
}

// Len reports the number of frames in the capture.
func (p *Player) Len() int { return len(p.paths) }

// Next reads the next frame, applies its resource additions, and
// returns its display list. It reports false once every frame has been
// consumed.
func (p *Player) Next() (*scene.DisplayList, bool, error) {
	if p.index >= len(p.paths) {
		return nil, false, nil
	}
	data, err := os.ReadFile(p.paths[p.index])
	if err != nil {
		return nil, false, fmt.Errorf("capture: read frame %d: %w", p.index, err)
	}
	var frame Frame
	if err := yaml.Unmarshal(data, &frame); err != nil {
		return nil, false, fmt.Errorf("capture: unmarshal frame %d: %w", p.index, err)
	}
	p.index++
	p.apply(frame.Resources)
	return frame.DisplayList(), true, nil
}

// apply installs a frame's resource additions into the player's cache,
// ahead of the display list that references them.
func (p *Player) apply(delta ResourceDelta) {
	for key, font := range delta.Fonts {
		if _, ok := p.resources.FontTemplate(key); ok {
			p.resources.UpdateFontTemplate(key, font.Data)
		} else {
			p.resources.AddFontTemplate(key, font.Data)
		}
	}
	for key, img := range delta.Images {
		desc := resource.ImageDescriptor{Size: image.Pt(img.Width, img.Height), Format: img.Format}
		if _, ok := p.resources.ImageTemplate(key); ok {
			p.resources.UpdateImageTemplate(key, img.Data, image.Rectangle{Max: desc.Size})
		} else {
			p.resources.AddImageTemplate(key, desc, img.Data, img.TileSize)
		}
	}
}
