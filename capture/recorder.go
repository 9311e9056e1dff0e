// SPDX-License-Identifier: Unlicense OR MIT

package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"compose2d.dev/resource"
	"compose2d.dev/scene"
	"gopkg.in/yaml.v3"
)

// Recorder writes a sequence of display lists to a capture directory,
// one numbered YAML file per frame, diffing the resource cache against
// what it has already written so each frame only carries the additions
// since the last capture.
type Recorder struct {
	dir       string
	resources *resource.Cache

	seenFontEpoch  map[uint32]uint64
	seenImageEpoch map[scene.ImageKey]uint64

	next int
}

// NewRecorder creates (or reuses) dir and returns a Recorder that will
// diff resources against resources' current contents.
func NewRecorder(dir string, resources *resource.Cache) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: create directory: %w", err)
	}
	return &Recorder{
		dir:            dir,
		resources:      resources,
		seenFontEpoch:  map[uint32]uint64{},
		seenImageEpoch: map[scene.ImageKey]uint64{},
	}, nil
}

// Capture writes dl as the next frame in the sequence, alongside any
// font/image templates whose key or epoch hasn't already been captured.
func (r *Recorder) Capture(dl *scene.DisplayList) error {
	frame := ToFrame(dl)
	frame.Number = r.next
	frame.Resources = r.delta()

	data, err := yaml.Marshal(frame)
	if err != nil {
		return fmt.Errorf("capture: marshal frame %d: %w", r.next, err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("frame-%04d.yaml", r.next))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("capture: write frame %d: %w", r.next, err)
	}
	r.next++
	return nil
}

// delta snapshots every font/image template not yet captured at its
// current epoch, and records it as seen.
func (r *Recorder) delta() ResourceDelta {
	var d ResourceDelta
	for key, font := range r.resources.Fonts() {
		if epoch, ok := r.seenFontEpoch[key]; ok && epoch == font.Epoch {
			continue
		}
		if d.Fonts == nil {
			d.Fonts = map[uint32]FontResource{}
		}
		d.Fonts[key] = FontResource{Data: font.Data, Epoch: font.Epoch}
		r.seenFontEpoch[key] = font.Epoch
	}
	for key, img := range r.resources.Images() {
		if epoch, ok := r.seenImageEpoch[key]; ok && epoch == img.Epoch {
			continue
		}
		if d.Images == nil {
			d.Images = map[scene.ImageKey]ImageResource{}
		}
		d.Images[key] = ImageResource{
			Width:    img.Descriptor.Size.X,
			Height:   img.Descriptor.Size.Y,
			Format:   img.Descriptor.Format,
			TileSize: img.TileSize,
			Epoch:    img.Epoch,
			Data:     img.Data,
		}
		r.seenImageEpoch[key] = img.Epoch
	}
	if d.empty() {
		return ResourceDelta{}
	}
	return d
}
