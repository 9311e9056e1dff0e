// SPDX-License-Identifier: Unlicense OR MIT

// Package resource owns font and image template lifetime, request
// dedup and tiling (§4.3). Cached-image recency is tracked with
// github.com/hashicorp/golang-lru/v2, replacing the teacher's
// hand-rolled intrusive LRU (text/lru.go) with the pack's other
// dependency on the same concern.
package resource

import (
	"image"

	lru "github.com/hashicorp/golang-lru/v2"

	"compose2d.dev/scene"
)

// DefaultTileSize is the tile edge used when an image exceeds
// MaxUntiledDimension and no explicit tile size was given (§4.3).
const DefaultTileSize = 512

// MaxUntiledDimension is the size threshold past which add_image_template
// auto-tiles an image.
const MaxUntiledDimension = 2048

// ImageDescriptor describes an image template's format and size.
type ImageDescriptor struct {
	Size   image.Point
	Format string
}

// ImageTemplate is a registered image resource.
type ImageTemplate struct {
	Descriptor ImageDescriptor
	Data       []byte
	TileSize   int // 0 means untiled
	Epoch      uint64
	DirtyRect  image.Rectangle
}

// Tiles reports the number of tile columns and rows for a template
// (1x1 when untiled). TileRect gives the pixel rect of each tile: full
// TileSize except on the right/bottom edge, where it is
// `dimension mod TileSize` if non-zero, else TileSize (§4.3).
func (t *ImageTemplate) Tiles() (cols, rows int) {
	if t.TileSize == 0 {
		return 1, 1
	}
	cols = ceilDiv(t.Descriptor.Size.X, t.TileSize)
	rows = ceilDiv(t.Descriptor.Size.Y, t.TileSize)
	return cols, rows
}

// TileRect returns the pixel rect of tile (col, row).
func (t *ImageTemplate) TileRect(col, row int) image.Rectangle {
	if t.TileSize == 0 {
		return image.Rectangle{Max: t.Descriptor.Size}
	}
	w := edgeSize(t.Descriptor.Size.X, t.TileSize, col)
	h := edgeSize(t.Descriptor.Size.Y, t.TileSize, row)
	origin := image.Pt(col*t.TileSize, row*t.TileSize)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
}

func edgeSize(dim, tile, index int) int {
	isLast := (index+1)*tile >= dim
	if !isLast {
		return tile
	}
	rem := dim % tile
	if rem == 0 {
		return tile
	}
	return rem
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

// FontTemplate is a registered font resource: either raw bytes or a
// native font descriptor, per §4.3. This package stores only the
// ownership and epoch bookkeeping; package glyph owns shaping/rendering.
type FontTemplate struct {
	Data  []byte
	Epoch uint64
}

// cachedEntry is what the image recency cache stores: the epoch that
// was live when the item was uploaded to the texture cache, so a stale
// entry (epoch mismatch) is detected without re-walking dirty rects.
type cachedEntry struct {
	epoch uint64
	live  bool
}

// Cache owns font/image templates, in-flight request sets, and the
// recency-tracked cached-image set (§4.3, §5 "shared resources").
type Cache struct {
	images map[scene.ImageKey]*ImageTemplate
	fonts  map[uint32]*FontTemplate

	cachedImages *lru.Cache[scene.ImageKey, cachedEntry]

	pendingImages map[scene.ImageKey]bool
	pendingGlyphs map[scene.FontInstanceID]map[uint32]bool

	deferredFontDeletes []uint32
}

func New(cachedImageCapacity int) *Cache {
	cache, _ := lru.New[scene.ImageKey, cachedEntry](cachedImageCapacity)
	return &Cache{
		images:        map[scene.ImageKey]*ImageTemplate{},
		fonts:         map[uint32]*FontTemplate{},
		cachedImages:  cache,
		pendingImages: map[scene.ImageKey]bool{},
		pendingGlyphs: map[scene.FontInstanceID]map[uint32]bool{},
	}
}

// AddImageTemplate registers a new image, auto-tiling it with
// DefaultTileSize if it exceeds MaxUntiledDimension and no tile size was
// given (§4.3).
func (c *Cache) AddImageTemplate(key scene.ImageKey, desc ImageDescriptor, data []byte, tileSize int) {
	if tileSize == 0 && (desc.Size.X > MaxUntiledDimension || desc.Size.Y > MaxUntiledDimension) {
		tileSize = DefaultTileSize
	}
	c.images[key] = &ImageTemplate{Descriptor: desc, Data: data, TileSize: tileSize}
}

// ImageTemplate returns the registered template for key, for callers
// (the frame builder) that need to decompose it into tiles.
func (c *Cache) ImageTemplate(key scene.ImageKey) (*ImageTemplate, bool) {
	t, ok := c.images[key]
	return t, ok
}

// UpdateImageTemplate bumps the template's epoch and unions dirty into
// its accumulated dirty rect since the last upload (§4.3).
func (c *Cache) UpdateImageTemplate(key scene.ImageKey, data []byte, dirty image.Rectangle) bool {
	t, ok := c.images[key]
	if !ok {
		return false
	}
	t.Data = data
	t.Epoch++
	if t.DirtyRect.Empty() {
		t.DirtyRect = dirty
	} else {
		t.DirtyRect = t.DirtyRect.Union(dirty)
	}
	return true
}

// AddFontTemplate registers a new font, or replaces one entirely
// (matching the "add/update raw or native font template" API message,
// §6, where both resolve to the same map write).
func (c *Cache) AddFontTemplate(key uint32, data []byte) {
	c.fonts[key] = &FontTemplate{Data: data}
}

// UpdateFontTemplate replaces an existing font's bytes and bumps its
// epoch, so glyph instances cached against the old bytes are
// invalidated.
func (c *Cache) UpdateFontTemplate(key uint32, data []byte) {
	t, ok := c.fonts[key]
	if !ok {
		c.AddFontTemplate(key, data)
		return
	}
	t.Data = data
	t.Epoch++
}

// FontTemplate returns the registered template for key.
func (c *Cache) FontTemplate(key uint32) (*FontTemplate, bool) {
	t, ok := c.fonts[key]
	return t, ok
}

// DeleteImageTemplate removes an image template and its cached entry.
func (c *Cache) DeleteImageTemplate(key scene.ImageKey) {
	delete(c.images, key)
	c.cachedImages.Remove(key)
	delete(c.pendingImages, key)
}

// RequestImage records intent to use an image this frame. If a cached
// entry matches the template's current epoch it's marked live with no
// further work; otherwise the request is queued pending (§4.3).
func (c *Cache) RequestImage(key scene.ImageKey) {
	t, ok := c.images[key]
	if !ok {
		return
	}
	if entry, ok := c.cachedImages.Get(key); ok && entry.epoch == t.Epoch {
		entry.live = true
		c.cachedImages.Add(key, entry)
		return
	}
	c.pendingImages[key] = true
}

// RequestGlyphs records intent to rasterize glyphs for a font instance
// this frame, deduped per instance (§4.3).
func (c *Cache) RequestGlyphs(font scene.FontInstanceID, glyphs []uint32) {
	set, ok := c.pendingGlyphs[font]
	if !ok {
		set = map[uint32]bool{}
		c.pendingGlyphs[font] = set
	}
	for _, g := range glyphs {
		set[g] = true
	}
}

// PendingImages returns the keys requested this frame that aren't
// already cached at their template's current epoch.
func (c *Cache) PendingImages() []scene.ImageKey {
	keys := make([]scene.ImageKey, 0, len(c.pendingImages))
	for k := range c.pendingImages {
		keys = append(keys, k)
	}
	return keys
}

// PendingGlyphs returns the (font, glyph) pairs requested this frame.
func (c *Cache) PendingGlyphs() map[scene.FontInstanceID][]uint32 {
	out := map[scene.FontInstanceID][]uint32{}
	for font, set := range c.pendingGlyphs {
		list := make([]uint32, 0, len(set))
		for g := range set {
			list = append(list, g)
		}
		out[font] = list
	}
	return out
}

// MarkImageUploaded records that key's current-epoch bytes have been
// uploaded to the texture cache and clears the template's accumulated
// dirty rect; the backend calls it during resource resolution once the
// upload completes.
func (c *Cache) MarkImageUploaded(key scene.ImageKey) {
	t, ok := c.images[key]
	if !ok {
		return
	}
	t.DirtyRect = image.Rectangle{}
	c.cachedImages.Add(key, cachedEntry{epoch: t.Epoch, live: true})
	delete(c.pendingImages, key)
}

// Images returns a snapshot of every registered image template, keyed
// by image key, for callers (package capture) that diff the cache's
// contents against what they've already written to a capture.
func (c *Cache) Images() map[scene.ImageKey]ImageTemplate {
	out := make(map[scene.ImageKey]ImageTemplate, len(c.images))
	for k, v := range c.images {
		out[k] = *v
	}
	return out
}

// Fonts returns a snapshot of every registered font template, keyed by
// font key.
func (c *Cache) Fonts() map[uint32]FontTemplate {
	out := make(map[uint32]FontTemplate, len(c.fonts))
	for k, v := range c.fonts {
		out[k] = *v
	}
	return out
}

// BeginFrame clears the per-frame pending image and glyph sets. Cached
// image entries are left as they are; un-requested entries are only
// dropped by the LRU's own capacity eviction.
func (c *Cache) BeginFrame() {
	c.pendingImages = map[scene.ImageKey]bool{}
	c.pendingGlyphs = map[scene.FontInstanceID]map[uint32]bool{}
}

// DeferFontDeletion defers a font-template deletion to end-of-frame, so
// in-flight glyph-rasterization jobs referencing it are never
// invalidated mid-frame (§4.4 "Cancellation").
func (c *Cache) DeferFontDeletion(font uint32) {
	c.deferredFontDeletes = append(c.deferredFontDeletes, font)
}

// ApplyDeferredFontDeletions actually deletes fonts queued by
// DeferFontDeletion; called after resolve, per §4.4/§5 "Cancellation".
func (c *Cache) ApplyDeferredFontDeletions() {
	for _, f := range c.deferredFontDeletes {
		delete(c.fonts, f)
	}
	c.deferredFontDeletes = nil
}
