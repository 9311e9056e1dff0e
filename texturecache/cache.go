// SPDX-License-Identifier: Unlicense OR MIT

package texturecache

import "image"

// border is the 1-pixel inset applied around every allocation so that
// edge texels can be replicated and bilinear sampling never bleeds into
// a neighboring item.
const border = 1

// defaultPageSize is the initial atlas texture size; pages double (each
// dimension, clamped to maxTextureDim) as they run out of room.
const defaultPageSize = 1024

// ItemID identifies a texture cache entry, whether atlased or
// standalone.
type ItemID uint32

// Item is a sub-rectangle of an atlas texture (or a whole standalone
// texture), plus the "requested" sub-rectangle inset by the 1-pixel
// border described in §3 and §4.2.
type Item struct {
	// Allocated is the full rect reserved in the atlas, border included.
	Allocated image.Rectangle
	// Requested is Allocated inset by border on every side: the rect the
	// caller actually renders into / samples from.
	Requested image.Rectangle
	// Texture identifies which atlas texture (or standalone texture)
	// holds this item.
	Texture TextureID
	// Standalone is true when the item bypasses atlas packing entirely
	// (e.g. nearest-filter requests, or allocations too large to atlas).
	Standalone bool

	lastUsedFrame uint64
	prev, next    ItemID // intrusive recency list, see touch/EvictOlderThan
}

// TextureID names one atlas or standalone GPU texture.
type TextureID uint32

// Cache owns a set of atlas pages plus any standalone textures, and
// tracks item recency so stale entries can be evicted under memory
// pressure (§3 "Texture-cache items persist across frames until evicted
// by recency").
type Cache struct {
	maxTextureDim int

	atlases []atlasTexture
	items   map[ItemID]*Item
	nextID  ItemID

	nextTexture TextureID

	// recency list, newest-first (head is the most recently used item); head/tail sentinels follow the
	// intrusive-list idiom used by the teacher's text/lru.go.
	head, tail ItemID
	frame      uint64
}

type atlasTexture struct {
	id   TextureID
	page *page
}

// New returns a Cache whose atlas textures never grow past
// maxTextureDim on either axis (the hardware texture size limit).
func New(maxTextureDim int) *Cache {
	c := &Cache{
		maxTextureDim: maxTextureDim,
		items:         make(map[ItemID]*Item),
	}
	return c
}

// BeginFrame advances the recency clock.
func (c *Cache) BeginFrame() { c.frame++ }

// Alloc reserves space for a size x size.Y image (already including any
// caller-side padding) and returns its ItemID. nearestFilter requests
// bypass atlas packing (§4.2: "Nearest-filter requests bypass the atlas
// and go to standalone textures").
//
// Alloc panics if size exceeds maxTextureDim on either axis: per §7 that
// reflects a caller bug (the caller should have tiled the image).
func (c *Cache) Alloc(size image.Point, nearestFilter bool) ItemID {
	if size.X > c.maxTextureDim || size.Y > c.maxTextureDim {
		panic("texturecache: allocation exceeds hardware maximum texture size")
	}
	if nearestFilter {
		return c.allocStandalone(size)
	}
	padded := image.Pt(size.X+2*border, size.Y+2*border)
	if padded.X > c.maxTextureDim || padded.Y > c.maxTextureDim {
		return c.allocStandalone(size)
	}
	for i := range c.atlases {
		if origin, ok := c.atlases[i].page.tryAdd(padded); ok {
			return c.commit(c.atlases[i].id, origin, padded, size, false)
		}
	}
	// No atlas fit. Try growing the most recently created one, else
	// start a fresh atlas.
	if n := len(c.atlases); n > 0 {
		last := &c.atlases[n-1]
		cur := last.page.size
		if cur.X < c.maxTextureDim || cur.Y < c.maxTextureDim {
			grown := image.Pt(min(cur.X*2, c.maxTextureDim), min(cur.Y*2, c.maxTextureDim))
			if grown.X >= padded.X && grown.Y >= padded.Y {
				last.page.grow(grown)
				if origin, ok := last.page.tryAdd(padded); ok {
					return c.commit(last.id, origin, padded, size, false)
				}
			}
		}
	}
	id := c.newAtlas()
	if pg := c.atlases[id].page; pg.size.X < padded.X || pg.size.Y < padded.Y {
		c.atlases[id].page = newPage(image.Pt(max(pg.size.X, padded.X), max(pg.size.Y, padded.Y)))
	}
	origin, ok := c.atlases[id].page.tryAdd(padded)
	if !ok {
		// The page is freshly cleared and at least as large as the
		// padded item on both axes, so this cannot happen.
		panic("texturecache: fresh atlas page rejected a validated allocation")
	}
	return c.commit(c.atlases[id].id, origin, padded, size, false)
}

func (c *Cache) newAtlas() int {
	idx := len(c.atlases)
	c.nextTexture++
	c.atlases = append(c.atlases, atlasTexture{id: c.nextTexture, page: newPage(image.Pt(defaultPageSize, defaultPageSize))})
	return idx
}

func (c *Cache) allocStandalone(size image.Point) ItemID {
	c.nextTexture++
	id := Item{
		Allocated:  image.Rectangle{Max: size},
		Requested:  image.Rectangle{Max: size},
		Texture:    c.nextTexture,
		Standalone: true,
	}
	return c.insert(id)
}

func (c *Cache) commit(tex TextureID, origin image.Point, padded, requestedSize image.Point, standalone bool) ItemID {
	allocated := image.Rectangle{Min: origin, Max: origin.Add(padded)}
	requested := allocated.Inset(border)
	_ = requestedSize
	return c.insert(Item{Allocated: allocated, Requested: requested, Texture: tex})
}

func (c *Cache) insert(it Item) ItemID {
	c.nextID++
	id := c.nextID
	it.lastUsedFrame = c.frame
	c.items[id] = &it
	c.pushFront(id)
	return id
}

// Get returns the item for id and marks it as used this frame.
func (c *Cache) Get(id ItemID) (*Item, bool) {
	it, ok := c.items[id]
	if !ok {
		return nil, false
	}
	it.lastUsedFrame = c.frame
	c.touch(id)
	return it, true
}

// Free releases id's allocation back to its atlas page (or drops its
// standalone texture).
func (c *Cache) Free(id ItemID) {
	it, ok := c.items[id]
	if !ok {
		return
	}
	c.unlink(id)
	delete(c.items, id)
	if it.Standalone {
		return
	}
	for i := range c.atlases {
		if c.atlases[i].id == it.Texture {
			c.atlases[i].page.freeRect(it.Allocated)
			return
		}
	}
}

// EvictOlderThan frees every item not touched within the last
// maxAgeFrames frames, returning their ids so the renderer can drop the
// corresponding GPU-cache UV entries.
func (c *Cache) EvictOlderThan(maxAgeFrames uint64) []ItemID {
	if c.frame < maxAgeFrames {
		return nil
	}
	threshold := c.frame - maxAgeFrames
	var evicted []ItemID
	id := c.head
	for id != 0 {
		it := c.items[id]
		next := it.next
		if it.lastUsedFrame < threshold {
			evicted = append(evicted, id)
		}
		id = next
	}
	for _, id := range evicted {
		c.Free(id)
	}
	return evicted
}

// --- intrusive recency list, grounded on text/lru.go's head/tail idiom ---

func (c *Cache) pushFront(id ItemID) {
	it := c.items[id]
	it.next = c.head
	it.prev = 0
	if c.head != 0 {
		c.items[c.head].prev = id
	}
	c.head = id
	if c.tail == 0 {
		c.tail = id
	}
}

func (c *Cache) unlink(id ItemID) {
	it := c.items[id]
	if it.prev != 0 {
		c.items[it.prev].next = it.next
	} else if c.head == id {
		c.head = it.next
	}
	if it.next != 0 {
		c.items[it.next].prev = it.prev
	} else if c.tail == id {
		c.tail = it.prev
	}
}

func (c *Cache) touch(id ItemID) {
	if c.head == id {
		return
	}
	c.unlink(id)
	c.pushFront(id)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
