// SPDX-License-Identifier: Unlicense OR MIT

package resource

import (
	"image"
	"testing"

	"compose2d.dev/scene"
)

func TestAddImageTemplateAutoTilesLargeImages(t *testing.T) {
	c := New(64)
	c.AddImageTemplate(1, ImageDescriptor{Size: image.Pt(3000, 1000)}, nil, 0)
	tmpl := c.images[1]
	if tmpl.TileSize != DefaultTileSize {
		t.Errorf("expected auto-tiling at the default tile size, got %d", tmpl.TileSize)
	}
	cols, _ := tmpl.Tiles()
	wantCols := (3000 + DefaultTileSize - 1) / DefaultTileSize
	if cols != wantCols {
		t.Errorf("expected %d columns, got %d", wantCols, cols)
	}
}

func TestAddImageTemplateLeavesSmallImagesUntiled(t *testing.T) {
	c := New(64)
	c.AddImageTemplate(1, ImageDescriptor{Size: image.Pt(256, 256)}, nil, 0)
	if c.images[1].TileSize != 0 {
		t.Error("expected a small image to remain untiled")
	}
}

func TestTileRectEdgeTileIsFullWhenDimDividesEvenly(t *testing.T) {
	tmpl := &ImageTemplate{Descriptor: ImageDescriptor{Size: image.Pt(1024, 1024)}, TileSize: 512}
	cols, rows := tmpl.Tiles()
	if cols != 2 || rows != 2 {
		t.Fatalf("expected a 2x2 tile grid for 1024/512, got %dx%d", cols, rows)
	}
	r := tmpl.TileRect(1, 1)
	if r.Dx() != 512 || r.Dy() != 512 {
		t.Errorf("expected the last tile to be a full 512x512 tile when dim mod tile == 0, got %v", r)
	}
}

func TestTileRectPartialEdgeTile(t *testing.T) {
	tmpl := &ImageTemplate{Descriptor: ImageDescriptor{Size: image.Pt(1000, 1000)}, TileSize: 512}
	cols, _ := tmpl.Tiles()
	if cols != 2 {
		t.Fatalf("expected 2 columns for ceil(1000/512), got %d", cols)
	}
	r := tmpl.TileRect(1, 0)
	if r.Dx() != 1000%512 {
		t.Errorf("expected the edge tile width to be dim mod tile = %d, got %d", 1000%512, r.Dx())
	}
}

func TestUpdateImageTemplateBumpsEpochAndUnionsDirty(t *testing.T) {
	c := New(64)
	c.AddImageTemplate(1, ImageDescriptor{Size: image.Pt(100, 100)}, nil, 0)
	c.UpdateImageTemplate(1, nil, image.Rect(0, 0, 10, 10))
	c.UpdateImageTemplate(1, nil, image.Rect(50, 50, 60, 60))

	tmpl := c.images[1]
	if tmpl.Epoch != 2 {
		t.Errorf("expected epoch to bump twice, got %d", tmpl.Epoch)
	}
	want := image.Rect(0, 0, 60, 60)
	if tmpl.DirtyRect != want {
		t.Errorf("expected dirty rect union %v, got %v", want, tmpl.DirtyRect)
	}
}

func TestRequestImageSkipsWorkWhenCachedAtCurrentEpoch(t *testing.T) {
	c := New(64)
	c.AddImageTemplate(1, ImageDescriptor{Size: image.Pt(100, 100)}, nil, 0)
	c.MarkImageUploaded(1)

	c.RequestImage(1)
	if len(c.PendingImages()) != 0 {
		t.Error("expected a cached, current-epoch image to require no pending work")
	}
}

func TestRequestImageQueuesWorkAfterUpdate(t *testing.T) {
	c := New(64)
	c.AddImageTemplate(1, ImageDescriptor{Size: image.Pt(100, 100)}, nil, 0)
	c.MarkImageUploaded(1)
	c.UpdateImageTemplate(1, nil, image.Rect(0, 0, 1, 1))

	c.RequestImage(1)
	if len(c.PendingImages()) != 1 {
		t.Error("expected an updated image to require a pending re-upload")
	}
}

func TestUpdateFontTemplateBumpsEpoch(t *testing.T) {
	c := New(64)
	c.AddFontTemplate(1, []byte("v1"))
	c.UpdateFontTemplate(1, []byte("v2"))

	tmpl, ok := c.FontTemplate(1)
	if !ok {
		t.Fatal("expected font template 1 to exist")
	}
	if tmpl.Epoch != 1 {
		t.Errorf("expected epoch to bump once, got %d", tmpl.Epoch)
	}
	if string(tmpl.Data) != "v2" {
		t.Errorf("expected updated bytes, got %q", tmpl.Data)
	}
}

func TestImagesAndFontsSnapshotEveryRegisteredTemplate(t *testing.T) {
	c := New(64)
	c.AddFontTemplate(1, []byte("v1"))
	c.AddImageTemplate(2, ImageDescriptor{Size: image.Pt(4, 4), Format: "rgba8"}, []byte{1, 2, 3, 4}, 0)

	fonts := c.Fonts()
	if len(fonts) != 1 || string(fonts[1].Data) != "v1" {
		t.Errorf("expected Fonts() to snapshot font 1, got %+v", fonts)
	}
	images := c.Images()
	if len(images) != 1 || images[2].Descriptor.Size != image.Pt(4, 4) {
		t.Errorf("expected Images() to snapshot image 2, got %+v", images)
	}

	c.UpdateFontTemplate(1, []byte("v2"))
	if fonts[1].Epoch != 0 {
		t.Error("expected the earlier snapshot to be unaffected by a later update")
	}
}

func TestDeferFontDeletionAppliesAfterResolve(t *testing.T) {
	c := New(64)
	c.AddFontTemplate(1, []byte("v1"))
	c.DeferFontDeletion(1)

	if _, ok := c.FontTemplate(1); !ok {
		t.Error("expected a deferred deletion to leave the font reachable mid-frame")
	}
	c.ApplyDeferredFontDeletions()
	if _, ok := c.FontTemplate(1); ok {
		t.Error("expected the font to be gone once deferred deletions are applied")
	}
}

func TestRequestGlyphsDedupsPerInstance(t *testing.T) {
	c := New(64)
	c.RequestGlyphs(scene.FontInstanceID(1), []uint32{1, 2, 2, 3})
	c.RequestGlyphs(scene.FontInstanceID(1), []uint32{3, 4})

	pending := c.PendingGlyphs()[1]
	if len(pending) != 4 {
		t.Errorf("expected 4 unique glyphs, got %d", len(pending))
	}
}
