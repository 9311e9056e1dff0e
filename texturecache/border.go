// SPDX-License-Identifier: Unlicense OR MIT

package texturecache

import "image"

// ReplicateBorder copies the edge pixels of an item's Requested rect
// into its 1-pixel Allocated border (top row, bottom row, left and
// right columns, including corners), preventing bilinear sampling from
// picking up a neighboring atlas entry.
func ReplicateBorder(img *image.RGBA, it *Item) {
	if it.Standalone || it.Allocated == it.Requested {
		return
	}
	req := it.Requested
	alloc := it.Allocated

	for x := req.Min.X; x < req.Max.X; x++ {
		top := img.RGBAAt(x, req.Min.Y)
		bottom := img.RGBAAt(x, req.Max.Y-1)
		img.SetRGBA(x, alloc.Min.Y, top)
		img.SetRGBA(x, alloc.Max.Y-1, bottom)
	}
	for y := alloc.Min.Y; y < alloc.Max.Y; y++ {
		srcY := y
		if srcY < req.Min.Y {
			srcY = req.Min.Y
		} else if srcY >= req.Max.Y {
			srcY = req.Max.Y - 1
		}
		left := img.RGBAAt(req.Min.X, srcY)
		right := img.RGBAAt(req.Max.X-1, srcY)
		img.SetRGBA(alloc.Min.X, y, left)
		img.SetRGBA(alloc.Max.X-1, y, right)
	}
}
