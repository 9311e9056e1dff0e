// SPDX-License-Identifier: Unlicense OR MIT

// Package f32color converts between 8-bit sRGB colors and the
// premultiplied linear floating point colors the GPU cache and render
// tasks operate on internally.
package f32color

import (
	"image/color"
	"math"
)

// RGBA is a 32-bit premultiplied linear color.
type RGBA struct {
	R, G, B, A float32
}

// NRGBAToLinearRGBA converts a straight-alpha sRGB color to a
// premultiplied sRGB color (no linearization), the representation used
// when an 8-bit output is still required (e.g. writing GPU cache bytes
// that a fragment shader will treat as already gamma-encoded).
func NRGBAToLinearRGBA(c color.NRGBA) color.RGBA {
	r := uint16(c.R) * uint16(c.A) / 0xFF
	g := uint16(c.G) * uint16(c.A) / 0xFF
	b := uint16(c.B) * uint16(c.A) / 0xFF
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: c.A}
}

// LinearFromSRGB decodes a straight-alpha sRGB color to a premultiplied
// linear RGBA, suitable for blending and for blocks pushed into the GPU
// cache.
func LinearFromSRGB(c color.NRGBA) RGBA {
	if c.A == 0 {
		return RGBA{}
	}
	a := float32(c.A) / 0xFF
	return RGBA{
		R: srgbToLinear(c.R) * a,
		G: srgbToLinear(c.G) * a,
		B: srgbToLinear(c.B) * a,
		A: a,
	}
}

// SRGB encodes a premultiplied linear RGBA back to straight-alpha sRGB,
// the inverse of LinearFromSRGB.
func (c RGBA) SRGB() color.NRGBA {
	if c.A == 0 {
		return color.NRGBA{}
	}
	r := linearToSRGB(c.R/c.A) * 0xFF
	g := linearToSRGB(c.G/c.A) * 0xFF
	b := linearToSRGB(c.B/c.A) * 0xFF
	a := c.A * 0xFF
	return color.NRGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: clamp8(a)}
}

// Opaque reports whether c has full alpha.
func (c RGBA) Opaque() bool { return c.A >= 1 }

func clamp8(v float32) uint8 {
	v += 0.5
	switch {
	case v <= 0:
		return 0
	case v >= 0xFF:
		return 0xFF
	default:
		return uint8(v)
	}
}

func srgbToLinear(c uint8) float32 {
	cf := float64(c) / 0xFF
	var lin float64
	if cf <= 0.04045 {
		lin = cf / 12.92
	} else {
		lin = math.Pow((cf+0.055)/1.055, 2.4)
	}
	return float32(lin)
}

func linearToSRGB(lin float32) float32 {
	l := float64(lin)
	if l <= 0 {
		return 0
	}
	var srgb float64
	if l <= 0.0031308 {
		srgb = l * 12.92
	} else {
		srgb = 1.055*math.Pow(l, 1/2.4) - 0.055
	}
	return float32(srgb)
}
