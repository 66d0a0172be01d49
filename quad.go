package quadstream

import "github.com/gogpu/quadstream/gpucore"

// Color is a premultiplied RGBA color with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// Packed returns the two packed color words stored in the provoking vertex.
func (c Color) Packed() (rg, ba uint32) {
	return gpucore.PackColor(c.R, c.G, c.B, c.A)
}

// MaskRef addresses a coverage mask in the mask buffer.
type MaskRef struct {
	// Offset is the byte offset of the mask's first row.
	Offset uint32

	// Stride is the row stride in pixels (bytes).
	Stride uint32
}

// NoMask draws a quad at full coverage.
var NoMask = MaskRef{Offset: gpucore.NoMaskOffset}

// IsNone reports whether m is the full-coverage sentinel.
func (m MaskRef) IsNone() bool { return m.Offset == gpucore.NoMaskOffset }

// Quad is one draw request: a device-pixel rectangle filled with Color
// modulated by the mask coverage at each pixel.
//
// The zero-value Mask has offset 0 and reads the mask buffer; use NoMask
// for full coverage.
type Quad struct {
	X, Y, W, H int32

	Mask  MaskRef
	Color Color

	// ReuseColor draws the quad with the color of the previously appended
	// quad and ignores Color.
	ReuseColor bool
}
