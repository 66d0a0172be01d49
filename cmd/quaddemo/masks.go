package main

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// discMask rasterizes an anti-aliased disc of diameter d.
func discMask(d int) *image.Alpha {
	r := float32(d) / 2
	k := r * kappa
	z := vector.NewRasterizer(d, d)
	z.MoveTo(r, 0)
	z.CubeTo(r+k, 0, 2*r, r-k, 2*r, r)
	z.CubeTo(2*r, r+k, r+k, 2*r, r, 2*r)
	z.CubeTo(r-k, 2*r, 0, r+k, 0, r)
	z.CubeTo(0, r-k, r-k, 0, r, 0)
	z.ClosePath()

	m := image.NewAlpha(image.Rect(0, 0, d, d))
	z.Draw(m, m.Bounds(), image.Opaque, image.Point{})
	return m
}

// ringMask rasterizes an annulus of outer diameter d and the given width.
func ringMask(d, width int) *image.Alpha {
	outer := discMask(d)
	inner := discMask(d - 2*width)
	for y := 0; y < inner.Rect.Dy(); y++ {
		for x := 0; x < inner.Rect.Dx(); x++ {
			a := inner.AlphaAt(x, y).A
			i := outer.PixOffset(x+width, y+width)
			outer.Pix[i] = uint8(uint16(outer.Pix[i]) * uint16(255-a) / 255)
		}
	}
	return outer
}

// newFace returns the named font face: "go" for Go Regular at size pixels,
// "basic" for the fixed 7x13 face.
func newFace(name string, size float64) (font.Face, error) {
	switch name {
	case "basic":
		return basicfont.Face7x13, nil
	case "go":
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("create face: %w", err)
		}
		return face, nil
	}
	return nil, fmt.Errorf("unknown font %q", name)
}

// glyph is a rasterized glyph coverage mask positioned relative to the pen
// on the baseline.
type glyph struct {
	mask    *image.Alpha
	offset  image.Point
	advance fixed.Int26_6
}

// rasterizeGlyph renders r into a tightly bounded mask. Glyphs without
// ink (spaces) return a nil mask and only advance the pen.
func rasterizeGlyph(face font.Face, r rune) (glyph, bool) {
	bounds, advance, ok := face.GlyphBounds(r)
	if !ok {
		return glyph{}, false
	}
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
	g := glyph{offset: image.Pt(minX, minY), advance: advance}
	if maxX <= minX || maxY <= minY {
		return g, true
	}

	g.mask = image.NewAlpha(image.Rect(0, 0, maxX-minX, maxY-minY))
	drawer := &font.Drawer{
		Dst:  g.mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: -fixed.I(minX), Y: -fixed.I(minY)},
	}
	drawer.DrawString(string(r))
	return g, true
}
