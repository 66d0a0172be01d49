// Command quaddemo streams a scene of solid quads, shape masks and glyph
// masks through a quadstream session and saves the result as a PNG when
// the selected device can be read back.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/quadstream"
	"github.com/gogpu/quadstream/backend"
	_ "github.com/gogpu/quadstream/backend/raster"
	"github.com/gogpu/quadstream/maskbuf"
	_ "github.com/gogpu/quadstream/recording"
)

type config struct {
	device        string
	width, height int
	output        string
	text          string
	font          string
	fontSize      float64
	latency       time.Duration
	vertexBuffer  int
	maskBuffer    int
	logFile       string
	logLevel      string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.device, "device", backend.Default(), "device backend: raster or recording")
	flag.IntVar(&cfg.width, "width", 800, "image width")
	flag.IntVar(&cfg.height, "height", 600, "image height")
	flag.StringVar(&cfg.output, "output", "quaddemo.png", "output file")
	flag.StringVar(&cfg.text, "text", "The quick brown fox jumps over the lazy dog", "text to draw")
	flag.StringVar(&cfg.font, "font", "go", "font face: go or basic")
	flag.Float64Var(&cfg.fontSize, "size", 28, "font size in pixels")
	flag.DurationVar(&cfg.latency, "latency", 0, "simulated device latency per draw call")
	flag.IntVar(&cfg.vertexBuffer, "vbuf", 96*1024, "vertex buffer size in bytes")
	flag.IntVar(&cfg.maskBuffer, "mbuf", 64*1024, "mask buffer size in bytes")
	flag.StringVar(&cfg.logFile, "logfile", "", "write JSON logs to this rotated file instead of stderr")
	flag.StringVar(&cfg.logLevel, "loglevel", "info", "log level: debug, info, warn or error")
	flag.Parse()

	logger, closeLog, err := newLogger(cfg.logFile, cfg.logLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = closeLog() }()
	quadstream.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("quaddemo failed", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	dev, img, err := backend.Open(cfg.device, backend.Config{
		Width:      cfg.width,
		Height:     cfg.height,
		Latency:    cfg.latency,
		Background: color.RGBA{R: 0x18, G: 0x1C, B: 0x26, A: 0xFF},
	})
	if err != nil {
		return err
	}
	if c, ok := dev.(io.Closer); ok {
		defer c.Close()
	}

	s, err := quadstream.NewSession(dev,
		quadstream.WithVertexBufferSize(cfg.vertexBuffer),
		quadstream.WithMaskBufferSize(cfg.maskBuffer))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	alloc := s.NewMaskAllocator()
	if err := s.Enable(); err != nil {
		return err
	}

	start := time.Now()
	if err := drawGrid(s, cfg.width, cfg.height); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if err := drawDiscs(s, alloc, cfg.width); err != nil {
		return fmt.Errorf("discs: %w", err)
	}
	face, err := newFace(cfg.font, cfg.fontSize)
	if err != nil {
		return err
	}
	defer face.Close()
	if err := drawText(s, alloc, face, cfg.text, 24, cfg.height-40); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	logger.Info("scene drawn",
		"device", cfg.device,
		"elapsed", time.Since(start),
		"stats", s.Stats().String(),
		"maskFences", alloc.Fences())

	if img == nil {
		logger.Info("device has no image output", "device", cfg.device)
		return nil
	}
	if err := img.Finish(); err != nil {
		return err
	}
	f, err := os.Create(cfg.output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img.Image()); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", cfg.output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("image saved", "output", cfg.output, "width", cfg.width, "height", cfg.height)
	return nil
}

// drawGrid fills the background with a checkerboard of unmasked quads,
// one quad per cell, so the vertex ring wraps many times.
func drawGrid(s *quadstream.Session, w, h int) error {
	const cell = 10
	for y := 0; y < h; y += cell {
		for x := 0; x < w; x += cell {
			v := uint8(0x20)
			if (x/cell+y/cell)%2 == 0 {
				v = 0x28
			}
			q := quadstream.Quad{
				X: int32(x), Y: int32(y), W: cell, H: cell, //nolint:gosec // G115: image size fits int32
				Mask:  quadstream.NoMask,
				Color: quadstream.Color{R: v, G: v, B: v + 0x08, A: 0xFF},
			}
			if err := s.AddQuad(q); err != nil {
				return err
			}
		}
	}
	return nil
}

// drawDiscs draws a row of discs and rings with premultiplied colors.
func drawDiscs(s *quadstream.Session, alloc *maskbuf.Allocator, w int) error {
	palette := []quadstream.Color{
		{R: 0xE0, G: 0x40, B: 0x40, A: 0xFF},
		{R: 0x40, G: 0xC0, B: 0x60, A: 0xFF},
		{R: 0x40, G: 0x70, B: 0xE0, A: 0xFF},
		{R: 0x70, G: 0x60, B: 0x10, A: 0x80},
	}
	const d = 72
	for i, x := 0, 24; x+d <= w; i, x = i+1, x+d+16 {
		m := discMask(d)
		if i%2 == 1 {
			m = ringMask(d, 10)
		}
		off, err := alloc.Allocate(d, d, m.Pix, m.Stride, 0)
		if err != nil {
			return err
		}
		s.SetColor(palette[i%len(palette)])
		if err := s.AddMaskQuad(int32(x), 40, d, d, off); err != nil { //nolint:gosec // G115: x < w
			return err
		}
	}
	return nil
}

// drawText draws text with its baseline at (x, y), one mask quad per
// glyph.
func drawText(s *quadstream.Session, alloc *maskbuf.Allocator, face font.Face, text string, x, y int) error {
	s.SetColor(quadstream.Color{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF})
	pen := fixed.I(x)
	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			pen += face.Kern(prev, r)
		}
		prev = r
		g, ok := rasterizeGlyph(face, r)
		if !ok {
			continue
		}
		if g.mask != nil {
			b := g.mask.Bounds()
			off, err := alloc.Allocate(b.Dx(), b.Dy(), g.mask.Pix, g.mask.Stride, 0)
			if err != nil {
				return err
			}
			gx, gy := pen.Round()+g.offset.X, y+g.offset.Y
			//nolint:gosec // G115: glyph positions fit int32
			if err := s.AddMaskQuad(int32(gx), int32(gy), int32(b.Dx()), int32(b.Dy()), off); err != nil {
				return err
			}
		}
		pen += g.advance
	}
	return nil
}
