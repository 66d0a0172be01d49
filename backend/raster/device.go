// Package raster provides a CPU gpucore.Device that composites mask quads
// into an *image.RGBA.
//
// Draw calls and fences are queued to a consumer goroutine that reads the
// session's vertex and mask memory in place, the way a GPU reads a
// persistently mapped buffer. A fence signals when the consumer reaches
// it, so session fence waits observe real asynchronous progress.
//
// # Example
//
//	dev := raster.New(640, 480, raster.WithLatency(time.Millisecond))
//	defer dev.Close()
//
//	s, _ := quadstream.NewSession(dev)
//	...
//	_ = s.Close()
//	_ = dev.Finish()
//	png.Encode(w, dev.Image())
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/gogpu/quadstream/gpucore"
)

// Device errors.
var (
	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("raster: device closed")

	// ErrNotEnabled is returned by Draw outside Enable/Disable.
	ErrNotEnabled = errors.New("raster: program not enabled")

	// ErrNoBuffers is returned by Enable before both buffers are allocated.
	ErrNoBuffers = errors.New("raster: buffers not allocated")
)

// DefaultQueueDepth is the default number of queued commands before Draw
// and CreateFence block.
const DefaultQueueDepth = 64

// Option configures a Device.
type Option func(*Device)

// WithLatency makes the consumer sleep for d before executing each draw
// call, simulating a slow GPU.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) {
		if d > 0 {
			dev.latency = d
		}
	}
}

// WithQueueDepth sets the command queue capacity. Non-positive values are
// ignored.
func WithQueueDepth(n int) Option {
	return func(dev *Device) {
		if n > 0 {
			dev.queueDepth = n
		}
	}
}

// WithBackground fills the target with c before any drawing.
func WithBackground(c color.Color) Option {
	return func(dev *Device) {
		draw.Draw(dev.img, dev.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// Fence is the fence handle of a raster device. It signals when the
// consumer has executed every command queued before it.
type Fence struct {
	done chan struct{}
}

type command struct {
	draw  gpucore.DrawCall
	fence *Fence
}

// Device is a gpucore.Device that draws on a consumer goroutine.
//
// Producer methods (the gpucore.Device methods) must be called from one
// goroutine. Image must only be read after Finish or Close.
type Device struct {
	img        *image.RGBA
	latency    time.Duration
	queueDepth int

	vertices []byte
	mask     []byte
	enabled  bool
	closed   bool

	queue   chan command
	stopped chan struct{}
	once    sync.Once

	draws      atomic.Uint64
	quads      atomic.Uint64
	maskFaults atomic.Uint64
}

// New creates a device drawing into a width x height transparent image and
// starts its consumer goroutine.
func New(width, height int, opts ...Option) *Device {
	d := &Device{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		queueDepth: DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan command, d.queueDepth)
	d.stopped = make(chan struct{})
	go d.consume()
	return d
}

// SetLogger sets the logger used by the device.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// AllocateVertexBuffer implements gpucore.Device.
func (d *Device) AllocateVertexBuffer(size int) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	d.vertices = make([]byte, size)
	return d.vertices, nil
}

// AllocateMaskBuffer implements gpucore.Device.
func (d *Device) AllocateMaskBuffer(size int) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	d.mask = make([]byte, size)
	return d.mask, nil
}

// Enable implements gpucore.Device.
func (d *Device) Enable() error {
	switch {
	case d.closed:
		return ErrClosed
	case d.vertices == nil || d.mask == nil:
		return ErrNoBuffers
	}
	d.enabled = true
	return nil
}

// Disable implements gpucore.Device.
func (d *Device) Disable() error {
	d.enabled = false
	return nil
}

// Draw implements gpucore.Device. The vertex span is read by the consumer
// goroutine after Draw returns.
func (d *Device) Draw(call gpucore.DrawCall) error {
	switch {
	case d.closed:
		return ErrClosed
	case !d.enabled:
		return ErrNotEnabled
	}
	if call.FirstVertex < 0 || (call.FirstVertex+call.VertexCount)*gpucore.VertexStride > len(d.vertices) {
		return fmt.Errorf("raster: draw [%d,%d) outside vertex buffer", call.FirstVertex, call.FirstVertex+call.VertexCount)
	}
	d.queue <- command{draw: call}
	return nil
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence() (gpucore.Fence, error) {
	if d.closed {
		return nil, ErrClosed
	}
	f := &Fence{done: make(chan struct{})}
	d.queue <- command{fence: f}
	return f, nil
}

// ClientWait implements gpucore.Device.
func (d *Device) ClientWait(f gpucore.Fence, timeout time.Duration) gpucore.FenceStatus {
	rf, ok := f.(*Fence)
	if !ok || rf == nil {
		return gpucore.FenceWaitFailed
	}
	select {
	case <-rf.done:
		return gpucore.FenceAlreadySignaled
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-rf.done:
		return gpucore.FenceConditionSatisfied
	case <-t.C:
		return gpucore.FenceTimeoutExpired
	}
}

// DestroyFence implements gpucore.Device. Raster fences hold no resources.
func (d *Device) DestroyFence(gpucore.Fence) {}

// Finish blocks until the consumer has executed every queued command.
func (d *Device) Finish() error {
	f, err := d.CreateFence()
	if err != nil {
		return err
	}
	<-f.(*Fence).done
	return nil
}

// Close drains the queue and stops the consumer. Close is idempotent.
func (d *Device) Close() error {
	d.once.Do(func() {
		d.closed = true
		close(d.queue)
		<-d.stopped
		slogger().Debug("raster: device closed",
			"draws", d.draws.Load(), "quads", d.quads.Load(), "maskFaults", d.maskFaults.Load())
	})
	return nil
}

// Image returns the render target. Call Finish or Close first.
func (d *Device) Image() *image.RGBA { return d.img }

// Draws returns the number of draw calls executed by the consumer.
func (d *Device) Draws() uint64 { return d.draws.Load() }

// Quads returns the number of quads composited by the consumer.
func (d *Device) Quads() uint64 { return d.quads.Load() }

// MaskFaults returns the number of quads skipped because their mask lay
// outside the mask buffer.
func (d *Device) MaskFaults() uint64 { return d.maskFaults.Load() }

func (d *Device) consume() {
	defer close(d.stopped)
	for cmd := range d.queue {
		if cmd.fence != nil {
			close(cmd.fence.done)
			continue
		}
		if d.latency > 0 {
			time.Sleep(d.latency)
		}
		d.execute(cmd.draw)
	}
}

func (d *Device) execute(call gpucore.DrawCall) {
	for q := 0; q < call.Quads(); q++ {
		base := call.FirstVertex + q*gpucore.VerticesPerQuad
		tl := d.vertex(base)
		br := d.vertex(base + 2)
		pv := d.vertex(base + 3)
		d.composite(tl, br, pv)
		d.quads.Add(1)
	}
	d.draws.Add(1)
}

func (d *Device) vertex(i int) gpucore.VertexRecord {
	off := i * gpucore.VertexStride
	return gpucore.DecodeVertex(d.vertices[off : off+gpucore.VertexStride])
}

// composite draws one quad with the provoking vertex attributes.
// Quads with a non-positive width or height draw nothing.
func (d *Device) composite(tl, br, pv gpucore.VertexRecord) {
	if br.X <= tl.X || br.Y <= tl.Y {
		return
	}
	r := image.Rect(int(tl.X), int(tl.Y), int(br.X), int(br.Y)).Intersect(d.img.Bounds())
	if r.Empty() {
		return
	}
	cr, cg, cb, ca := pv.RGBA()
	src := image.NewUniform(color.RGBA{R: cr, G: cg, B: cb, A: ca})
	if !pv.Masked() {
		draw.Draw(d.img, r, src, image.Point{}, draw.Over)
		return
	}

	//nolint:gosec // G115: origins were written from int32 coordinates
	ox, oy := int(int32(pv.OriginX)), int(int32(pv.OriginY))
	stride := int(pv.MaskStride)
	rows := int(br.Y) - int(tl.Y)
	off := int(pv.MaskOffset)
	if stride <= 0 || off+stride*rows > len(d.mask) {
		d.maskFaults.Add(1)
		slogger().Warn("raster: mask outside mask buffer",
			"offset", off, "stride", stride, "rows", rows, "size", len(d.mask))
		return
	}
	m := &image.Alpha{
		Pix:    d.mask[off : off+stride*rows],
		Stride: stride,
		Rect:   image.Rect(ox, oy, ox+stride, oy+rows),
	}
	draw.DrawMask(d.img, r, src, image.Point{}, m, r.Min, draw.Over)
}

var _ gpucore.Device = (*Device)(nil)
