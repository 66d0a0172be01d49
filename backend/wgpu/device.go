//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quadstream/gpucore"
)

// Device errors.
var (
	// ErrNilDevice is returned when a nil HAL device or queue is given.
	ErrNilDevice = errors.New("wgpu: HAL device or queue is nil")

	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose HAL types.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL device and queue")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("wgpu: device closed")

	// ErrNotEnabled is returned by Draw outside Enable/Disable.
	ErrNotEnabled = errors.New("wgpu: program not enabled")

	// ErrNoBuffers is returned by Enable before both buffers are allocated.
	ErrNoBuffers = errors.New("wgpu: buffers not allocated")

	// ErrNoTarget is returned by Draw before SetTarget.
	ErrNoTarget = errors.New("wgpu: no render target")
)

// DefaultCloseTimeout bounds the wait for submitted work in Close.
const DefaultCloseTimeout = 5 * time.Second

// Option configures a Device.
type Option func(*Device)

// WithTargetFormat sets the color format of render targets. The default is
// gputypes.TextureFormatBGRA8Unorm.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(d *Device) {
		d.format = f
	}
}

// WithCloseTimeout bounds the wait for submitted work in Close.
// Non-positive values are ignored.
func WithCloseTimeout(t time.Duration) Option {
	return func(d *Device) {
		if t > 0 {
			d.closeTimeout = t
		}
	}
}

// Fence is the fence handle of a wgpu device. It wraps a HAL fence
// signaled by an empty submission, and owns the command buffers submitted
// before it until it is observed signaled.
type Fence struct {
	fence    hal.Fence
	retire   []hal.CommandBuffer
	signaled bool
}

// Device is a gpucore.Device backed by a HAL device and queue.
//
// All methods must be called from one goroutine. The HAL device is not
// owned and is not destroyed by Close.
type Device struct {
	device hal.Device
	queue  hal.Queue

	format       gputypes.TextureFormat
	closeTimeout time.Duration

	target        hal.TextureView
	width, height uint32

	pipe        *fillPipeline
	vertexBuf   hal.Buffer
	maskBuf     hal.Buffer
	viewportBuf hal.Buffer
	bindGroup   hal.BindGroup

	vertices []byte
	mask     []byte

	// Command buffers submitted since the last CreateFence.
	inflight []hal.CommandBuffer

	enabled bool
	closed  bool

	draws   uint64
	quads   uint64
	uploads uint64
}

// New creates a device drawing with the given HAL device and queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	d := &Device{
		device:       device,
		queue:        queue,
		format:       gputypes.TextureFormatBGRA8Unorm,
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewFromProvider creates a device on the GPU device of a host provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The target format defaults to the provider's
// surface format when it is defined.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithTargetFormat(f)}, opts...)
	}
	return New(device, queue, opts...)
}

// SetLogger sets the logger used by the device.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// SetTarget sets the texture view draws render into and its size in
// pixels. Vertex positions are in pixels of this target.
func (d *Device) SetTarget(view hal.TextureView, width, height uint32) {
	d.target = view
	d.width, d.height = width, height
	if d.viewportBuf != nil {
		d.queue.WriteBuffer(d.viewportBuf, 0, makeViewportUniform(width, height))
	}
}

// Format returns the render target format.
func (d *Device) Format() gputypes.TextureFormat { return d.format }

// AllocateVertexBuffer implements gpucore.Device.
func (d *Device) AllocateVertexBuffer(size int) ([]byte, error) {
	buf, shadow, err := d.allocate("quadstream_vertices", d.vertexBuf, size)
	if err != nil {
		return nil, err
	}
	d.vertexBuf, d.vertices = buf, shadow
	return shadow, nil
}

// AllocateMaskBuffer implements gpucore.Device.
func (d *Device) AllocateMaskBuffer(size int) ([]byte, error) {
	buf, shadow, err := d.allocate("quadstream_mask", d.maskBuf, size)
	if err != nil {
		return nil, err
	}
	d.maskBuf, d.mask = buf, shadow
	return shadow, nil
}

// allocate creates a storage buffer of size bytes rounded up to whole
// words, replacing old, and returns it with its CPU shadow.
func (d *Device) allocate(label string, old hal.Buffer, size int) (hal.Buffer, []byte, error) {
	if d.closed {
		return nil, nil, ErrClosed
	}
	if size <= 0 {
		return nil, nil, fmt.Errorf("wgpu: %s size %d", label, size)
	}
	d.destroyBindGroup()
	if old != nil {
		d.device.DestroyBuffer(old)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64((size + 3) &^ 3), //nolint:gosec // G115: size is positive
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, make([]byte, size), nil
}

// Enable implements gpucore.Device. The pipeline and bind group are
// created on first use.
func (d *Device) Enable() error {
	switch {
	case d.closed:
		return ErrClosed
	case d.vertexBuf == nil || d.maskBuf == nil:
		return ErrNoBuffers
	}
	if d.pipe == nil {
		p, err := createFillPipeline(d.device, d.format)
		if err != nil {
			return err
		}
		d.pipe = p
	}
	if d.viewportBuf == nil {
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "quadstream_viewport",
			Size:  viewportUniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create viewport uniform: %w", err)
		}
		d.viewportBuf = buf
		d.queue.WriteBuffer(d.viewportBuf, 0, makeViewportUniform(d.width, d.height))
	}
	if d.bindGroup == nil {
		bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "mask_fill_bind",
			Layout: d.pipe.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: bindingViewport, Resource: gputypes.BufferBinding{
					Buffer: d.viewportBuf.NativeHandle(), Offset: 0, Size: viewportUniformSize,
				}},
				{Binding: bindingVertices, Resource: gputypes.BufferBinding{
					Buffer: d.vertexBuf.NativeHandle(), Offset: 0, Size: wordAligned(len(d.vertices)),
				}},
				{Binding: bindingMask, Resource: gputypes.BufferBinding{
					Buffer: d.maskBuf.NativeHandle(), Offset: 0, Size: wordAligned(len(d.mask)),
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create bind group: %w", err)
		}
		d.bindGroup = bg
	}
	d.enabled = true
	return nil
}

// Disable implements gpucore.Device.
func (d *Device) Disable() error {
	d.enabled = false
	return nil
}

// Draw implements gpucore.Device. It uploads the vertex span and the dirty
// mask range, then submits one render pass.
func (d *Device) Draw(call gpucore.DrawCall) error {
	switch {
	case d.closed:
		return ErrClosed
	case !d.enabled:
		return ErrNotEnabled
	case d.target == nil:
		return ErrNoTarget
	}
	lo := call.FirstVertex * gpucore.VertexStride
	hi := lo + call.VertexCount*gpucore.VertexStride
	if call.FirstVertex < 0 || hi > len(d.vertices) {
		return fmt.Errorf("wgpu: draw [%d,%d) outside vertex buffer", call.FirstVertex, call.FirstVertex+call.VertexCount)
	}
	if call.VertexCount == 0 {
		return nil
	}

	//nolint:gosec // G115: offsets are bounded by the buffer sizes
	d.queue.WriteBuffer(d.vertexBuf, uint64(lo), d.vertices[lo:hi])
	if r := call.MaskDirty; !r.Empty() {
		mlo := max(r.Lo, 0) &^ 3
		mhi := min(r.Hi, len(d.mask))
		if mhi > mlo {
			d.upload(d.maskBuf, mlo, d.mask[mlo:mhi])
		}
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "quadstream_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("quadstream_draw"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "quadstream_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    d.target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	first, count := quadDrawRange(call.FirstVertex, call.VertexCount)
	rp.SetPipeline(d.pipe.pipeline)
	rp.SetBindGroup(0, d.bindGroup, nil)
	rp.Draw(count, 1, first, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, nil, 0); err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: %w", err)
	}
	d.inflight = append(d.inflight, cmdBuf)
	d.draws++
	d.quads += uint64(call.Quads()) //nolint:gosec // G115: quad count is non-negative
	slogger().Debug("wgpu: draw submitted", "first", call.FirstVertex, "quads", call.Quads())
	return nil
}

// upload writes data at off, padding the tail to a whole word from the
// shadow buffer.
func (d *Device) upload(buf hal.Buffer, off int, data []byte) {
	if n := len(data); n&3 != 0 {
		padded := make([]byte, (n+3)&^3)
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(buf, uint64(off), data) //nolint:gosec // G115: off is non-negative
	d.uploads++
}

// CreateFence implements gpucore.Device. The fence is signaled by an empty
// submission queued after every draw submitted so far.
func (d *Device) CreateFence() (gpucore.Fence, error) {
	if d.closed {
		return nil, ErrClosed
	}
	hf, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	if err := d.queue.Submit(nil, hf, 1); err != nil {
		d.device.DestroyFence(hf)
		return nil, fmt.Errorf("submit fence: %w", err)
	}
	f := &Fence{fence: hf, retire: d.inflight}
	d.inflight = nil
	return f, nil
}

// ClientWait implements gpucore.Device.
func (d *Device) ClientWait(f gpucore.Fence, timeout time.Duration) gpucore.FenceStatus {
	wf, ok := f.(*Fence)
	if !ok || wf == nil || wf.fence == nil {
		return gpucore.FenceWaitFailed
	}
	if wf.signaled {
		return gpucore.FenceAlreadySignaled
	}
	done, err := d.device.Wait(wf.fence, 1, timeout)
	switch {
	case err != nil:
		slogger().Warn("wgpu: fence wait failed", "err", err)
		return gpucore.FenceWaitFailed
	case !done:
		return gpucore.FenceTimeoutExpired
	}
	wf.signaled = true
	d.free(wf.retire)
	wf.retire = nil
	return gpucore.FenceConditionSatisfied
}

// DestroyFence implements gpucore.Device. Command buffers the fence did not
// retire pass to the next fence.
func (d *Device) DestroyFence(f gpucore.Fence) {
	wf, ok := f.(*Fence)
	if !ok || wf == nil || wf.fence == nil {
		return
	}
	if len(wf.retire) > 0 {
		d.inflight = append(wf.retire, d.inflight...)
		wf.retire = nil
	}
	d.device.DestroyFence(wf.fence)
	wf.fence = nil
}

func (d *Device) free(bufs []hal.CommandBuffer) {
	for _, cb := range bufs {
		d.device.FreeCommandBuffer(cb)
	}
}

// Close waits for submitted work and releases every GPU object the device
// created. Close is idempotent.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	var err error
	if len(d.inflight) > 0 {
		err = d.drain()
	}
	d.free(d.inflight)
	d.inflight = nil
	d.closed = true
	d.enabled = false
	d.destroyBindGroup()
	for _, b := range []*hal.Buffer{&d.vertexBuf, &d.maskBuf, &d.viewportBuf} {
		if *b != nil {
			d.device.DestroyBuffer(*b)
			*b = nil
		}
	}
	if d.pipe != nil {
		d.pipe.destroy(d.device)
		d.pipe = nil
	}
	slogger().Debug("wgpu: device closed", "draws", d.draws, "quads", d.quads, "uploads", d.uploads)
	return err
}

// drain waits up to the close timeout for every in-flight submission.
func (d *Device) drain() error {
	f, err := d.CreateFence()
	if err != nil {
		return err
	}
	defer d.DestroyFence(f)
	if st := d.ClientWait(f, d.closeTimeout); !st.Signaled() {
		return fmt.Errorf("wgpu: drain: fence %v", st)
	}
	return nil
}

func (d *Device) destroyBindGroup() {
	if d.bindGroup != nil {
		d.device.DestroyBindGroup(d.bindGroup)
		d.bindGroup = nil
	}
}

// Draws returns the number of render passes submitted.
func (d *Device) Draws() uint64 { return d.draws }

// Quads returns the number of quads submitted.
func (d *Device) Quads() uint64 { return d.quads }

// Uploads returns the number of mask uploads performed.
func (d *Device) Uploads() uint64 { return d.uploads }

// Inflight returns the number of submitted command buffers not yet retired
// by a signaled fence.
func (d *Device) Inflight() int { return len(d.inflight) }

func wordAligned(n int) uint64 {
	return uint64((n + 3) &^ 3) //nolint:gosec // G115: n is a positive buffer size
}

var _ gpucore.Device = (*Device)(nil)
