package quadstream

import (
	"errors"
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
	"github.com/gogpu/quadstream/internal/fence"
	"github.com/gogpu/quadstream/internal/ring"
	"github.com/gogpu/quadstream/maskbuf"
)

// Capacities describes the buffer geometry a session derived from the
// requested sizes.
type Capacities struct {
	// RegionVertices is the number of vertices per vertex region.
	RegionVertices int

	// RingVertices is the total number of vertices in the ring.
	RingVertices int

	// VertexBufferBytes is the vertex memory actually allocated.
	VertexBufferBytes int

	// MaskRegionSize is the size of one mask region in bytes.
	MaskRegionSize int

	// MaskBufferBytes is the mask memory actually allocated.
	MaskBufferBytes int
}

// RegionQuads returns the number of quads per vertex region.
func (c Capacities) RegionQuads() int { return c.RegionVertices / gpucore.VerticesPerQuad }

// Session streams quads into a device-shared vertex ring and coordinates
// reuse of the vertex and mask buffers with device fences.
//
// A Session is driven by one producer goroutine; its methods are not safe
// for concurrent use. The device may consume draws asynchronously. The
// only blocking operations are fence waits, which happen when the ring is
// about to overwrite a region the device may still read and when a mask
// fence request names a region to wait on.
type Session struct {
	dev  gpucore.Device
	opts options
	gate *fence.Gate
	ring *ring.Ring
	mask *maskbuf.Buffer

	maskFences        [MaskRegionCount]gpucore.Fence
	onRegionAvailable func(region int)

	paint Color

	// Last color written to a provoking vertex.
	lastRG, lastBA uint32
	haveColor      bool

	enabled bool
	closed  bool
	stats   Stats
}

// NewSession allocates the vertex and mask buffers through dev and returns
// a session over them.
//
// The vertex buffer size is rounded down so that each of the three regions
// holds a whole number of quads; ErrBufferTooSmall is returned when a
// region cannot hold one quad. ErrMaskBufferTooSmall is returned when the
// mask buffer cannot hold MaskRegionCount word-aligned regions.
func NewSession(dev gpucore.Device, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	layout, err := ring.NewLayout(o.vertexBufferSize)
	if err != nil {
		return nil, err
	}
	maskLayout, err := maskbuf.NewLayout(o.maskBufferSize)
	if err != nil {
		return nil, err
	}

	propagateLogger(dev)

	vb, err := dev.AllocateVertexBuffer(layout.SizeBytes())
	if err != nil {
		return nil, fmt.Errorf("allocate vertex buffer: %w", err)
	}
	arena, err := ring.NewArena(vb, layout.Vertices)
	if err != nil {
		return nil, err
	}
	mb, err := dev.AllocateMaskBuffer(maskLayout.Size)
	if err != nil {
		return nil, fmt.Errorf("allocate mask buffer: %w", err)
	}
	mask, err := maskbuf.NewBuffer(mb, maskLayout)
	if err != nil {
		return nil, err
	}

	gate := fence.New(dev, o.pollTimeout, Logger)
	r, err := ring.New(layout, arena, gate)
	if err != nil {
		return nil, err
	}

	s := &Session{
		dev:               dev,
		opts:              o,
		gate:              gate,
		ring:              r,
		mask:              mask,
		onRegionAvailable: o.onRegionAvailable,
		paint:             Color{A: 0xFF},
	}
	c := s.Capacities()
	Logger().Info("quadstream: session created",
		"regionVertices", c.RegionVertices,
		"ringVertices", c.RingVertices,
		"maskRegionSize", c.MaskRegionSize,
		"pollTimeout", o.pollTimeout)
	return s, nil
}

// Capacities returns the derived buffer geometry.
func (s *Session) Capacities() Capacities {
	l := s.ring.Layout()
	ml := s.mask.Layout()
	return Capacities{
		RegionVertices:    l.RegionVertices,
		RingVertices:      l.Vertices,
		VertexBufferBytes: l.SizeBytes(),
		MaskRegionSize:    ml.RegionSize,
		MaskBufferBytes:   ml.Size,
	}
}

// Device returns the device the session draws to.
func (s *Session) Device() gpucore.Device { return s.dev }

// MaskBuffer returns the mask buffer. Masks must be written through
// Buffer.Write or Buffer.WriteRows so their bytes reach devices that
// upload the mask buffer per draw.
func (s *Session) MaskBuffer() *maskbuf.Buffer { return s.mask }

// Enabled reports whether the session is between Enable and Disable.
func (s *Session) Enabled() bool { return s.enabled }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Polls = s.gate.Polls()
	st.PollFailures = s.gate.Failures()
	return st
}

// Enable binds the device program and buffers. Quads may be drawn until
// Disable. A device failure is reported as ErrProgramNotReady.
func (s *Session) Enable() error {
	if s.closed {
		return ErrClosed
	}
	if s.enabled {
		return nil
	}
	if err := s.dev.Enable(); err != nil {
		return fmt.Errorf("%w: %w", ErrProgramNotReady, err)
	}
	s.enabled = true
	return nil
}

// Disable flushes pending quads and unbinds the device program.
func (s *Session) Disable() error {
	if s.closed {
		return ErrClosed
	}
	if !s.enabled {
		return nil
	}
	flushErr := s.flush()
	s.enabled = false
	if err := s.dev.Disable(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("disable: %w", err))
	}
	return flushErr
}

// Close disables the session and waits for every outstanding vertex and
// mask fence, after which the device no longer reads session memory.
// Mask regions drained by Close are not reported to the region-available
// callback. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := s.Disable()
	s.ring.Drain()
	for i, f := range s.maskFences {
		s.maskFences[i] = nil
		s.gate.Wait(f)
	}
	s.closed = true
	Logger().Info("quadstream: session closed", "stats", s.Stats().String())
	return err
}

func (s *Session) checkDraw() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.enabled:
		return ErrNotEnabled
	}
	return nil
}

// SetColor sets the paint color used by AddMaskQuad.
func (s *Session) SetColor(c Color) { s.paint = c }

// Color returns the paint color used by AddMaskQuad.
func (s *Session) Color() Color { return s.paint }

// AddMaskQuad appends a w x h quad at (x, y) in the current paint color.
// maskOffset is the byte offset of a w-wide mask in the mask buffer, or
// gpucore.NoMaskOffset for full coverage.
func (s *Session) AddMaskQuad(x, y, w, h int32, maskOffset uint32) error {
	return s.AddQuad(Quad{
		X: x, Y: y, W: w, H: h,
		//nolint:gosec // G115: negative widths draw nothing
		Mask:  MaskRef{Offset: maskOffset, Stride: uint32(max(w, 0))},
		Color: s.paint,
	})
}

// AddQuad appends q to the vertex ring. When q is the first quad of a
// region, pending quads are flushed, the region just completed is fenced,
// and the call blocks until the device has finished reading the region
// being entered.
func (s *Session) AddQuad(q Quad) error {
	if err := s.checkDraw(); err != nil {
		return err
	}
	return s.append(q)
}

// Flush submits all pending quads in one draw call. It is a no-op when no
// quads are pending.
func (s *Session) Flush() error {
	if s.closed {
		return ErrClosed
	}
	return s.flush()
}
