package maskbuf

import (
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
)

// FenceRequester is the session side of the mask fencing domain.
type FenceRequester interface {
	// QueueMaskFence flushes pending quads, fences fenceRegion and, when
	// waitRegion >= 0, waits for waitRegion and reports it available.
	QueueMaskFence(fenceRegion, waitRegion int) error

	// WaitMaskRegion waits for region's fence, if any, and reports it
	// available.
	WaitMaskRegion(region int) error
}

// Allocator bump-allocates masks in a Buffer and decides when mask regions
// are fenced and reused.
//
// When an allocation moves the cursor into a new region, the region just
// left is fenced, and the region two ahead of it is waited on if its fence is
// still outstanding. The buffer therefore always keeps one region of slack
// between the region being written and the oldest region the GPU may still
// read.
//
// The session reports waited regions through RegionAvailable; wire it with
// Session.SetRegionAvailable or use Session.NewMaskAllocator.
type Allocator struct {
	buf     *Buffer
	req     FenceRequester
	cursor  int
	pending [RegionCount]bool
	fences  int
}

// NewAllocator creates an allocator over buf.
func NewAllocator(buf *Buffer, req FenceRequester) *Allocator {
	return &Allocator{buf: buf, req: req}
}

// Buffer returns the underlying mask buffer.
func (a *Allocator) Buffer() *Buffer { return a.buf }

// Cursor returns the next free byte offset.
func (a *Allocator) Cursor() int { return a.cursor }

// Pending reports whether region still has an outstanding fence.
func (a *Allocator) Pending(region int) bool { return a.pending[region] }

// Fences returns the number of mask fences requested so far.
func (a *Allocator) Fences() int { return a.fences }

// RegionAvailable records that region's fence has been waited on.
func (a *Allocator) RegionAvailable(region int) {
	if region >= 0 && region < RegionCount {
		a.pending[region] = false
	}
}

// Allocate copies a w x h mask into the buffer and returns its byte offset.
// Row i of the mask starts at mask[off+scan*i]. A nil mask means full
// coverage and returns gpucore.NoMaskOffset without touching the buffer.
func (a *Allocator) Allocate(w, h int, mask []byte, scan, off int) (uint32, error) {
	if mask == nil {
		return gpucore.NoMaskOffset, nil
	}
	size := w * h
	if size < 0 {
		size = 0
	}
	l := a.buf.Layout()
	// A mask must end inside the region after the one it starts in, so
	// every region the cursor enters is checked before it is written.
	if size >= l.RegionSize {
		return 0, fmt.Errorf("%w: %dx%d needs %d bytes, region is %d", ErrMaskTooLarge, w, h, size, l.RegionSize)
	}

	if err := checkSource(w, h, mask, scan, off); err != nil {
		return 0, err
	}

	before := l.RegionOf(a.cursor)
	start := a.cursor
	if start+size >= l.Size {
		start = 0
	}
	after := l.RegionOf(start + size)

	if before != after {
		if err := a.crossRegion(before, after); err != nil {
			return 0, err
		}
	}

	if err := a.buf.WriteRows(start, w, h, mask, scan, off); err != nil {
		return 0, err
	}
	a.cursor = start + size
	//nolint:gosec // G115: start < l.Size which fits the buffer
	return uint32(start), nil
}

// crossRegion fences the region just left and makes sure the region being
// entered is no longer read by the GPU.
func (a *Allocator) crossRegion(before, after int) error {
	wait := (before + 2) % RegionCount
	if !a.pending[wait] {
		wait = -1
	}
	if err := a.req.QueueMaskFence(before, wait); err != nil {
		return fmt.Errorf("mask fence on region %d: %w", before, err)
	}
	a.pending[before] = true
	a.fences++
	if wait >= 0 {
		a.pending[wait] = false
	}

	if a.pending[after] {
		if err := a.req.WaitMaskRegion(after); err != nil {
			return fmt.Errorf("wait mask region %d: %w", after, err)
		}
		a.pending[after] = false
	}
	return nil
}
