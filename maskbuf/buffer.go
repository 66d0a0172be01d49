// Package maskbuf manages the mask coverage buffer shared between a
// quadstream session and the code that produces coverage masks.
//
// The buffer is split into RegionCount equal regions. Each region is
// fenced independently by the session (Session.QueueMaskFence); which
// region is reused when is decided by the owner of the buffer, normally an
// [Allocator].
//
// Mask bytes are 8-bit coverage values, one per pixel, stored row by row
// with a row stride equal to the mask width.
package maskbuf

import (
	"errors"
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
)

// RegionCount is the number of independently fenced mask regions.
const RegionCount = 4

// Mask buffer errors.
var (
	// ErrBufferTooSmall is returned when the buffer cannot hold RegionCount
	// word-aligned regions.
	ErrBufferTooSmall = errors.New("maskbuf: mask buffer too small")

	// ErrMaskTooLarge is returned when a single mask is not smaller than a region.
	ErrMaskTooLarge = errors.New("maskbuf: mask larger than a region")

	// ErrOutOfRange is returned for writes outside the buffer or reads
	// outside the source slice.
	ErrOutOfRange = errors.New("maskbuf: write out of range")
)

// Layout is the region geometry of a mask buffer.
type Layout struct {
	// RegionSize is the size of one region in bytes, a multiple of 4.
	RegionSize int

	// Size is RegionCount * RegionSize.
	Size int
}

// NewLayout derives the layout for a raw buffer of sizeBytes. Regions are
// rounded down to whole 32-bit words because shaders read the buffer as an
// array of u32.
func NewLayout(sizeBytes int) (Layout, error) {
	region := sizeBytes / RegionCount
	region -= region % 4
	if region < 4 {
		return Layout{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrBufferTooSmall, sizeBytes, RegionCount*4)
	}
	return Layout{RegionSize: region, Size: region * RegionCount}, nil
}

// RegionOf returns the region containing byte offset off.
func (l Layout) RegionOf(off int) int { return off / l.RegionSize }

// Buffer is the device-shared mask memory plus a record of which bytes were
// written since the last draw call.
type Buffer struct {
	data   []byte
	layout Layout
	dirty  gpucore.ByteRange
}

// NewBuffer wraps data, which must hold at least l.Size bytes.
func NewBuffer(data []byte, l Layout) (*Buffer, error) {
	if len(data) < l.Size {
		return nil, fmt.Errorf("%w: have %d bytes, layout needs %d", ErrBufferTooSmall, len(data), l.Size)
	}
	return &Buffer{data: data[:l.Size], layout: l}, nil
}

// Layout returns the buffer layout.
func (b *Buffer) Layout() Layout { return b.layout }

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the underlying memory. Writes through the returned slice
// are not tracked as dirty; use Write or WriteRows.
func (b *Buffer) Bytes() []byte { return b.data }

// Write copies p to offset off.
func (b *Buffer) Write(off int, p []byte) error {
	if off < 0 || off+len(p) > len(b.data) {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, off, off+len(p), len(b.data))
	}
	copy(b.data[off:], p)
	b.markDirty(off, off+len(p))
	return nil
}

// WriteRows copies an h-row, w-column mask from src into the buffer at off
// with a destination stride of w. Row i of the source starts at
// src[srcOff+scan*i].
func (b *Buffer) WriteRows(off, w, h int, src []byte, scan, srcOff int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if off < 0 || off+w*h > len(b.data) {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, off, off+w*h, len(b.data))
	}
	if err := checkSource(w, h, src, scan, srcOff); err != nil {
		return err
	}
	for i := 0; i < h; i++ {
		row := srcOff + scan*i
		copy(b.data[off+w*i:off+w*(i+1)], src[row:row+w])
	}
	b.markDirty(off, off+w*h)
	return nil
}

// Dirty returns the byte range written since the last ClearDirty.
func (b *Buffer) Dirty() gpucore.ByteRange { return b.dirty }

// ClearDirty forgets the dirty range, after a draw call has carried it.
func (b *Buffer) ClearDirty() { b.dirty = gpucore.ByteRange{} }

func (b *Buffer) markDirty(lo, hi int) {
	b.dirty = b.dirty.Union(gpucore.ByteRange{Lo: lo, Hi: hi})
}

// checkSource reports whether a w x h mask with row pitch scan fits in src
// starting at srcOff.
func checkSource(w, h int, src []byte, scan, srcOff int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if srcOff < 0 || scan < w || srcOff+scan*(h-1)+w > len(src) {
		return fmt.Errorf("%w: source %dx%d scan %d at %d from %d bytes", ErrOutOfRange, w, h, scan, srcOff, len(src))
	}
	return nil
}
