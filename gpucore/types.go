package gpucore

import (
	"fmt"
	"time"
)

// Fence is an opaque device fence handle. A nil Fence means "no outstanding
// GPU work" and must never be passed to a device.
type Fence any

// FenceStatus is the result of a single bounded fence poll.
type FenceStatus uint8

const (
	// FenceTimeoutExpired means the poll timeout elapsed before the fence
	// signaled. The caller polls again.
	FenceTimeoutExpired FenceStatus = iota

	// FenceAlreadySignaled means the fence had signaled before the poll began.
	FenceAlreadySignaled

	// FenceConditionSatisfied means the fence signaled during the poll.
	FenceConditionSatisfied

	// FenceWaitFailed means the driver reported an error for this poll.
	// It is never treated as completion.
	FenceWaitFailed
)

var fenceStatusNames = [...]string{
	FenceTimeoutExpired:     "TimeoutExpired",
	FenceAlreadySignaled:    "AlreadySignaled",
	FenceConditionSatisfied: "ConditionSatisfied",
	FenceWaitFailed:         "WaitFailed",
}

// String returns the status name.
func (s FenceStatus) String() string {
	if int(s) < len(fenceStatusNames) {
		return fenceStatusNames[s]
	}
	return fmt.Sprintf("FenceStatus(%d)", uint8(s))
}

// Signaled reports whether the status is one of the two completion codes.
func (s FenceStatus) Signaled() bool {
	return s == FenceAlreadySignaled || s == FenceConditionSatisfied
}

// ByteRange is a half-open byte interval [Lo, Hi).
type ByteRange struct {
	Lo, Hi int
}

// Empty reports whether the range covers no bytes.
func (r ByteRange) Empty() bool { return r.Hi <= r.Lo }

// Len returns the number of bytes in the range.
func (r ByteRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.Hi - r.Lo
}

// Union returns the smallest range covering r and o. Empty ranges are ignored.
func (r ByteRange) Union(o ByteRange) ByteRange {
	switch {
	case o.Empty():
		return r
	case r.Empty():
		return o
	}
	return ByteRange{Lo: min(r.Lo, o.Lo), Hi: max(r.Hi, o.Hi)}
}

// DrawCall describes one submission of pending quads.
type DrawCall struct {
	// FirstVertex is the index of the first vertex record in the vertex
	// buffer. Always a multiple of VerticesPerQuad.
	FirstVertex int

	// VertexCount is the number of vertex records to draw. Always a
	// multiple of VerticesPerQuad and never crosses the end of the buffer.
	VertexCount int

	// MaskDirty is the part of the mask buffer written since the previous
	// draw call. Devices that read the mask buffer in place can ignore it.
	MaskDirty ByteRange
}

// Quads returns the number of quads in the draw call.
func (c DrawCall) Quads() int { return c.VertexCount / VerticesPerQuad }

// FenceDevice is the fence half of a Device.
type FenceDevice interface {
	// CreateFence marks the current end of the submitted command stream.
	// It must not block.
	CreateFence() (Fence, error)

	// ClientWait waits up to timeout for the fence to signal.
	ClientWait(f Fence, timeout time.Duration) FenceStatus

	// DestroyFence releases the fence. The fence is not used afterwards.
	DestroyFence(f Fence)
}

// Device consumes the geometry a session streams.
//
// All methods are called from the session's producer goroutine. A device
// may execute draws asynchronously; it must not read vertex or mask memory
// outside the spans named by draw calls it has been given.
type Device interface {
	FenceDevice

	// AllocateVertexBuffer returns size bytes of memory shared with the
	// device for the lifetime of the session.
	AllocateVertexBuffer(size int) ([]byte, error)

	// AllocateMaskBuffer returns size bytes of mask memory shared with the
	// device for the lifetime of the session.
	AllocateMaskBuffer(size int) ([]byte, error)

	// Enable binds the program and both buffers.
	Enable() error

	// Draw submits one draw call.
	Draw(call DrawCall) error

	// Disable unbinds program state. Pending geometry has already been
	// flushed when it is called.
	Disable() error
}
