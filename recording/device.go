package recording

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/quadstream/gpucore"
)

// ErrNotAllocated is returned by Draw before both buffers are allocated.
var ErrNotAllocated = errors.New("recording: buffers not allocated")

// ScriptFunc decides the status of the n-th poll (starting at 1) of a fence.
type ScriptFunc func(f *Fence, poll int) gpucore.FenceStatus

// SignalAfter returns a script in which every fence reports
// FenceTimeoutExpired for its first n-1 polls and FenceConditionSatisfied
// from the n-th poll on.
func SignalAfter(n int) ScriptFunc {
	return func(_ *Fence, poll int) gpucore.FenceStatus {
		if poll < n {
			return gpucore.FenceTimeoutExpired
		}
		return gpucore.FenceConditionSatisfied
	}
}

// Device is a gpucore.Device that records every call.
//
// Device is not safe for concurrent use, matching the single producer
// goroutine contract of gpucore.Device.
type Device struct {
	// Script decides fence poll results. Nil means every poll succeeds.
	Script ScriptFunc

	// EnableErr, when set, is returned by Enable.
	EnableErr error

	// DrawErr, when set, is returned by Draw. The draw is still recorded.
	DrawErr error

	// FenceErr, when set, is returned by CreateFence.
	FenceErr error

	// KeepVertices controls whether DrawCommand carries decoded vertices.
	KeepVertices bool

	commands []Command
	vertices []byte
	mask     []byte
	fences   []*Fence
	draws    int
}

// NewDevice creates a recording device that keeps decoded vertices.
func NewDevice() *Device {
	return &Device{KeepVertices: true}
}

// AllocateVertexBuffer implements gpucore.Device.
func (d *Device) AllocateVertexBuffer(size int) ([]byte, error) {
	d.record(AllocateVertexBufferCommand{Size: size})
	if size <= 0 {
		return nil, fmt.Errorf("recording: invalid vertex buffer size %d", size)
	}
	d.vertices = make([]byte, size)
	return d.vertices, nil
}

// AllocateMaskBuffer implements gpucore.Device.
func (d *Device) AllocateMaskBuffer(size int) ([]byte, error) {
	d.record(AllocateMaskBufferCommand{Size: size})
	if size <= 0 {
		return nil, fmt.Errorf("recording: invalid mask buffer size %d", size)
	}
	d.mask = make([]byte, size)
	return d.mask, nil
}

// Enable implements gpucore.Device.
func (d *Device) Enable() error {
	d.record(EnableCommand{})
	return d.EnableErr
}

// Disable implements gpucore.Device.
func (d *Device) Disable() error {
	d.record(DisableCommand{})
	return nil
}

// Draw implements gpucore.Device.
func (d *Device) Draw(call gpucore.DrawCall) error {
	if d.vertices == nil || d.mask == nil {
		return ErrNotAllocated
	}
	cmd := DrawCommand{DrawCall: call}
	if d.KeepVertices {
		cmd.Vertices = make([]gpucore.VertexRecord, call.VertexCount)
		for i := range cmd.Vertices {
			off := (call.FirstVertex + i) * gpucore.VertexStride
			cmd.Vertices[i] = gpucore.DecodeVertex(d.vertices[off : off+gpucore.VertexStride])
		}
	}
	d.record(cmd)
	if d.DrawErr != nil {
		return d.DrawErr
	}
	d.draws++
	return nil
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence() (gpucore.Fence, error) {
	if d.FenceErr != nil {
		return nil, d.FenceErr
	}
	f := &Fence{ID: len(d.fences) + 1}
	d.fences = append(d.fences, f)
	d.record(CreateFenceCommand{Fence: f, AfterDraws: d.draws})
	return f, nil
}

// ClientWait implements gpucore.Device.
func (d *Device) ClientWait(f gpucore.Fence, timeout time.Duration) gpucore.FenceStatus {
	rf, ok := f.(*Fence)
	if !ok || rf.destroyed {
		d.record(ClientWaitCommand{Fence: rf, Timeout: timeout, Status: gpucore.FenceWaitFailed})
		return gpucore.FenceWaitFailed
	}
	rf.Polls++
	status := gpucore.FenceConditionSatisfied
	if d.Script != nil {
		status = d.Script(rf, rf.Polls)
	}
	d.record(ClientWaitCommand{Fence: rf, Timeout: timeout, Status: status})
	return status
}

// DestroyFence implements gpucore.Device.
func (d *Device) DestroyFence(f gpucore.Fence) {
	rf, ok := f.(*Fence)
	if !ok {
		return
	}
	rf.destroyed = true
	d.record(DestroyFenceCommand{Fence: rf})
}

func (d *Device) record(c Command) { d.commands = append(d.commands, c) }

// Commands returns the command log.
func (d *Device) Commands() []Command { return d.commands }

// Reset clears the command log. Fences and buffers are kept.
func (d *Device) Reset() { d.commands = nil }

// Count returns the number of recorded commands of type t.
func (d *Device) Count(t CommandType) int {
	n := 0
	for _, c := range d.commands {
		if c.Type() == t {
			n++
		}
	}
	return n
}

// Draws returns the recorded draw commands in order.
func (d *Device) Draws() []DrawCommand {
	var out []DrawCommand
	for _, c := range d.commands {
		if dc, ok := c.(DrawCommand); ok {
			out = append(out, dc)
		}
	}
	return out
}

// Fences returns every fence created so far.
func (d *Device) Fences() []*Fence { return d.fences }

// LiveFences returns the fences that were created but not destroyed.
func (d *Device) LiveFences() []*Fence {
	var out []*Fence
	for _, f := range d.fences {
		if !f.destroyed {
			out = append(out, f)
		}
	}
	return out
}

// VertexBuffer returns the allocated vertex memory.
func (d *Device) VertexBuffer() []byte { return d.vertices }

// MaskBuffer returns the allocated mask memory.
func (d *Device) MaskBuffer() []byte { return d.mask }

var _ gpucore.Device = (*Device)(nil)
