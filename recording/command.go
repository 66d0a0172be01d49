package recording

import (
	"fmt"
	"time"

	"github.com/gogpu/quadstream/gpucore"
)

// CommandType identifies the type of a recorded command.
type CommandType uint8

const (
	// Buffer commands
	CmdAllocateVertexBuffer CommandType = iota // Allocate the vertex ring memory
	CmdAllocateMaskBuffer                      // Allocate the mask memory

	// Program commands
	CmdEnable  // Bind program and buffers
	CmdDisable // Unbind program state

	// Draw commands
	CmdDraw // Draw a vertex span

	// Fence commands
	CmdCreateFence  // Place a fence
	CmdClientWait   // Poll a fence once
	CmdDestroyFence // Release a fence
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdAllocateVertexBuffer: "AllocateVertexBuffer",
	CmdAllocateMaskBuffer:   "AllocateMaskBuffer",
	CmdEnable:               "Enable",
	CmdDisable:              "Disable",
	CmdDraw:                 "Draw",
	CmdCreateFence:          "CreateFence",
	CmdClientWait:           "ClientWait",
	CmdDestroyFence:         "DestroyFence",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all recorded commands.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// --------------------------------------------------------------------------
// Buffer Commands
// --------------------------------------------------------------------------

// AllocateVertexBufferCommand records a vertex buffer allocation.
type AllocateVertexBufferCommand struct {
	// Size is the requested size in bytes.
	Size int
}

// Type implements Command.
func (AllocateVertexBufferCommand) Type() CommandType { return CmdAllocateVertexBuffer }

// AllocateMaskBufferCommand records a mask buffer allocation.
type AllocateMaskBufferCommand struct {
	// Size is the requested size in bytes.
	Size int
}

// Type implements Command.
func (AllocateMaskBufferCommand) Type() CommandType { return CmdAllocateMaskBuffer }

// --------------------------------------------------------------------------
// Program Commands
// --------------------------------------------------------------------------

// EnableCommand records program binding.
type EnableCommand struct{}

// Type implements Command.
func (EnableCommand) Type() CommandType { return CmdEnable }

// DisableCommand records program unbinding.
type DisableCommand struct{}

// Type implements Command.
func (DisableCommand) Type() CommandType { return CmdDisable }

// --------------------------------------------------------------------------
// Draw Commands
// --------------------------------------------------------------------------

// DrawCommand records one draw call together with a copy of the vertex
// records it covered at submission time.
type DrawCommand struct {
	gpucore.DrawCall

	// Vertices holds the decoded records of the drawn span.
	Vertices []gpucore.VertexRecord
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// --------------------------------------------------------------------------
// Fence Commands
// --------------------------------------------------------------------------

// CreateFenceCommand records fence placement.
type CreateFenceCommand struct {
	// Fence is the created fence.
	Fence *Fence
	// AfterDraws is the number of draw calls recorded before the fence.
	AfterDraws int
}

// Type implements Command.
func (CreateFenceCommand) Type() CommandType { return CmdCreateFence }

// ClientWaitCommand records one fence poll and its result.
type ClientWaitCommand struct {
	Fence   *Fence
	Timeout time.Duration
	Status  gpucore.FenceStatus
}

// Type implements Command.
func (ClientWaitCommand) Type() CommandType { return CmdClientWait }

// DestroyFenceCommand records fence release.
type DestroyFenceCommand struct {
	Fence *Fence
}

// Type implements Command.
func (DestroyFenceCommand) Type() CommandType { return CmdDestroyFence }

// --------------------------------------------------------------------------
// Fence
// --------------------------------------------------------------------------

// Fence is the fence handle issued by the recording device.
type Fence struct {
	// ID numbers fences in creation order, starting at 1.
	ID int

	// Polls counts ClientWait calls on this fence.
	Polls int

	destroyed bool
}

// Destroyed reports whether DestroyFence was called on the fence.
func (f *Fence) Destroyed() bool { return f.destroyed }

// String returns a short description of the fence.
func (f *Fence) String() string {
	return fmt.Sprintf("fence#%d", f.ID)
}
