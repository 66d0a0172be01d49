// Package recording provides a gpucore.Device that records every call it
// receives instead of executing it.
//
// The recording device is the test double for quadstream sessions: tests
// drive a session and then inspect the command log to check draw spans,
// fence placement, waits and destruction. Fence behaviour is scriptable so
// tests can simulate a slow consumer or a failing driver.
//
// # Architecture
//
// Every Device method appends one typed Command to the log:
//   - Buffer commands (AllocateVertexBuffer, AllocateMaskBuffer)
//   - Program commands (Enable, Disable)
//   - Draw commands (Draw)
//   - Fence commands (CreateFence, ClientWait, DestroyFence)
//
// Fences are *Fence values with sequential IDs. A fence is live from
// CreateFence until DestroyFence; LiveFences reports leaks.
//
// Importing the package registers the "recording" backend.
//
// # Example
//
//	dev := recording.NewDevice()
//	dev.Script = recording.SignalAfter(3) // 2 timeouts, then signaled
//
//	s, _ := quadstream.NewSession(dev)
//	_ = s.Enable()
//	_ = s.AddQuad(quadstream.Quad{W: 4, H: 4, Mask: quadstream.NoMask})
//	_ = s.Flush()
//
//	for _, d := range dev.Draws() {
//	    fmt.Println(d.FirstVertex, d.VertexCount)
//	}
package recording
