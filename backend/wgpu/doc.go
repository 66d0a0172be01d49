//go:build !nogpu

// Package wgpu provides a gpucore.Device that draws mask quads with a WGSL
// render pipeline through github.com/gogpu/wgpu/hal.
//
// The session writes vertex and mask data into CPU shadow buffers returned
// by AllocateVertexBuffer and AllocateMaskBuffer. Each Draw uploads the
// vertex span it names and the mask bytes written since the previous draw,
// then records one render pass that loads the current target contents.
// Vertices are pulled from a storage buffer in the vertex shader, so the
// four records of a quad expand to two triangles without an index buffer.
//
// Session fences map onto HAL fences signaled by an empty submission, so a
// fence covers every draw submitted before it.
//
// # Example
//
//	dev, err := wgpu.New(halDevice, halQueue)
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//	dev.SetTarget(view, width, height)
//
//	s, err := quadstream.NewSession(dev)
//	...
//
// Hosts that own the GPU device (such as gogpu) pass their provider to
// NewFromProvider instead.
package wgpu
