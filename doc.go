// Package quadstream streams small masked rectangles ("mask quads") into
// device-shared vertex memory and submits them for drawing while the
// device consumes earlier submissions concurrently.
//
// # Overview
//
// A Session owns two buffers allocated once through a gpucore.Device:
//
//   - the vertex ring, split into three equal regions, each fenced
//     separately. Quads are appended at the write cursor; at every region
//     boundary pending quads are flushed as one draw call, the completed
//     region is fenced and the region being entered is waited on if the
//     device may still read it.
//   - the mask buffer, split into four regions that hold 8-bit coverage
//     masks. Its fences are requested explicitly with QueueMaskFence by
//     whoever owns mask placement, usually a maskbuf.Allocator.
//
// The two fencing domains are independent. The only ordering between them
// is that a mask fence request flushes pending quads before the fence is
// placed, so the fence covers every quad that may read the region.
//
// # Quick Start
//
//	dev := raster.New(640, 480)
//	defer dev.Close()
//
//	s, err := quadstream.NewSession(dev)
//	if err != nil {
//	    return err
//	}
//	alloc := s.NewMaskAllocator()
//	if err := s.Enable(); err != nil {
//	    return err
//	}
//
//	off, _ := alloc.Allocate(w, h, coverage, w, 0)
//	s.SetColor(quadstream.Color{R: 0xFF, A: 0xFF})
//	_ = s.AddMaskQuad(x, y, int32(w), int32(h), off)
//
//	_ = s.Close()
//
// # Devices
//
// Devices implement gpucore.Device:
//   - backend/raster draws on a CPU consumer goroutine into an *image.RGBA
//   - backend/wgpu draws with a WGSL pipeline through github.com/gogpu/wgpu/hal
//   - recording logs every call, for tests
//
// Package backend selects the raster or recording device by name.
//
// # Concurrency
//
// A Session is used from one goroutine. The producer never waits on the
// device except at a region boundary whose region is still in use and in
// an explicit mask region wait; waits poll the device fence with a short
// timeout (WithPollTimeout) until it signals.
package quadstream
