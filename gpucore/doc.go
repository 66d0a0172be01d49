// Package gpucore defines the contract between a quadstream session and the
// GPU device that consumes its geometry.
//
// The session owns all streaming state (cursors, region fences, mask
// fences). A [Device] only provides the primitives the session needs:
//
//   - one-time allocation of the vertex and mask buffers, returned as
//     CPU-visible memory that stays valid for the whole session
//   - Enable/Disable around a batch of draws (program and buffer binding)
//   - Draw of a contiguous vertex span
//   - fences: create, poll with a bounded timeout, destroy
//
// Devices in this module:
//
//	+--------------------+-----------------------------------------------+
//	| recording.Device   | logs every call; scriptable fence behaviour   |
//	| raster.Device      | CPU consumer goroutine, composites into RGBA  |
//	| wgpu.Device        | gogpu/wgpu HAL, WGSL vertex-pulling pipeline  |
//	+--------------------+-----------------------------------------------+
//
// # Vertex records
//
// Every vertex is a fixed 32-byte [VertexRecord]. A quad is 4 consecutive
// records written in top-left, top-right, bottom-right, bottom-left order.
// Shading is flat: only the last record of a quad (the provoking vertex)
// carries color and mask data, the other three carry only a position.
package gpucore
