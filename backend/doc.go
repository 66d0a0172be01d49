// Package backend is a registry of gpucore.Device factories.
//
// Device packages register a factory from their init function, so a
// program selects a device by name after importing the packages it wants:
//
//	import (
//		"github.com/gogpu/quadstream/backend"
//		_ "github.com/gogpu/quadstream/backend/raster"
//	)
//
//	dev, img, err := backend.Open(backend.Default(), backend.Config{Width: 640, Height: 480})
//
// img is non-nil when the device's render target can be read back.
//
// # Available Backends
//
//   - "raster": CPU compositing on a consumer goroutine (backend/raster)
//   - "recording": command log without output (recording)
//
// backend/wgpu is not registered: it needs a HAL device owned by the host.
package backend
