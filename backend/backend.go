package backend

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/gogpu/quadstream/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Registered backend names.
const (
	// BackendRaster is the CPU compositing device in backend/raster.
	BackendRaster = "raster"

	// BackendRecording is the command-logging device in recording.
	BackendRecording = "recording"
)

// Config describes the target a device is opened for. Devices ignore
// fields that do not apply to them.
type Config struct {
	// Width and Height are the render target size in pixels.
	Width, Height int

	// Latency is a simulated per-draw delay for CPU devices.
	Latency time.Duration

	// Background fills the render target before drawing when non-nil.
	Background color.Color
}

// Imager is implemented by devices whose render target can be read back.
type Imager interface {
	// Finish blocks until every submitted draw has executed.
	Finish() error

	// Image returns the render target. Call Finish first.
	Image() *image.RGBA
}

// Open creates a device from the named factory and reports whether it can
// be read back as an image.
func Open(name string, cfg Config) (gpucore.Device, Imager, error) {
	dev, err := Get(name, cfg)
	if err != nil {
		return nil, nil, err
	}
	img, _ := dev.(Imager)
	return dev, img, nil
}
