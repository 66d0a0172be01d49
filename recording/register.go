package recording

import (
	"github.com/gogpu/quadstream/backend"
	"github.com/gogpu/quadstream/gpucore"
)

func init() {
	backend.Register(backend.BackendRecording, func(backend.Config) (gpucore.Device, error) {
		return NewDevice(), nil
	})
}
