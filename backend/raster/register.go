package raster

import (
	"fmt"

	"github.com/gogpu/quadstream/backend"
	"github.com/gogpu/quadstream/gpucore"
)

func init() {
	backend.Register(backend.BackendRaster, func(cfg backend.Config) (gpucore.Device, error) {
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, fmt.Errorf("raster: invalid target size %dx%d", cfg.Width, cfg.Height)
		}
		opts := []Option{WithLatency(cfg.Latency)}
		if cfg.Background != nil {
			opts = append(opts, WithBackground(cfg.Background))
		}
		return New(cfg.Width, cfg.Height, opts...), nil
	})
}
