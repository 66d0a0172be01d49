package quadstream

import (
	"time"

	"github.com/gogpu/quadstream/internal/fence"
	"github.com/gogpu/quadstream/maskbuf"
)

// Buffer geometry defaults.
const (
	// MaskRegionCount is the number of independently fenced mask regions.
	MaskRegionCount = maskbuf.RegionCount

	// DefaultMaskRegionSize is the default size of one mask region (1 MiB).
	DefaultMaskRegionSize = 1 << 20

	// DefaultMaskBufferSize is the default mask buffer size (4 MiB).
	DefaultMaskBufferSize = DefaultMaskRegionSize * MaskRegionCount

	// DefaultVertexBufferSize is the default vertex buffer size (1 MiB,
	// 10920 vertices per region).
	DefaultVertexBufferSize = DefaultMaskBufferSize / 4

	// DefaultPollTimeout is the default per-poll fence wait timeout.
	DefaultPollTimeout = fence.DefaultPollTimeout
)

// Option configures a Session during creation.
//
// Example:
//
//	s, err := quadstream.NewSession(dev,
//	    quadstream.WithVertexBufferSize(256<<10),
//	    quadstream.WithRegionAvailable(func(region int) { ... }),
//	)
type Option func(*options)

// options holds optional configuration for Session creation.
type options struct {
	vertexBufferSize  int
	maskBufferSize    int
	pollTimeout       time.Duration
	onRegionAvailable func(region int)
}

// defaultOptions returns the default session options.
func defaultOptions() options {
	return options{
		vertexBufferSize: DefaultVertexBufferSize,
		maskBufferSize:   DefaultMaskBufferSize,
		pollTimeout:      DefaultPollTimeout,
	}
}

// WithVertexBufferSize sets the raw vertex buffer size in bytes. The usable
// part is rounded down so each of the three regions holds whole quads.
// Non-positive values are ignored.
func WithVertexBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.vertexBufferSize = n
		}
	}
}

// WithMaskBufferSize sets the mask buffer size in bytes. It is split into
// MaskRegionCount word-aligned regions. Non-positive values are ignored.
func WithMaskBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maskBufferSize = n
		}
	}
}

// WithPollTimeout sets the timeout of a single fence poll. Waits retry
// polls of this length until the fence signals. Non-positive values are
// ignored.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithRegionAvailable sets the callback invoked when a mask region has been
// waited on and may be overwritten. The callback runs on the goroutine that
// called QueueMaskFence or WaitMaskRegion, before that call returns.
func WithRegionAvailable(fn func(region int)) Option {
	return func(o *options) {
		o.onRegionAvailable = fn
	}
}
