package quadstream

import (
	"errors"

	"github.com/gogpu/quadstream/internal/ring"
	"github.com/gogpu/quadstream/maskbuf"
)

// Session errors.
var (
	// ErrBufferTooSmall is returned by NewSession when the vertex buffer
	// cannot hold three regions of at least one quad each.
	ErrBufferTooSmall = ring.ErrBufferTooSmall

	// ErrMaskBufferTooSmall is returned by NewSession when the mask buffer
	// cannot hold MaskRegionCount word-aligned regions.
	ErrMaskBufferTooSmall = maskbuf.ErrBufferTooSmall

	// ErrProgramNotReady is returned by Enable when the device could not
	// bind its program. The device error is wrapped alongside it.
	ErrProgramNotReady = errors.New("quadstream: program not ready")

	// ErrNotEnabled is returned when quads are drawn outside Enable/Disable.
	ErrNotEnabled = errors.New("quadstream: session not enabled")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("quadstream: session closed")

	// ErrInvalidRegion is returned for mask regions outside [0, MaskRegionCount).
	ErrInvalidRegion = errors.New("quadstream: mask region out of range")
)
