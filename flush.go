package quadstream

import (
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
)

// flush issues one draw call covering every quad appended since the last
// flush. The draw carries the mask bytes written since the previous draw.
// A write cursor at the physical end of the ring wraps to zero.
func (s *Session) flush() error {
	first, count := s.ring.Span()
	if count == 0 {
		return nil
	}
	if !s.enabled {
		return ErrNotEnabled
	}

	call := gpucore.DrawCall{
		FirstVertex: first,
		VertexCount: count,
		MaskDirty:   s.mask.Dirty(),
	}
	if err := s.dev.Draw(call); err != nil {
		return fmt.Errorf("draw %d vertices at %d: %w", count, first, err)
	}
	s.mask.ClearDirty()
	s.ring.MarkFlushed()

	s.stats.Draws++
	//nolint:gosec // G115: count is positive
	s.stats.Vertices += uint64(count)
	Logger().Debug("quadstream: flush", "first", first, "vertices", count, "maskBytes", call.MaskDirty.Len())
	return nil
}
