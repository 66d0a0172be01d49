package quadstream

import (
	"fmt"

	"github.com/gogpu/quadstream/maskbuf"
)

// QueueMaskFence flushes pending quads, then places a fence on mask region
// fenceRegion covering every draw submitted so far. Any unwaited fence
// already on that region is destroyed without waiting; choosing which mask
// regions to reuse is the caller's responsibility.
//
// When waitRegion >= 0, QueueMaskFence then blocks until the fence on
// waitRegion signals, clears it and invokes the region-available callback
// with waitRegion before returning. A region without a fence is available
// immediately. waitRegion < 0 places the fence only.
func (s *Session) QueueMaskFence(fenceRegion, waitRegion int) error {
	if s.closed {
		return ErrClosed
	}
	if fenceRegion < 0 || fenceRegion >= MaskRegionCount {
		return fmt.Errorf("%w: fence region %d", ErrInvalidRegion, fenceRegion)
	}
	if waitRegion >= MaskRegionCount {
		return fmt.Errorf("%w: wait region %d", ErrInvalidRegion, waitRegion)
	}

	if err := s.flush(); err != nil {
		return err
	}
	f, err := s.gate.Place()
	if err != nil {
		return fmt.Errorf("fence mask region %d: %w", fenceRegion, err)
	}
	if old := s.maskFences[fenceRegion]; old != nil {
		s.gate.Destroy(old)
		s.stats.MaskFencesReplaced++
		Logger().Debug("quadstream: replaced unwaited mask fence", "region", fenceRegion)
	}
	s.maskFences[fenceRegion] = f
	s.stats.MaskFences++

	if waitRegion >= 0 {
		s.waitMask(waitRegion)
	}
	return nil
}

// WaitMaskRegion blocks until the fence on mask region region, if any,
// signals, clears it and invokes the region-available callback.
func (s *Session) WaitMaskRegion(region int) error {
	if s.closed {
		return ErrClosed
	}
	if region < 0 || region >= MaskRegionCount {
		return fmt.Errorf("%w: wait region %d", ErrInvalidRegion, region)
	}
	s.waitMask(region)
	return nil
}

func (s *Session) waitMask(region int) {
	if f := s.maskFences[region]; f != nil {
		s.maskFences[region] = nil
		polls := s.gate.Wait(f)
		s.stats.MaskWaits++
		Logger().Debug("quadstream: waited for mask region", "region", region, "polls", polls)
	}
	if s.onRegionAvailable != nil {
		s.onRegionAvailable(region)
	}
}

// MaskPending reports whether mask region region holds an unwaited fence.
func (s *Session) MaskPending(region int) bool {
	if region < 0 || region >= MaskRegionCount {
		return false
	}
	return s.maskFences[region] != nil
}

// SetRegionAvailable replaces the region-available callback.
func (s *Session) SetRegionAvailable(fn func(region int)) { s.onRegionAvailable = fn }

// NewMaskAllocator returns an allocator over the session's mask buffer that
// requests mask fences from the session. The allocator is chained in front
// of any region-available callback already set.
func (s *Session) NewMaskAllocator() *maskbuf.Allocator {
	a := maskbuf.NewAllocator(s.mask, s)
	prev := s.onRegionAvailable
	s.onRegionAvailable = func(region int) {
		a.RegionAvailable(region)
		if prev != nil {
			prev(region)
		}
	}
	return a
}

var _ maskbuf.FenceRequester = (*Session)(nil)
