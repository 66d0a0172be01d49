package quadstream

import (
	"fmt"

	"github.com/gogpu/quadstream/internal/ring"
)

// append writes one quad into the ring, crossing into the next region first
// when the write cursor sits on a region boundary.
//
// Vertices are written top-left, top-right, bottom-right, bottom-left. Only
// the fourth, provoking vertex carries color and mask data; the device
// reads those attributes flat for the whole quad.
func (s *Session) append(q Quad) error {
	if s.ring.AtBoundary() {
		if err := s.enterRegion(); err != nil {
			return err
		}
	}

	a := s.ring.Arena()
	i := s.ring.WritePos()
	x0, y0 := float32(q.X), float32(q.Y)
	x1, y1 := x0+float32(q.W), y0+float32(q.H)
	a.SetPosition(i, x0, y0)
	a.SetPosition(i+1, x1, y0)
	a.SetPosition(i+2, x1, y1)
	a.SetPosition(i+3, x0, y1)

	pv := i + 3
	if q.ReuseColor && s.haveColor {
		// The slot may still hold a color from the previous lap.
		if rg, ba := a.Color(pv); rg == s.lastRG && ba == s.lastBA {
			s.stats.ColorWritesSkipped++
		} else {
			a.SetColor(pv, s.lastRG, s.lastBA)
		}
	} else {
		c := q.Color
		if q.ReuseColor {
			c = s.paint
		}
		s.lastRG, s.lastBA = c.Packed()
		s.haveColor = true
		a.SetColor(pv, s.lastRG, s.lastBA)
	}
	//nolint:gosec // G115: origins are reinterpreted as unsigned by the device
	a.SetMask(pv, uint32(q.X), uint32(q.Y), q.Mask.Offset, q.Mask.Stride)

	s.ring.Advance()
	s.stats.Quads++
	return nil
}

// enterRegion runs the region boundary protocol before the first quad of a
// region is written: flush, fence the region two behind the one being
// entered, then wait until the device has released the region being
// entered.
func (s *Session) enterRegion() error {
	if err := s.flush(); err != nil {
		return err
	}
	next := s.ring.CurrentRegion()
	trailing := (next + ring.Regions - 1) % ring.Regions

	superseded, err := s.ring.PlaceFence(trailing)
	if err != nil {
		return fmt.Errorf("fence vertex region %d: %w", trailing, err)
	}
	s.stats.RegionFences++
	if superseded {
		s.stats.Anomalies++
		Logger().Warn("quadstream: fence placed on pending vertex region",
			"region", trailing, "next", next)
	}

	if waited, polls := s.ring.WaitRegion(next); waited {
		s.stats.RegionWaits++
		Logger().Debug("quadstream: waited for vertex region", "region", next, "polls", polls)
	}
	return nil
}
