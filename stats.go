package quadstream

import "fmt"

// Stats contains session counters.
type Stats struct {
	// Quads is the number of quads appended.
	Quads uint64

	// Draws is the number of draw calls issued.
	Draws uint64

	// Vertices is the number of vertices submitted in draw calls.
	Vertices uint64

	// RegionFences is the number of fences placed on vertex regions.
	RegionFences uint64

	// RegionWaits is the number of waits on vertex region fences.
	RegionWaits uint64

	// Anomalies counts fences placed on a vertex region that still held
	// an unwaited fence.
	Anomalies uint64

	// MaskFences is the number of fences placed on mask regions.
	MaskFences uint64

	// MaskFencesReplaced counts mask fences destroyed unwaited because a
	// newer fence was placed on the same mask region.
	MaskFencesReplaced uint64

	// MaskWaits is the number of waits on mask region fences.
	MaskWaits uint64

	// Polls is the total number of fence polls across all waits.
	Polls uint64

	// PollFailures counts polls that reported FenceWaitFailed.
	PollFailures uint64

	// ColorWritesSkipped counts ReuseColor quads whose slot already held
	// the previous color.
	ColorWritesSkipped uint64
}

// String returns a human-readable summary of the counters.
func (s Stats) String() string {
	return fmt.Sprintf("Stats[%d quads, %d draws, %d vertices, fences %d/%d mask (%d replaced), waits %d/%d mask, %d polls (%d failed), %d anomalies, %d color writes skipped]",
		s.Quads,
		s.Draws,
		s.Vertices,
		s.RegionFences,
		s.MaskFences,
		s.MaskFencesReplaced,
		s.RegionWaits,
		s.MaskWaits,
		s.Polls,
		s.PollFailures,
		s.Anomalies,
		s.ColorWritesSkipped)
}
