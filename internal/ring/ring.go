package ring

import (
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
	"github.com/gogpu/quadstream/internal/fence"
)

// State is the synchronization state of a region.
type State uint8

const (
	// Idle means no GPU work is outstanding on the region.
	Idle State = iota
	// Pending means a fence covers GPU work that still reads the region.
	Pending
)

// String returns the state name.
func (s State) String() string {
	if s == Pending {
		return "Pending"
	}
	return "Idle"
}

// Ring tracks the write and flush cursors over the arena and one fence per
// region.
//
// Cursor invariant: 0 <= flushedPos <= writePos <= Vertices. writePos only
// reaches Vertices between the last write of a lap and the flush that wraps
// it; vertices in [flushedPos, writePos) are written but not yet drawn.
type Ring struct {
	layout Layout
	arena  *Arena
	gate   *fence.Gate

	writePos   int
	flushedPos int
	fences     [Regions]gpucore.Fence
}

// New creates a ring over arena. The arena must hold layout.Vertices records.
func New(layout Layout, arena *Arena, gate *fence.Gate) (*Ring, error) {
	if arena.Len() < layout.Vertices {
		return nil, fmt.Errorf("%w: arena holds %d vertices, layout needs %d",
			ErrBufferTooSmall, arena.Len(), layout.Vertices)
	}
	return &Ring{layout: layout, arena: arena, gate: gate}, nil
}

// Layout returns the ring layout.
func (r *Ring) Layout() Layout { return r.layout }

// Arena returns the vertex arena.
func (r *Ring) Arena() *Arena { return r.arena }

// WritePos returns the next free vertex slot.
func (r *Ring) WritePos() int { return r.writePos }

// FlushedPos returns the first vertex not yet submitted in a draw call.
func (r *Ring) FlushedPos() int { return r.flushedPos }

// Pending returns the number of written but undrawn vertices.
func (r *Ring) Pending() int { return r.writePos - r.flushedPos }

// Span returns the pending vertex span.
func (r *Ring) Span() (first, count int) { return r.flushedPos, r.writePos - r.flushedPos }

// AtBoundary reports whether the next quad starts a region.
func (r *Ring) AtBoundary() bool { return r.writePos%r.layout.RegionVertices == 0 }

// CurrentRegion returns the region the next quad is written to.
func (r *Ring) CurrentRegion() int { return r.layout.RegionOf(r.writePos) }

// Advance moves the write cursor past one quad.
func (r *Ring) Advance() {
	if r.writePos+gpucore.VerticesPerQuad > r.layout.Vertices {
		panic(fmt.Sprintf("ring: write past end (%d of %d); missing flush at region boundary",
			r.writePos, r.layout.Vertices))
	}
	r.writePos += gpucore.VerticesPerQuad
}

// MarkFlushed records that the pending span has been drawn. A write cursor
// at the physical end of the ring wraps to zero.
func (r *Ring) MarkFlushed() {
	if r.writePos == r.layout.Vertices {
		r.writePos = 0
	}
	r.flushedPos = r.writePos
}

// State returns the synchronization state of region i.
func (r *Ring) State(i int) State {
	if r.fences[i] != nil {
		return Pending
	}
	return Idle
}

// PlaceFence places a fresh fence on region i. When region i still holds an
// unwaited fence, that fence is destroyed without waiting and superseded is
// true: the new fence is later in the same in-order stream, so waiting on it
// also covers the work the old one guarded.
func (r *Ring) PlaceFence(i int) (superseded bool, err error) {
	f, err := r.gate.Place()
	if err != nil {
		return false, err
	}
	if old := r.fences[i]; old != nil {
		r.gate.Destroy(old)
		superseded = true
	}
	r.fences[i] = f
	return superseded, nil
}

// WaitRegion blocks until region i is safe to overwrite and clears its fence.
// It returns the number of poll attempts, zero when the region was idle.
func (r *Ring) WaitRegion(i int) (waited bool, polls int) {
	f := r.fences[i]
	if f == nil {
		return false, 0
	}
	r.fences[i] = nil
	return true, r.gate.Wait(f)
}

// Drain waits on every outstanding region fence.
func (r *Ring) Drain() {
	for i := range r.fences {
		r.WaitRegion(i)
	}
}
