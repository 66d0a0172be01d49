package quadstream

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/gogpu/quadstream/gpucore"
	"github.com/gogpu/quadstream/internal/ring"
	"github.com/gogpu/quadstream/recording"
)

// Eight quads (32 vertices) per region.
const testVertexBufferSize = 3 * 32 * gpucore.VertexStride

func newTestSession(t *testing.T, opts ...Option) (*Session, *recording.Device) {
	t.Helper()
	dev := recording.NewDevice()
	opts = append([]Option{
		WithVertexBufferSize(testVertexBufferSize),
		WithMaskBufferSize(256),
	}, opts...)
	s, err := NewSession(dev, opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	return s, dev
}

func addQuads(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := Quad{X: int32(i), Y: 1, W: 2, H: 3, Mask: NoMask, Color: Color{R: 1, A: 255}}
		if err := s.AddQuad(q); err != nil {
			t.Fatalf("AddQuad %d: %v", i, err)
		}
	}
}

// commandIndex returns the index of the first command matching match, or -1.
func commandIndex(cmds []recording.Command, match func(recording.Command) bool) int {
	for i, c := range cmds {
		if match(c) {
			return i
		}
	}
	return -1
}

func isDraw(first, count int) func(recording.Command) bool {
	return func(c recording.Command) bool {
		d, ok := c.(recording.DrawCommand)
		return ok && d.FirstVertex == first && d.VertexCount == count
	}
}

func isWaitOn(f *recording.Fence) func(recording.Command) bool {
	return func(c recording.Command) bool {
		w, ok := c.(recording.ClientWaitCommand)
		return ok && w.Fence == f
	}
}

func isCreate(f *recording.Fence) func(recording.Command) bool {
	return func(c recording.Command) bool {
		cf, ok := c.(recording.CreateFenceCommand)
		return ok && cf.Fence == f
	}
}

func TestNewSessionCapacities(t *testing.T) {
	tests := []struct {
		name           string
		vertexSize     int
		maskSize       int
		regionVertices int
		maskRegion     int
	}{
		{"defaults", 0, 0, 10920, DefaultMaskRegionSize},
		{"eight quads", testVertexBufferSize, 256, 32, 64},
		{"ragged", testVertexBufferSize + 100, 259, 32, 64},
		{"minimum", ring.MinBufferSize, 16, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := recording.NewDevice()
			s, err := NewSession(dev, WithVertexBufferSize(tt.vertexSize), WithMaskBufferSize(tt.maskSize))
			if err != nil {
				t.Fatal(err)
			}
			c := s.Capacities()
			if c.RegionVertices != tt.regionVertices {
				t.Errorf("RegionVertices = %d, want %d", c.RegionVertices, tt.regionVertices)
			}
			if c.RingVertices != 3*tt.regionVertices {
				t.Errorf("RingVertices = %d, want %d", c.RingVertices, 3*tt.regionVertices)
			}
			if c.MaskRegionSize != tt.maskRegion {
				t.Errorf("MaskRegionSize = %d, want %d", c.MaskRegionSize, tt.maskRegion)
			}
			if len(dev.VertexBuffer()) != c.VertexBufferBytes {
				t.Errorf("allocated %d vertex bytes, capacities say %d", len(dev.VertexBuffer()), c.VertexBufferBytes)
			}
			if len(dev.MaskBuffer()) != c.MaskBufferBytes {
				t.Errorf("allocated %d mask bytes, capacities say %d", len(dev.MaskBuffer()), c.MaskBufferBytes)
			}
		})
	}
}

func TestNewSessionTooSmall(t *testing.T) {
	dev := recording.NewDevice()
	if _, err := NewSession(dev, WithVertexBufferSize(ring.MinBufferSize-1)); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("vertex error = %v, want ErrBufferTooSmall", err)
	}
	if _, err := NewSession(dev, WithMaskBufferSize(15)); !errors.Is(err, ErrMaskBufferTooSmall) {
		t.Errorf("mask error = %v, want ErrMaskBufferTooSmall", err)
	}
	if n := len(dev.Commands()); n != 0 {
		t.Errorf("failed sessions allocated buffers: %d commands", n)
	}
}

func TestEnableErrors(t *testing.T) {
	dev := recording.NewDevice()
	dev.EnableErr = errors.New("program link failed")
	s, err := NewSession(dev, WithVertexBufferSize(testVertexBufferSize))
	if err != nil {
		t.Fatal(err)
	}
	err = s.Enable()
	if !errors.Is(err, ErrProgramNotReady) || !errors.Is(err, dev.EnableErr) {
		t.Fatalf("Enable error = %v, want ErrProgramNotReady wrapping the device error", err)
	}
	if err := s.AddQuad(Quad{Mask: NoMask}); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("AddQuad before Enable = %v, want ErrNotEnabled", err)
	}
}

func TestVertexLayout(t *testing.T) {
	s, dev := newTestSession(t)
	q := Quad{
		X: 10, Y: 20, W: 4, H: 5,
		Mask:  MaskRef{Offset: 64, Stride: 4},
		Color: Color{R: 0x11, G: 0x22, B: 0x33, A: 0x44},
	}
	if err := s.AddQuad(q); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	v := dev.Draws()[0].Vertices
	wantPos := [4][2]float32{{10, 20}, {14, 20}, {14, 25}, {10, 25}}
	for i, p := range wantPos {
		if v[i].X != p[0] || v[i].Y != p[1] {
			t.Errorf("vertex %d = (%v, %v), want %v", i, v[i].X, v[i].Y, p)
		}
	}
	for i := 0; i < 3; i++ {
		if v[i].ColorRG != 0 || v[i].MaskStride != 0 {
			t.Errorf("vertex %d carries flat attributes: %+v", i, v[i])
		}
	}
	pv := v[3]
	if r, g, b, a := pv.RGBA(); r != 0x11 || g != 0x22 || b != 0x33 || a != 0x44 {
		t.Errorf("provoking color = %x %x %x %x", r, g, b, a)
	}
	if pv.ColorRG != 0x2211 || pv.ColorBA != 0x4433 {
		t.Errorf("packed color = %#x %#x, want 0x2211 0x4433", pv.ColorRG, pv.ColorBA)
	}
	if pv.OriginX != 10 || pv.OriginY != 20 || pv.MaskOffset != 64 || pv.MaskStride != 4 {
		t.Errorf("provoking mask data = %+v", pv)
	}
}

func TestAddMaskQuadUsesPaint(t *testing.T) {
	s, dev := newTestSession(t)
	s.SetColor(Color{G: 9, A: 255})
	if err := s.AddMaskQuad(1, 2, 7, 3, gpucore.NoMaskOffset); err != nil {
		t.Fatal(err)
	}
	_ = s.Flush()
	pv := dev.Draws()[0].Vertices[3]
	if _, g, _, _ := pv.RGBA(); g != 9 {
		t.Errorf("green = %d, want 9", g)
	}
	if pv.MaskStride != 7 || pv.Masked() {
		t.Errorf("mask data = %+v, want stride 7 and no mask", pv)
	}
}

func TestScenarioFlushAtRegionBoundary(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 10)

	draws := dev.Draws()
	if len(draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(draws))
	}
	if draws[0].FirstVertex != 0 || draws[0].VertexCount != 32 {
		t.Errorf("draw = (%d, %d), want (0, 32)", draws[0].FirstVertex, draws[0].VertexCount)
	}
	if s.ring.WritePos() != 40 || s.ring.FlushedPos() != 32 {
		t.Errorf("cursors = %d/%d, want 40/32", s.ring.WritePos(), s.ring.FlushedPos())
	}
	// Quad 1 fenced region 2 (empty), quad 9 fenced region 0.
	if s.ring.State(0) != ring.Pending || s.ring.State(2) != ring.Pending || s.ring.State(1) != ring.Idle {
		t.Errorf("states = %v %v %v", s.ring.State(0), s.ring.State(1), s.ring.State(2))
	}
	if n := dev.Count(recording.CmdClientWait); n != 0 {
		t.Errorf("ClientWait = %d, want 0", n)
	}
	cmds := dev.Commands()
	if draw, fence := commandIndex(cmds, isDraw(0, 32)), commandIndex(cmds, isCreate(dev.Fences()[1])); draw > fence {
		t.Error("region 0 fenced before its quads were drawn")
	}
}

func TestScenarioWaitBeforeOverwrite(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 24)

	// Fences: #1 region 2 at quad 1, #2 region 0 at quad 9, #3 region 1 at quad 17.
	region0 := dev.Fences()[1]
	if region0.Polls != 0 || region0.Destroyed() {
		t.Fatalf("region 0 fence touched before quad 25: polls=%d", region0.Polls)
	}

	addQuads(t, s, 1)
	if region0.Polls != 1 || !region0.Destroyed() {
		t.Errorf("region 0 fence polls=%d destroyed=%v, want waited once", region0.Polls, region0.Destroyed())
	}
	cmds := dev.Commands()
	draw := commandIndex(cmds, isDraw(64, 32))
	wait := commandIndex(cmds, isWaitOn(region0))
	if draw < 0 || wait < 0 || wait < draw {
		t.Errorf("draw of region 2 at %d, wait on region 0 at %d", draw, wait)
	}
	if s.ring.WritePos() != 4 || s.ring.FlushedPos() != 0 {
		t.Errorf("cursors after wrap = %d/%d, want 4/0", s.ring.WritePos(), s.ring.FlushedPos())
	}
	if st := s.Stats(); st.RegionWaits != 2 || st.Anomalies != 0 {
		t.Errorf("stats = %v", st)
	}
}

func TestFlushIdempotent(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 3)
	for i := 0; i < 3; i++ {
		if err := s.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if n := dev.Count(recording.CmdDraw); n != 1 {
		t.Errorf("draws = %d, want 1", n)
	}
}

func TestFlushAtRingEndWraps(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 24)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if s.ring.WritePos() != 0 {
		t.Errorf("WritePos = %d, want 0", s.ring.WritePos())
	}
	addQuads(t, s, 1)
	// The boundary at vertex 0 still fences region 2 and waits for region 0.
	if !dev.Fences()[1].Destroyed() {
		t.Error("region 0 not waited after explicit flush at ring end")
	}
}

func TestMaskFenceFlushesFirst(t *testing.T) {
	var called []int
	s, dev := newTestSession(t, WithRegionAvailable(func(r int) { called = append(called, r) }))
	addQuads(t, s, 5)

	if err := s.QueueMaskFence(1, -1); err != nil {
		t.Fatal(err)
	}
	cmds := dev.Commands()
	draw := commandIndex(cmds, isDraw(0, 20))
	last := cmds[len(cmds)-1].(recording.CreateFenceCommand)
	if draw < 0 {
		t.Fatal("mask fence did not flush the pending quads")
	}
	if last.AfterDraws != 1 {
		t.Errorf("mask fence placed after %d draws, want 1", last.AfterDraws)
	}
	if len(called) != 0 {
		t.Errorf("callback invoked for fire-and-forget fence: %v", called)
	}
	if !s.MaskPending(1) {
		t.Error("mask region 1 not pending")
	}
}

func TestMaskFenceImmediateWait(t *testing.T) {
	var called []int
	s, dev := newTestSession(t, WithRegionAvailable(func(r int) { called = append(called, r) }))

	if err := s.QueueMaskFence(2, 2); err != nil {
		t.Fatal(err)
	}
	if len(called) != 1 || called[0] != 2 {
		t.Errorf("callback = %v, want [2]", called)
	}
	if s.MaskPending(2) {
		t.Error("mask region 2 still pending after wait")
	}
	if live := dev.LiveFences(); len(live) != 0 {
		t.Errorf("live fences = %v", live)
	}
}

func TestMaskFenceWaitWithoutFence(t *testing.T) {
	var called []int
	s, dev := newTestSession(t, WithRegionAvailable(func(r int) { called = append(called, r) }))
	if err := s.WaitMaskRegion(3); err != nil {
		t.Fatal(err)
	}
	if len(called) != 1 || called[0] != 3 {
		t.Errorf("callback = %v, want [3]", called)
	}
	if n := dev.Count(recording.CmdClientWait); n != 0 {
		t.Errorf("ClientWait = %d on a region without fence", n)
	}
}

func TestMaskFenceReplaceDoesNotLeak(t *testing.T) {
	s, dev := newTestSession(t)
	for i := 0; i < 2; i++ {
		if err := s.QueueMaskFence(1, -1); err != nil {
			t.Fatal(err)
		}
	}
	first := dev.Fences()[0]
	if !first.Destroyed() || first.Polls != 0 {
		t.Errorf("replaced fence destroyed=%v polls=%d, want destroyed unwaited", first.Destroyed(), first.Polls)
	}
	if st := s.Stats(); st.MaskFencesReplaced != 1 || st.MaskFences != 2 {
		t.Errorf("stats = %+v", st)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if live := dev.LiveFences(); len(live) != 0 {
		t.Errorf("live fences after Close = %v", live)
	}
}

func TestMaskFenceInvalidRegion(t *testing.T) {
	s, _ := newTestSession(t)
	for _, tt := range []struct{ fence, wait int }{{-1, -1}, {4, -1}, {0, 4}} {
		if err := s.QueueMaskFence(tt.fence, tt.wait); !errors.Is(err, ErrInvalidRegion) {
			t.Errorf("QueueMaskFence(%d, %d) = %v, want ErrInvalidRegion", tt.fence, tt.wait, err)
		}
	}
	if err := s.WaitMaskRegion(-1); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("WaitMaskRegion(-1) = %v", err)
	}
}

func TestAnomalyOnPendingRegion(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	s, dev := newTestSession(t)
	addQuads(t, s, 8)
	// Simulate a region that is still fenced when the ring comes back to it.
	if _, err := s.ring.PlaceFence(0); err != nil {
		t.Fatal(err)
	}
	stale := dev.Fences()[len(dev.Fences())-1]

	addQuads(t, s, 1)
	if st := s.Stats(); st.Anomalies != 1 {
		t.Errorf("Anomalies = %d, want 1", st.Anomalies)
	}
	if !stale.Destroyed() || stale.Polls != 0 {
		t.Errorf("superseded fence destroyed=%v polls=%d", stale.Destroyed(), stale.Polls)
	}
	if !strings.Contains(buf.String(), "fence placed on pending vertex region") {
		t.Errorf("anomaly not logged: %q", buf.String())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if live := dev.LiveFences(); len(live) != 0 {
		t.Errorf("live fences after Close = %v", live)
	}
}

func TestNoStraddling(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		s, dev := newTestSession(t)
		rng := rand.New(rand.NewPCG(seed, seed*7))
		regionVertices := s.Capacities().RegionVertices
		for op := 0; op < 300; op++ {
			var err error
			switch k := rng.IntN(20); {
			case k == 0:
				err = s.Flush()
			case k == 1:
				err = s.QueueMaskFence(rng.IntN(4), rng.IntN(5)-1)
			default:
				err = s.AddQuad(Quad{W: 1, H: 1, Mask: NoMask, ReuseColor: k%3 == 0})
			}
			if err != nil {
				t.Fatalf("seed %d op %d: %v", seed, op, err)
			}
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		for _, d := range dev.Draws() {
			if d.VertexCount <= 0 || d.VertexCount%gpucore.VerticesPerQuad != 0 {
				t.Fatalf("seed %d: draw of %d vertices", seed, d.VertexCount)
			}
			last := d.FirstVertex + d.VertexCount - 1
			if d.FirstVertex/regionVertices != last/regionVertices {
				t.Fatalf("seed %d: draw [%d,%d) straddles a region", seed, d.FirstVertex, last+1)
			}
		}
		if st := s.Stats(); st.Anomalies != 0 {
			t.Errorf("seed %d: %d anomalies", seed, st.Anomalies)
		}
		if live := dev.LiveFences(); len(live) != 0 {
			t.Errorf("seed %d: live fences after Close = %v", seed, live)
		}
	}
}

func TestReuseColor(t *testing.T) {
	s, dev := newTestSession(t)
	red := Color{R: 200, A: 255}
	blue := Color{B: 200, A: 255}

	addQuad := func(q Quad) {
		t.Helper()
		q.Mask = NoMask
		if err := s.AddQuad(q); err != nil {
			t.Fatal(err)
		}
	}
	// A full lap of red, so every provoking slot already holds red.
	for i := 0; i < 24; i++ {
		addQuad(Quad{Color: red})
	}
	addQuad(Quad{Color: blue, ReuseColor: true})
	addQuad(Quad{Color: blue})
	addQuad(Quad{ReuseColor: true})
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	draws := dev.Draws()
	v := draws[len(draws)-1].Vertices
	wants := []Color{red, blue, blue}
	for i, want := range wants {
		r, g, b, a := v[4*i+3].RGBA()
		if (Color{r, g, b, a}) != want {
			t.Errorf("quad %d color = %v, want %v", i, Color{r, g, b, a}, want)
		}
	}
	if st := s.Stats(); st.ColorWritesSkipped != 1 {
		t.Errorf("ColorWritesSkipped = %d, want 1", st.ColorWritesSkipped)
	}
}

func TestReuseColorFirstQuadUsesPaint(t *testing.T) {
	s, dev := newTestSession(t)
	s.SetColor(Color{G: 77, A: 255})
	if err := s.AddQuad(Quad{Mask: NoMask, ReuseColor: true}); err != nil {
		t.Fatal(err)
	}
	_ = s.Flush()
	if _, g, _, _ := dev.Draws()[0].Vertices[3].RGBA(); g != 77 {
		t.Errorf("green = %d, want paint 77", g)
	}
}

func TestDisableFlushes(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 2)
	if err := s.Disable(); err != nil {
		t.Fatal(err)
	}
	cmds := dev.Commands()
	if _, ok := cmds[len(cmds)-1].(recording.DisableCommand); !ok {
		t.Errorf("last command = %T, want DisableCommand", cmds[len(cmds)-1])
	}
	if commandIndex(cmds, isDraw(0, 8)) < 0 {
		t.Error("Disable did not flush")
	}
	if err := s.AddQuad(Quad{Mask: NoMask}); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("AddQuad after Disable = %v, want ErrNotEnabled", err)
	}
	// Mask fences do not need the program bound.
	if err := s.QueueMaskFence(0, -1); err != nil {
		t.Errorf("QueueMaskFence while disabled = %v", err)
	}
}

func TestDrawErrorKeepsPending(t *testing.T) {
	s, dev := newTestSession(t)
	addQuads(t, s, 3)
	dev.DrawErr = errors.New("device lost")
	if err := s.Flush(); !errors.Is(err, dev.DrawErr) {
		t.Fatalf("Flush = %v, want wrapped device error", err)
	}
	if s.ring.Pending() != 12 {
		t.Errorf("Pending = %d after failed draw, want 12", s.ring.Pending())
	}
	dev.DrawErr = nil
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if s.ring.Pending() != 0 {
		t.Errorf("Pending = %d after retry", s.ring.Pending())
	}
}

func TestFenceErrorAtBoundary(t *testing.T) {
	s, dev := newTestSession(t)
	dev.FenceErr = errors.New("no sync objects")
	if err := s.AddQuad(Quad{Mask: NoMask}); !errors.Is(err, dev.FenceErr) {
		t.Fatalf("AddQuad = %v, want wrapped fence error", err)
	}
	if s.ring.WritePos() != 0 {
		t.Error("quad written after failed boundary")
	}
	dev.FenceErr = nil
	addQuads(t, s, 1)
}

func TestClosedSession(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	checks := map[string]error{
		"AddQuad":        s.AddQuad(Quad{}),
		"Flush":          s.Flush(),
		"Enable":         s.Enable(),
		"QueueMaskFence": s.QueueMaskFence(0, -1),
		"WaitMaskRegion": s.WaitMaskRegion(0),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close = %v, want ErrClosed", name, err)
		}
	}
}

func TestPollScript(t *testing.T) {
	s, dev := newTestSession(t)
	dev.Script = recording.SignalAfter(4)
	if err := s.QueueMaskFence(0, 0); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Polls != 4 || st.MaskWaits != 1 {
		t.Errorf("stats = %+v, want 4 polls in 1 wait", st)
	}
}

func TestMaskAllocatorIntegration(t *testing.T) {
	var external []int
	s, dev := newTestSession(t, WithRegionAvailable(func(r int) { external = append(external, r) }))
	alloc := s.NewMaskAllocator()

	mask := bytes.Repeat([]byte{0x80}, 48)
	for i := 0; i < 12; i++ {
		off, err := alloc.Allocate(8, 6, mask, 8, 0)
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		if err := s.AddMaskQuad(0, 0, 8, 6, off); err != nil {
			t.Fatal(err)
		}
	}
	if alloc.Fences() == 0 {
		t.Fatal("allocator never crossed a mask region")
	}
	if got := s.Stats().MaskFences; got != uint64(alloc.Fences()) {
		t.Errorf("session mask fences = %d, allocator requested %d", got, alloc.Fences())
	}
	if len(external) == 0 {
		t.Error("chained callback never invoked")
	}
	for r := 0; r < MaskRegionCount; r++ {
		if alloc.Pending(r) != s.MaskPending(r) {
			t.Errorf("region %d: allocator pending=%v session pending=%v", r, alloc.Pending(r), s.MaskPending(r))
		}
	}
	// Mask bytes reach the device with the draws that use them.
	var dirty int
	_ = s.Flush()
	for _, d := range dev.Draws() {
		dirty += d.MaskDirty.Len()
	}
	if dirty == 0 {
		t.Error("no draw carried mask bytes")
	}
}

func TestStatsString(t *testing.T) {
	st := Stats{Quads: 3, Draws: 1, Anomalies: 2, MaskFences: 6, MaskFencesReplaced: 4, ColorWritesSkipped: 5}
	got := st.String()
	for _, want := range []string{"3 quads", "1 draws", "2 anomalies", "6 mask (4 replaced)", "5 color writes skipped"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
