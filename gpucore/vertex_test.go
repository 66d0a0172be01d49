package gpucore

import "testing"

func TestPackColor(t *testing.T) {
	rg, ba := PackColor(0x11, 0x22, 0x33, 0x44)
	if rg != 0x2211 {
		t.Errorf("rg = %#x, want 0x2211", rg)
	}
	if ba != 0x4433 {
		t.Errorf("ba = %#x, want 0x4433", ba)
	}
	r, g, b, a := UnpackColor(rg, ba)
	if r != 0x11 || g != 0x22 || b != 0x33 || a != 0x44 {
		t.Errorf("UnpackColor = (%#x, %#x, %#x, %#x)", r, g, b, a)
	}
}

func TestVertexRecordEncodeDecode(t *testing.T) {
	rec := make([]byte, VertexStride)
	want := VertexRecord{
		X: 10.5, Y: -3,
		ColorRG: 0xFF00, ColorBA: 0x80FF,
		OriginX: 7, OriginY: 9,
		MaskOffset: 4096, MaskStride: 24,
	}
	want.Encode(rec)
	if got := DecodeVertex(rec); got != want {
		t.Errorf("DecodeVertex = %+v, want %+v", got, want)
	}
}

func TestPartialWritesLeaveOtherFields(t *testing.T) {
	rec := make([]byte, VertexStride)
	PutColor(rec, 1, 2)
	PutMask(rec, 3, 4, 5, 6)
	PutPosition(rec, 100, 200)

	v := DecodeVertex(rec)
	if v.X != 100 || v.Y != 200 {
		t.Errorf("position = (%v, %v), want (100, 200)", v.X, v.Y)
	}
	if v.ColorRG != 1 || v.ColorBA != 2 {
		t.Errorf("color = (%d, %d), want (1, 2)", v.ColorRG, v.ColorBA)
	}
	if v.OriginX != 3 || v.OriginY != 4 || v.MaskOffset != 5 || v.MaskStride != 6 {
		t.Errorf("mask fields = %+v", v)
	}
	if rg, ba := Color(rec); rg != 1 || ba != 2 {
		t.Errorf("Color = (%d, %d), want (1, 2)", rg, ba)
	}
}

func TestVertexRecordMasked(t *testing.T) {
	if (VertexRecord{MaskOffset: NoMaskOffset}).Masked() {
		t.Error("NoMaskOffset record reports masked")
	}
	if !(VertexRecord{MaskOffset: 0}).Masked() {
		t.Error("offset 0 record reports unmasked")
	}
}

func TestFenceStatus(t *testing.T) {
	tests := []struct {
		status   FenceStatus
		signaled bool
		name     string
	}{
		{FenceTimeoutExpired, false, "TimeoutExpired"},
		{FenceAlreadySignaled, true, "AlreadySignaled"},
		{FenceConditionSatisfied, true, "ConditionSatisfied"},
		{FenceWaitFailed, false, "WaitFailed"},
		{FenceStatus(42), false, "FenceStatus(42)"},
	}
	for _, tt := range tests {
		if got := tt.status.Signaled(); got != tt.signaled {
			t.Errorf("%v.Signaled() = %v, want %v", tt.status, got, tt.signaled)
		}
		if got := tt.status.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

func TestByteRangeUnion(t *testing.T) {
	tests := []struct {
		a, b, want ByteRange
	}{
		{ByteRange{}, ByteRange{}, ByteRange{}},
		{ByteRange{}, ByteRange{4, 8}, ByteRange{4, 8}},
		{ByteRange{4, 8}, ByteRange{}, ByteRange{4, 8}},
		{ByteRange{4, 8}, ByteRange{0, 2}, ByteRange{0, 8}},
		{ByteRange{4, 8}, ByteRange{6, 16}, ByteRange{4, 16}},
	}
	for _, tt := range tests {
		if got := tt.a.Union(tt.b); got != tt.want {
			t.Errorf("%v.Union(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if n := (ByteRange{4, 8}).Len(); n != 4 {
		t.Errorf("Len = %d, want 4", n)
	}
}

func TestDrawCallQuads(t *testing.T) {
	if q := (DrawCall{VertexCount: 32}).Quads(); q != 8 {
		t.Errorf("Quads = %d, want 8", q)
	}
}
