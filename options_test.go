package quadstream

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.vertexBufferSize != 1<<20 {
		t.Errorf("vertexBufferSize = %d, want 1 MiB", o.vertexBufferSize)
	}
	if o.maskBufferSize != 4<<20 {
		t.Errorf("maskBufferSize = %d, want 4 MiB", o.maskBufferSize)
	}
	if o.pollTimeout != time.Millisecond {
		t.Errorf("pollTimeout = %v, want 1ms", o.pollTimeout)
	}
	if o.onRegionAvailable != nil {
		t.Error("onRegionAvailable set by default")
	}
}

func TestOptions(t *testing.T) {
	called := -1
	tests := []struct {
		name  string
		opt   Option
		check func(o options) bool
	}{
		{"vertex size", WithVertexBufferSize(4096), func(o options) bool { return o.vertexBufferSize == 4096 }},
		{"vertex size ignored", WithVertexBufferSize(-1), func(o options) bool { return o.vertexBufferSize == DefaultVertexBufferSize }},
		{"mask size", WithMaskBufferSize(64), func(o options) bool { return o.maskBufferSize == 64 }},
		{"mask size ignored", WithMaskBufferSize(0), func(o options) bool { return o.maskBufferSize == DefaultMaskBufferSize }},
		{"poll timeout", WithPollTimeout(time.Microsecond), func(o options) bool { return o.pollTimeout == time.Microsecond }},
		{"poll timeout ignored", WithPollTimeout(0), func(o options) bool { return o.pollTimeout == DefaultPollTimeout }},
		{"region available", WithRegionAvailable(func(r int) { called = r }), func(o options) bool {
			o.onRegionAvailable(3)
			return called == 3
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			if !tt.check(o) {
				t.Errorf("option not applied: %+v", o)
			}
		})
	}
}
