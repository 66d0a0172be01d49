package ring

import (
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
)

// Arena is a typed view over the device-shared vertex memory. All byte
// offset arithmetic stays inside the arena; callers address vertices by
// index and every accessor is bounds checked.
type Arena struct {
	buf      []byte
	vertices int
}

// NewArena wraps buf as an arena of the given number of vertex records.
func NewArena(buf []byte, vertices int) (*Arena, error) {
	if need := vertices * gpucore.VertexStride; len(buf) < need {
		return nil, fmt.Errorf("%w: arena needs %d bytes, got %d", ErrBufferTooSmall, need, len(buf))
	}
	return &Arena{buf: buf, vertices: vertices}, nil
}

// Len returns the number of vertex records.
func (a *Arena) Len() int { return a.vertices }

func (a *Arena) record(i int) []byte {
	if i < 0 || i >= a.vertices {
		panic(fmt.Sprintf("ring: vertex index %d out of range [0,%d)", i, a.vertices))
	}
	off := i * gpucore.VertexStride
	return a.buf[off : off+gpucore.VertexStride : off+gpucore.VertexStride]
}

// SetPosition writes the position of vertex i.
func (a *Arena) SetPosition(i int, x, y float32) {
	gpucore.PutPosition(a.record(i), x, y)
}

// SetColor writes the packed color of vertex i.
func (a *Arena) SetColor(i int, rg, ba uint32) {
	gpucore.PutColor(a.record(i), rg, ba)
}

// Color returns the packed color stored at vertex i.
func (a *Arena) Color(i int) (rg, ba uint32) {
	return gpucore.Color(a.record(i))
}

// SetMask writes the quad origin and mask descriptor of vertex i.
func (a *Arena) SetMask(i int, originX, originY, offset, stride uint32) {
	gpucore.PutMask(a.record(i), originX, originY, offset, stride)
}

// VertexAt decodes vertex i.
func (a *Arena) VertexAt(i int) gpucore.VertexRecord {
	return gpucore.DecodeVertex(a.record(i))
}

// Span returns the bytes of count vertices starting at first.
func (a *Arena) Span(first, count int) []byte {
	if first < 0 || count < 0 || first+count > a.vertices {
		panic(fmt.Sprintf("ring: span [%d,%d) out of range [0,%d)", first, first+count, a.vertices))
	}
	return a.buf[first*gpucore.VertexStride : (first+count)*gpucore.VertexStride]
}
