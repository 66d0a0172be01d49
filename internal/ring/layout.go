// Package ring implements the triple-buffered vertex ring: capacity
// derivation, the typed vertex arena and the per-region fence table.
package ring

import (
	"errors"
	"fmt"

	"github.com/gogpu/quadstream/gpucore"
)

// Regions is the number of independently fenced regions of the ring.
const Regions = 3

// ErrBufferTooSmall is returned when a buffer cannot hold one aligned quad
// per region.
var ErrBufferTooSmall = errors.New("quadstream: vertex buffer too small")

// Layout is the region-aligned geometry of a vertex ring.
type Layout struct {
	// RegionVertices is the number of vertex records per region, always a
	// positive multiple of gpucore.VerticesPerQuad.
	RegionVertices int

	// Vertices is the ring capacity, Regions * RegionVertices.
	Vertices int
}

// NewLayout derives the ring layout from a raw buffer size in bytes.
// Remainder capacity that would split a quad across regions is discarded.
func NewLayout(sizeBytes int) (Layout, error) {
	perRegion := sizeBytes / gpucore.VertexStride / Regions
	perRegion -= perRegion % gpucore.VerticesPerQuad
	if perRegion < gpucore.VerticesPerQuad {
		return Layout{}, fmt.Errorf("%w: %d bytes gives %d vertices per region, need at least %d (%d bytes)",
			ErrBufferTooSmall, sizeBytes, perRegion, gpucore.VerticesPerQuad,
			MinBufferSize)
	}
	return Layout{RegionVertices: perRegion, Vertices: perRegion * Regions}, nil
}

// MinBufferSize is the smallest vertex buffer, in bytes, that NewLayout accepts.
const MinBufferSize = Regions * gpucore.VerticesPerQuad * gpucore.VertexStride

// SizeBytes returns the number of buffer bytes the layout uses.
func (l Layout) SizeBytes() int { return l.Vertices * gpucore.VertexStride }

// RegionQuads returns the region capacity in quads.
func (l Layout) RegionQuads() int { return l.RegionVertices / gpucore.VerticesPerQuad }

// RegionOf returns the region that holds vertex index pos.
func (l Layout) RegionOf(pos int) int { return (pos / l.RegionVertices) % Regions }
