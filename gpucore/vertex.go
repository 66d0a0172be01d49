package gpucore

import (
	"encoding/binary"
	"math"
)

// VertexStride is the byte size of one VertexRecord.
// Layout:
//
//	position    (vec2<f32>) = 8 bytes  offset 0
//	color rg/ba (vec2<u32>) = 8 bytes  offset 8
//	origin      (vec2<u32>) = 8 bytes  offset 16
//	mask offset (u32)       = 4 bytes  offset 24
//	mask stride (u32)       = 4 bytes  offset 28
const VertexStride = 32

// VerticesPerQuad is the number of vertex records per quad.
const VerticesPerQuad = 4

// NoMaskOffset is the mask offset sentinel for "no mask, full coverage".
const NoMaskOffset uint32 = 0x7FFFFFFF

// Field offsets inside a vertex record.
const (
	offsetPosition = 0
	offsetColor    = 8
	offsetOrigin   = 16
	offsetMask     = 24
)

// VertexRecord is the decoded form of one vertex.
type VertexRecord struct {
	X, Y float32

	// ColorRG holds green<<8 | red, ColorBA holds alpha<<8 | blue.
	ColorRG, ColorBA uint32

	// OriginX, OriginY is the top-left of the quad in device pixels. The
	// mask byte for pixel (px, py) is at
	// MaskOffset + (py-OriginY)*MaskStride + (px-OriginX).
	OriginX, OriginY uint32

	MaskOffset uint32
	MaskStride uint32
}

// Masked reports whether the record references mask data.
func (v VertexRecord) Masked() bool { return v.MaskOffset != NoMaskOffset }

// RGBA unpacks the color channels.
func (v VertexRecord) RGBA() (r, g, b, a uint8) {
	return UnpackColor(v.ColorRG, v.ColorBA)
}

// PackColor packs four 8-bit channels two per 32-bit field.
func PackColor(r, g, b, a uint8) (rg, ba uint32) {
	return uint32(g)<<8 | uint32(r), uint32(a)<<8 | uint32(b)
}

// UnpackColor is the inverse of PackColor.
func UnpackColor(rg, ba uint32) (r, g, b, a uint8) {
	//nolint:gosec // G115: masked to 8 bits
	return uint8(rg & 0xFF), uint8(rg >> 8 & 0xFF), uint8(ba & 0xFF), uint8(ba >> 8 & 0xFF)
}

// PutPosition writes only the position field of the record at rec.
func PutPosition(rec []byte, x, y float32) {
	binary.LittleEndian.PutUint32(rec[offsetPosition:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(rec[offsetPosition+4:], math.Float32bits(y))
}

// PutColor writes only the packed color fields of the record at rec.
func PutColor(rec []byte, rg, ba uint32) {
	binary.LittleEndian.PutUint32(rec[offsetColor:], rg)
	binary.LittleEndian.PutUint32(rec[offsetColor+4:], ba)
}

// Color reads the packed color fields of the record at rec.
func Color(rec []byte) (rg, ba uint32) {
	return binary.LittleEndian.Uint32(rec[offsetColor:]), binary.LittleEndian.Uint32(rec[offsetColor+4:])
}

// PutMask writes the origin and mask descriptor of the record at rec.
func PutMask(rec []byte, originX, originY, maskOffset, maskStride uint32) {
	binary.LittleEndian.PutUint32(rec[offsetOrigin:], originX)
	binary.LittleEndian.PutUint32(rec[offsetOrigin+4:], originY)
	binary.LittleEndian.PutUint32(rec[offsetMask:], maskOffset)
	binary.LittleEndian.PutUint32(rec[offsetMask+4:], maskStride)
}

// Encode writes every field of v into rec.
func (v *VertexRecord) Encode(rec []byte) {
	PutPosition(rec, v.X, v.Y)
	PutColor(rec, v.ColorRG, v.ColorBA)
	PutMask(rec, v.OriginX, v.OriginY, v.MaskOffset, v.MaskStride)
}

// DecodeVertex reads a full record from rec.
func DecodeVertex(rec []byte) VertexRecord {
	_ = rec[VertexStride-1]
	return VertexRecord{
		X:          math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4])),
		Y:          math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8])),
		ColorRG:    binary.LittleEndian.Uint32(rec[8:12]),
		ColorBA:    binary.LittleEndian.Uint32(rec[12:16]),
		OriginX:    binary.LittleEndian.Uint32(rec[16:20]),
		OriginY:    binary.LittleEndian.Uint32(rec[20:24]),
		MaskOffset: binary.LittleEndian.Uint32(rec[24:28]),
		MaskStride: binary.LittleEndian.Uint32(rec[28:32]),
	}
}
