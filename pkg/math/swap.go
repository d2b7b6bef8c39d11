package math

import (
	"math"
	"math/bits"
)

// SwapUint16 reverses the byte order of v.
func SwapUint16(v uint16) uint16 { return bits.ReverseBytes16(v) }

// SwapUint32 reverses the byte order of v.
func SwapUint32(v uint32) uint32 { return bits.ReverseBytes32(v) }

// SwapUint64 reverses the byte order of v.
func SwapUint64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// SwapInt16 reverses the byte order of v.
func SwapInt16(v int16) int16 { return int16(bits.ReverseBytes16(uint16(v))) }

// SwapInt32 reverses the byte order of v.
func SwapInt32(v int32) int32 { return int32(bits.ReverseBytes32(uint32(v))) }

// SwapFloat32 reverses the byte order of the IEEE bits of v. The bit pattern
// is preserved exactly, NaN payloads included.
func SwapFloat32(v float32) float32 {
	return math.Float32frombits(bits.ReverseBytes32(math.Float32bits(v)))
}

// Swap reverses the byte order of every component.
func (v Vec3) Swap() Vec3 {
	return Vec3{SwapFloat32(v.X), SwapFloat32(v.Y), SwapFloat32(v.Z)}
}

// Swap reverses the byte order of every component.
func (v Vec4) Swap() Vec4 {
	return Vec4{SwapFloat32(v.X), SwapFloat32(v.Y), SwapFloat32(v.Z), SwapFloat32(v.W)}
}

// Swap reverses the byte order of both corners.
func (b BoundingBox4) Swap() BoundingBox4 {
	return BoundingBox4{Min: b.Min.Swap(), Max: b.Max.Swap()}
}

// Swap reverses the byte order of every element.
func (m Mat4) Swap() Mat4 {
	for i := range m {
		m[i] = SwapFloat32(m[i])
	}
	return m
}

// SwapWords returns a copy of data with every 32-bit word byte-reversed.
// A trailing partial word is copied unchanged.
func SwapWords(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	SwapWordsInPlace(out)
	return out
}

// SwapWordsInPlace byte-reverses every full 32-bit word of data.
func SwapWordsInPlace(data []byte) {
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = data[i+3], data[i+2], data[i+1], data[i]
	}
}

// SwapUint16s byte-reverses every element of values in place.
func SwapUint16s(values []uint16) []uint16 {
	for i, v := range values {
		values[i] = SwapUint16(v)
	}
	return values
}
