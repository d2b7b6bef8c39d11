package math

import (
	"math"
	"testing"
)

// nanSentinel is a quiet NaN with a payload, as found in unused W lanes.
var nanSentinel = math.Float32frombits(0x7FC00001)

func sameBits(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}

func TestSwapScalarsInvolution(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x1234, 0xFFFF} {
		if got := SwapUint16(SwapUint16(v)); got != v {
			t.Errorf("SwapUint16 involution: got %#x, want %#x", got, v)
		}
	}
	for _, v := range []uint32{0, 1, 0x12345678, 0xCDCDCDCD} {
		if got := SwapUint32(SwapUint32(v)); got != v {
			t.Errorf("SwapUint32 involution: got %#x, want %#x", got, v)
		}
	}
	if got := SwapUint64(SwapUint64(0x0102030405060708)); got != 0x0102030405060708 {
		t.Errorf("SwapUint64 involution: got %#x", got)
	}
	if got := SwapInt16(SwapInt16(-2)); got != -2 {
		t.Errorf("SwapInt16 involution: got %d", got)
	}
	if got := SwapInt32(SwapInt32(-123456)); got != -123456 {
		t.Errorf("SwapInt32 involution: got %d", got)
	}
	if got := SwapUint32(0x12345678); got != 0x78563412 {
		t.Errorf("SwapUint32: got %#x, want 0x78563412", got)
	}
}

func TestSwapFloatInvolution(t *testing.T) {
	values := []float32{0, -0, 1.5, -3.25, float32(math.Inf(1)), nanSentinel, float32(math.NaN())}
	for _, v := range values {
		if got := SwapFloat32(SwapFloat32(v)); !sameBits(got, v) {
			t.Errorf("SwapFloat32 involution: got bits %#x, want %#x", math.Float32bits(got), math.Float32bits(v))
		}
	}
}

func TestSwapVectorsInvolution(t *testing.T) {
	v3 := Vec3{1, -2, 3.5}
	if got := v3.Swap().Swap(); got != v3 {
		t.Errorf("Vec3 swap involution: got %v, want %v", got, v3)
	}

	v4 := Vec4{1, 2, 3, nanSentinel}
	got := v4.Swap().Swap()
	if !sameBits(got.X, v4.X) || !sameBits(got.Y, v4.Y) || !sameBits(got.Z, v4.Z) || !sameBits(got.W, v4.W) {
		t.Errorf("Vec4 swap involution lost bits: %v", got)
	}

	box := BoundingBox4{Min: Vec4{-1, -2, -3, nanSentinel}, Max: Vec4{1, 2, 3, 0}}
	gotBox := box.Swap().Swap()
	if !sameBits(gotBox.Min.W, box.Min.W) || gotBox.Max != box.Max {
		t.Errorf("BoundingBox4 swap involution: got %v", gotBox)
	}

	m := Translate(4, 5, 6)
	m[3] = nanSentinel
	gotM := m.Swap().Swap()
	for i := range m {
		if !sameBits(gotM[i], m[i]) {
			t.Errorf("Mat4 swap involution element %d: got %v, want %v", i, gotM[i], m[i])
		}
	}
}

func TestAxisInvolution(t *testing.T) {
	v3 := Vec3{1, 2, 3}
	if got := v3.ToZXY(); got != (Vec3{3, 1, 2}) {
		t.Errorf("ToZXY: got %v, want {3 1 2}", got)
	}
	if got := v3.ToZXY().ToYZX(); got != v3 {
		t.Errorf("Vec3 axis round trip: got %v", got)
	}
	if got := v3.ToYZX().ToZXY(); got != v3 {
		t.Errorf("Vec3 inverse axis round trip: got %v", got)
	}

	v4 := Vec4{1, 2, 3, nanSentinel}
	got := v4.ToZXY().ToYZX()
	if got.X != 1 || got.Y != 2 || got.Z != 3 || !sameBits(got.W, nanSentinel) {
		t.Errorf("Vec4 axis round trip: got %v", got)
	}

	box := BoundingBox4{Min: Vec4{1, 2, 3, 0}, Max: Vec4{4, 5, 6, 0}}
	if got := box.ToZXY().ToYZX(); got != box {
		t.Errorf("BoundingBox4 axis round trip: got %v", got)
	}

	m := Mat4{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	if got := m.ToZXY().ToYZX(); got != m {
		t.Errorf("Mat4 axis round trip: got %v", got)
	}
	if got := m.ToYZX().ToZXY(); got != m {
		t.Errorf("Mat4 inverse axis round trip: got %v", got)
	}
}

func TestMat4ToZXYTransformsConsistently(t *testing.T) {
	// Transforming a source point then converting must match converting both first.
	src := Translate(1, 2, 3).Mul(Scale(2, 3, 4))
	p := Vec3{5, 6, 7}
	want := src.TransformVec3(p).ToZXY()
	got := src.ToZXY().TransformVec3(p.ToZXY())
	if got != want {
		t.Errorf("converted transform: got %v, want %v", got, want)
	}
}

func TestClearNaNW(t *testing.T) {
	v := Vec4{1, 2, 3, nanSentinel}.ClearNaNW()
	if v.W != 0 {
		t.Errorf("ClearNaNW: got W %v, want 0", v.W)
	}
	v = Vec4{1, 2, 3, 7}.ClearNaNW()
	if v.W != 7 {
		t.Errorf("ClearNaNW changed a real W: %v", v.W)
	}

	m := Identity()
	m[3], m[7], m[11], m[15] = nanSentinel, nanSentinel, nanSentinel, nanSentinel
	m = m.ClearNaNW()
	if m[3] != 0 || m[7] != 0 || m[11] != 0 || m[15] != 0 {
		t.Errorf("Mat4 ClearNaNW: got %v", m)
	}
}

func TestSwapWords(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	out := SwapWords(in)
	want := []byte{4, 3, 2, 1, 8, 7, 6, 5, 9}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("SwapWords: got %v, want %v", out, want)
		}
	}
	if in[0] != 1 {
		t.Error("SwapWords modified its input")
	}
	back := SwapWords(out)
	for i := range in {
		if back[i] != in[i] {
			t.Fatalf("SwapWords involution: got %v, want %v", back, in)
		}
	}
}

func TestSwapUint16s(t *testing.T) {
	v := SwapUint16s([]uint16{0x0102, 0xA0B0})
	if v[0] != 0x0201 || v[1] != 0xB0A0 {
		t.Errorf("SwapUint16s: got %#x", v)
	}
}
