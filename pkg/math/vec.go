// Package math provides the vector, matrix and byte-order helpers used by
// the RSC5 decoder.
//
// Source data uses a (Z,X,Y) axis order. ToZXY converts a source vector into
// the (X,Y,Z) order used everywhere else and ToYZX converts it back.
package math

import "math"

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale returns v * scalar.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Mul returns the component-wise product.
func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Length returns the vector length.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns a unit vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Min returns the component-wise minimum.
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{min(v.X, other.X), min(v.Y, other.Y), min(v.Z, other.Z)}
}

// Max returns the component-wise maximum.
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{max(v.X, other.X), max(v.Y, other.Y), max(v.Z, other.Z)}
}

// ToZXY converts a source-order vector to (X,Y,Z) order.
func (v Vec3) ToZXY() Vec3 {
	return Vec3{v.Z, v.X, v.Y}
}

// ToYZX is the inverse of ToZXY.
func (v Vec3) ToYZX() Vec3 {
	return Vec3{v.Y, v.Z, v.X}
}

// Vec4 is a 4-component vector.
type Vec4 struct {
	X, Y, Z, W float32
}

// XYZ drops the W component.
func (v Vec4) XYZ() Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// ToZXY converts a source-order vector to (X,Y,Z,W) order. W is untouched.
func (v Vec4) ToZXY() Vec4 {
	return Vec4{v.Z, v.X, v.Y, v.W}
}

// ToYZX is the inverse of ToZXY.
func (v Vec4) ToYZX() Vec4 {
	return Vec4{v.Y, v.Z, v.X, v.W}
}

// ClearNaNW replaces a NaN W component with zero. Source data uses NaN to
// mark an unused W.
func (v Vec4) ClearNaNW() Vec4 {
	if v.W != v.W {
		v.W = 0
	}
	return v
}
