package math

import gomath "math"

// Mat4 is a 4x4 matrix in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
//
// Sixteen floats read sequentially from a resource land in this layout with
// the translation in m12..m14.
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// TransformVec3 transforms a point by this matrix (assumes w=1).
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	x := m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]
	y := m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]
	z := m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]
	w := m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]
	if w != 0 && w != 1 {
		return Vec3{x / w, y / w, z / w}
	}
	return Vec3{x, y, z}
}

// Translation returns the translation part.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// ClearNaNW zeroes NaN values in the fourth row (m3, m7, m11, m15).
// Source data leaves those lanes uninitialised.
func (m Mat4) ClearNaNW() Mat4 {
	for _, i := range [...]int{3, 7, 11, 15} {
		if m[i] != m[i] {
			m[i] = 0
		}
	}
	return m
}

// ToZXY converts a source-order matrix to (X,Y,Z) order. Basis columns are
// reordered and every column's xyz part is permuted.
func (m Mat4) ToZXY() Mat4 {
	col := func(i int) Vec4 { return Vec4{m[i*4], m[i*4+1], m[i*4+2], m[i*4+3]} }
	return fromColumns(col(2).ToZXY(), col(0).ToZXY(), col(1).ToZXY(), col(3).ToZXY())
}

// ToYZX is the inverse of ToZXY.
func (m Mat4) ToYZX() Mat4 {
	col := func(i int) Vec4 { return Vec4{m[i*4], m[i*4+1], m[i*4+2], m[i*4+3]} }
	return fromColumns(col(1).ToYZX(), col(2).ToYZX(), col(0).ToYZX(), col(3).ToYZX())
}

func fromColumns(c0, c1, c2, c3 Vec4) Mat4 {
	return Mat4{
		c0.X, c0.Y, c0.Z, c0.W,
		c1.X, c1.Y, c1.Z, c1.W,
		c2.X, c2.Y, c2.Z, c2.W,
		c3.X, c3.Y, c3.Z, c3.W,
	}
}

// Inverse returns the inverse of m by Gauss-Jordan elimination with
// partial pivoting, carried out in float64. A singular matrix yields the
// identity.
func (m Mat4) Inverse() Mat4 {
	// a is row-major: a[r][c] = m[c*4+r], augmented with the identity.
	var a [4][8]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = float64(m[c*4+r])
		}
		a[r][4+r] = 1
	}
	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if gomath.Abs(a[r][col]) > gomath.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if gomath.Abs(a[pivot][col]) < 1e-12 {
			return Identity()
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv := 1 / a[col][col]
		for c := range a[col] {
			a[col][c] *= inv
		}
		for r := 0; r < 4; r++ {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := range a[r] {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = float32(a[r][4+c])
		}
	}
	return out
}
