package math

import "testing"

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())
	if result != m {
		t.Errorf("M * I should equal M: got %v", result)
	}
}

func TestTransformVec3(t *testing.T) {
	m := Translate(10, 20, 30).Mul(Scale(2, 2, 2))
	got := m.TransformVec3(Vec3{1, 2, 3})
	if got != (Vec3{12, 24, 36}) {
		t.Errorf("TransformVec3: got %v, want {12 24 36}", got)
	}
	if tr := m.Translation(); tr != (Vec3{10, 20, 30}) {
		t.Errorf("Translation: got %v", tr)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(3, -4, 5).Mul(Scale(2, 4, 8))
	id := m.Mul(m.Inverse())
	want := Identity()
	for i := range id {
		if abs(id[i]-want[i]) > 1e-5 {
			t.Fatalf("M * M^-1 element %d: got %f, want %f", i, id[i], want[i])
		}
	}
}

func TestInverseRotationAndPivot(t *testing.T) {
	q := Quat{Z: 0.70710677, W: 0.70710677}
	m := Compose(Vec3{1, 2, 3}, q, Vec3{1, 1, 1})
	p := m.Inverse().TransformVec3(m.TransformVec3(Vec3{4, -5, 6}))
	if abs(p.X-4) > 1e-4 || abs(p.Y+5) > 1e-4 || abs(p.Z-6) > 1e-4 {
		t.Errorf("round trip through inverse: got %v", p)
	}

	// zero on the leading diagonal needs a row swap
	swap := Mat4{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	if inv := swap.Inverse(); inv != swap {
		t.Errorf("permutation inverse: got %v", inv)
	}
	if inv := Scale(0, 1, 1).Inverse(); inv != Identity() {
		t.Errorf("singular matrix: got %v, want identity", inv)
	}
}

func TestQuatToMat4(t *testing.T) {
	// 90 degrees around Z: (sin45, cos45)
	q := Quat{Z: 0.70710677, W: 0.70710677}
	p := q.ToMat4().TransformVec3(Vec3{1, 0, 0})
	if abs(p.X) > 1e-5 || abs(p.Y-1) > 1e-5 || abs(p.Z) > 1e-5 {
		t.Errorf("rotate X by 90deg around Z: got %v, want {0 1 0}", p)
	}
	if QuatFromVec4(Vec4{0, 0, 0, 0}).Normalize() != QuatIdentity() {
		t.Error("degenerate quaternion should normalize to identity")
	}
}

func TestCompose(t *testing.T) {
	m := Compose(Vec3{1, 2, 3}, QuatIdentity(), Vec3{2, 2, 2})
	got := m.TransformVec3(Vec3{1, 1, 1})
	if got != (Vec3{3, 4, 5}) {
		t.Errorf("Compose: got %v, want {3 4 5}", got)
	}
}

func TestBoundingBox(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Error("EmptyBox should be empty")
	}
	b = b.Expand(Vec3{1, 2, 3}).Expand(Vec3{-1, 0, 5})
	if b.Min != (Vec3{-1, 0, 3}) || b.Max != (Vec3{1, 2, 5}) {
		t.Errorf("Expand: got %v", b)
	}
	if c := b.Center(); c != (Vec3{0, 1, 4}) {
		t.Errorf("Center: got %v", c)
	}
	if s := b.Size(); s != (Vec3{2, 2, 2}) {
		t.Errorf("Size: got %v", s)
	}
	moved := b.Transform(Translate(10, 0, 0))
	if moved.Min.X != 9 || moved.Max.X != 11 {
		t.Errorf("Transform: got %v", moved)
	}
	if u := b.Union(EmptyBox()); u != b {
		t.Errorf("Union with empty: got %v", u)
	}
}

func TestVec3Ops(t *testing.T) {
	a := Vec3{1, 0, 0}
	b := Vec3{0, 1, 0}
	if c := a.Cross(b); c != (Vec3{0, 0, 1}) {
		t.Errorf("Cross: got %v", c)
	}
	if l := (Vec3{3, 4, 0}).Length(); l != 5 {
		t.Errorf("Length: got %f", l)
	}
	if n := (Vec3{0, 0, 2}).Normalize(); n != (Vec3{0, 0, 1}) {
		t.Errorf("Normalize: got %v", n)
	}
	if m := (Vec3{1, 2, 3}).Mul(Vec3{2, 2, 2}); m != (Vec3{2, 4, 6}) {
		t.Errorf("Mul: got %v", m)
	}
}
