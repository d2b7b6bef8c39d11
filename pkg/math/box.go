package math

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	Min, Max Vec3
}

// EmptyBox returns a box that any Expand call will replace.
func EmptyBox() BoundingBox {
	const f = 3.4028235e38
	return BoundingBox{
		Min: Vec3{f, f, f},
		Max: Vec3{-f, -f, -f},
	}
}

// IsEmpty reports whether the box has not been expanded.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Expand grows the box to contain p.
func (b BoundingBox) Expand(p Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns a box containing both boxes.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if other.IsEmpty() {
		return b
	}
	return BoundingBox{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Center returns the center point.
func (b BoundingBox) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extents.
func (b BoundingBox) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Corners returns the eight corners of the box.
func (b BoundingBox) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// Transform returns the axis-aligned box around b transformed by m.
func (b BoundingBox) Transform(m Mat4) BoundingBox {
	out := EmptyBox()
	for _, c := range b.Corners() {
		out = out.Expand(m.TransformVec3(c))
	}
	return out
}

// BoundingBox4 is a box stored as two 4-component vectors.
type BoundingBox4 struct {
	Min, Max Vec4
}

// Box drops the W components.
func (b BoundingBox4) Box() BoundingBox {
	return BoundingBox{Min: b.Min.XYZ(), Max: b.Max.XYZ()}
}

// ToZXY converts both corners to (X,Y,Z,W) order.
func (b BoundingBox4) ToZXY() BoundingBox4 {
	return BoundingBox4{Min: b.Min.ToZXY(), Max: b.Max.ToZXY()}
}

// ToYZX is the inverse of ToZXY.
func (b BoundingBox4) ToYZX() BoundingBox4 {
	return BoundingBox4{Min: b.Min.ToYZX(), Max: b.Max.ToYZX()}
}
