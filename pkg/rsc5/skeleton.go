package rsc5

import (
	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// Skeleton points at the root bone of a bone tree.
type Skeleton struct {
	Root  Ptr[Bone]
	Bones []*Bone // depth-first, root first

	// World and InverseBind are indexed like Bones.
	World       []rmath.Mat4
	InverseBind []rmath.Mat4
}

func (s *Skeleton) Read(r *Reader) {
	s.Root = ReadPtr[Bone](r)
	s.Bones = flattenBones(s.Root.Item)
	s.World = make([]rmath.Mat4, len(s.Bones))
	s.InverseBind = make([]rmath.Mat4, len(s.Bones))
	for i, b := range s.Bones {
		s.World[i] = b.WorldTransform()
		s.InverseBind[i] = s.World[i].Inverse()
	}
}

// Bone returns the bone named name, or nil.
func (s *Skeleton) Bone(name string) *Bone {
	for _, b := range s.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// flattenBones walks first-child and next-sibling links. Every bone is
// visited once even when the links form a cycle.
func flattenBones(root *Bone) []*Bone {
	if root == nil {
		return nil
	}
	var out []*Bone
	visited := make(map[*Bone]bool)
	stack := []*Bone{root}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b == nil || visited[b] {
			continue
		}
		visited[b] = true
		out = append(out, b)
		// sibling below child so the child subtree comes first
		stack = append(stack, b.NextSibling.Item, b.FirstChild.Item)
	}
	return out
}

// Bone is one joint. Links to siblings, children and the parent are
// resolved to shared instances.
type Bone struct {
	NameRef     Str
	Unknown1    uint16
	Flags       uint16
	NextSibling Ptr[Bone]
	FirstChild  Ptr[Bone]
	Parent      Ptr[Bone]
	Index       uint16
	ID          uint16
	Mirror      uint16
	Unknown3    uint16
	Unknown4    uint32

	OrigPosition          rmath.Vec4
	OrigRotationEuler     rmath.Vec4
	OrigRotation          rmath.Vec4
	OrigScale             rmath.Vec4
	AbsolutePosition      rmath.Vec4
	AbsoluteRotationEuler rmath.Vec4
	Sorient               rmath.Vec4
	TranslationMin        rmath.Vec4
	TranslationMax        rmath.Vec4
	RotationMin           rmath.Vec4
	RotationMax           rmath.Vec4
	Unknown5              rmath.Vec4

	Name     string
	Position rmath.Vec3
	Rotation rmath.Quat
	Scale    rmath.Vec3
}

func (b *Bone) Read(r *Reader) {
	b.NameRef = ReadStr(r)
	b.Unknown1 = r.ReadUint16()
	b.Flags = r.ReadUint16()
	b.NextSibling = ReadPtr[Bone](r)
	b.FirstChild = ReadPtr[Bone](r)
	b.Parent = ReadPtr[Bone](r)
	b.Index = r.ReadUint16()
	b.ID = r.ReadUint16()
	b.Mirror = r.ReadUint16()
	b.Unknown3 = r.ReadUint16()
	b.Unknown4 = r.ReadUint32()
	for _, v := range []*rmath.Vec4{
		&b.OrigPosition, &b.OrigRotationEuler, &b.OrigRotation, &b.OrigScale,
		&b.AbsolutePosition, &b.AbsoluteRotationEuler, &b.Sorient,
		&b.TranslationMin, &b.TranslationMax, &b.RotationMin, &b.RotationMax,
		&b.Unknown5,
	} {
		*v = r.ReadVector4()
	}

	b.Name = b.NameRef.Value
	b.Position = b.OrigPosition.XYZ()
	b.Rotation = rmath.QuatFromVec4(b.OrigRotation)
	b.Scale = rmath.Vec3{X: 1, Y: 1, Z: 1}
}

// LocalTransform composes position, rotation and scale.
func (b *Bone) LocalTransform() rmath.Mat4 {
	return rmath.Compose(b.Position, b.Rotation, b.Scale)
}

// WorldTransform multiplies the local transforms from the root down to b.
// A parent chain that loops back on itself stops at the repeated bone.
func (b *Bone) WorldTransform() rmath.Mat4 {
	var chain []*Bone
	seen := make(map[*Bone]bool)
	for p := b; p != nil && !seen[p]; p = p.Parent.Item {
		seen[p] = true
		chain = append(chain, p)
	}
	m := rmath.Identity()
	for i := len(chain) - 1; i >= 0; i-- {
		m = m.Mul(chain[i].LocalTransform())
	}
	return m
}

// WorldPosition is the bone's origin in model space.
func (b *Bone) WorldPosition() rmath.Vec3 {
	return b.WorldTransform().Translation()
}
