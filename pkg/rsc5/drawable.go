package rsc5

import (
	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// Model is a group of geometries sharing a skeleton binding.
type Model struct {
	VFT             uint32
	Geometries      PtrArr[*Geometry]
	BoundsData      RawArr[rmath.Vec4] // one box per geometry, plus one for the model when there are several
	ShaderMapping   RawArr[uint16]
	SkeletonBinding uint32
	RenderMaskFlags uint16
	GeometryCount   uint16
}

func (m *Model) Read(r *Reader) {
	m.VFT = r.ReadUint32()
	m.Geometries = ReadPtrArr[Geometry](r)
	m.BoundsData = ReadRawArrPtr[rmath.Vec4](r)
	m.ShaderMapping = ReadRawArrPtr[uint16](r)
	m.SkeletonBinding = r.ReadUint32()
	m.RenderMaskFlags = r.ReadUint16()
	m.GeometryCount = r.ReadUint16()

	n := int(m.Geometries.Count)
	m.ShaderMapping.ReadItems(r, n, 2, (*Reader).ReadUint16)
	nb := n
	if n > 1 {
		nb = n + 1
	}
	m.BoundsData.ReadItems(r, nb, 16, (*Reader).ReadRawVector4)

	boxes := m.Boxes()
	for i, g := range m.Geometries.Items {
		if g == nil {
			continue
		}
		if i < len(m.ShaderMapping.Items) {
			g.ShaderID = m.ShaderMapping.Items[i]
		}
		switch {
		case len(boxes) > 1 && i+1 < len(boxes):
			g.AABB = boxes[i+1]
		case len(boxes) > 0:
			g.AABB = boxes[0]
		}
	}
}

// Boxes converts the stored centre/extent vectors to boxes. Each vector holds
// a source-order centre in XYZ and the half extent in W.
func (m *Model) Boxes() []rmath.BoundingBox4 {
	out := make([]rmath.BoundingBox4, len(m.BoundsData.Items))
	for i, v := range m.BoundsData.Items {
		out[i] = rmath.BoundingBox4{
			Min: rmath.Vec4{X: v.Z - v.W, Y: v.X - v.W, Z: v.Y - v.W},
			Max: rmath.Vec4{X: v.Z + v.W, Y: v.X + v.W, Z: v.Y + v.W},
		}
	}
	return out
}

// BoneIndex is the bone a rigid model is attached to.
func (m *Model) BoneIndex() int { return int(m.SkeletonBinding >> 24) }

// HasSkin reports whether the model is skinned.
func (m *Model) HasSkin() bool { return (m.SkeletonBinding>>8)&0xFF != 0 }

// RenderMask returns the low byte of the render flags.
func (m *Model) RenderMask() uint8 { return uint8(m.RenderMaskFlags) }

// DrawableLod is one level of detail: a list of models.
type DrawableLod struct {
	Models  PtrArr[*Model]
	LodDist float32
}

func (l *DrawableLod) Read(r *Reader) {
	l.Models = ReadPtrArr[Model](r)
}

// DrawableLodMap is a level of detail stored as a hashed dictionary.
type DrawableLodMap struct {
	VFT              uint32
	BlockMap         Ptr[BlockMap]
	ParentDictionary uint32
	RefCount         uint32
	Hashes           Arr[uint32]
	DrawableLod
}

func (l *DrawableLodMap) Read(r *Reader) {
	l.VFT = r.ReadUint32()
	l.BlockMap = ReadPtr[BlockMap](r)
	l.ParentDictionary = r.ReadUint32()
	l.RefCount = r.ReadUint32()
	l.Hashes = ReadArr(r, 4, (*Reader).ReadUint32)
	l.DrawableLod.Read(r)
}

// noLodDistance is the draw distance of single-LOD drawables.
const noLodDistance = 9999

// lodSet is shared by every drawable variant.
type lodSet struct {
	Lods []*DrawableLod
}

// Models returns the models of every LOD.
func (s *lodSet) Models() []*Model {
	var out []*Model
	for _, l := range s.Lods {
		if l == nil {
			continue
		}
		for _, m := range l.Models.Items {
			if m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}

// Geometries returns the geometries of every LOD.
func (s *lodSet) Geometries() []*Geometry {
	var out []*Geometry
	for _, m := range s.Models() {
		for _, g := range m.Geometries.Items {
			if g != nil {
				out = append(out, g)
			}
		}
	}
	return out
}

// assignShaders gives every geometry the material of the shader it indexes.
func (s *lodSet) assignShaders(group *ShaderGroup) {
	for _, g := range s.Geometries() {
		g.Material = NewMaterial(group.Shader(int(g.ShaderID)))
	}
}

func (s *lodSet) bounds() rmath.BoundingBox {
	box := rmath.EmptyBox()
	for _, g := range s.Geometries() {
		box = box.Union(g.Bounds())
	}
	return box
}

// DrawableBase is a drawable with up to four LODs, an optional skeleton and
// its own shaders.
type DrawableBase struct {
	VFT            uint32
	BlockMap       Ptr[BlockMap]
	ShaderGroup    Ptr[ShaderGroup]
	Skeleton       Ptr[Skeleton]
	BoundingCenter rmath.Vec4
	BoundingMin    rmath.Vec4
	BoundingMax    rmath.Vec4
	LodPtrs        [4]Ptr[DrawableLod] // high, med, low, very low
	LodDists       [4]float32
	DrawBucketMask [4]int32
	SphereRadius   float32

	lodSet
	Textures map[string]*Texture
}

func (d *DrawableBase) Read(r *Reader) {
	d.VFT = r.ReadUint32()
	d.BlockMap = ReadPtr[BlockMap](r)
	d.ShaderGroup = ReadPtr[ShaderGroup](r)
	d.Skeleton = ReadPtr[Skeleton](r)
	d.BoundingCenter = r.ReadVector4()
	d.BoundingMin = r.ReadVector4()
	d.BoundingMax = r.ReadVector4()
	for i := range d.LodPtrs {
		d.LodPtrs[i] = ReadPtr[DrawableLod](r)
	}
	for i := range d.LodDists {
		d.LodDists[i] = r.ReadFloat32()
	}
	for i := range d.DrawBucketMask {
		d.DrawBucketMask[i] = r.ReadInt32()
	}
	d.SphereRadius = r.ReadFloat32()

	d.Lods = make([]*DrawableLod, len(d.LodPtrs))
	for i, p := range d.LodPtrs {
		d.Lods[i] = p.Item
		if p.Item != nil {
			p.Item.LodDist = d.LodDists[i]
		}
	}
	d.assignShaders(d.ShaderGroup.Item)
	d.bindSkeleton()

	d.Textures = make(map[string]*Texture)
	if g := d.ShaderGroup.Item; g != nil {
		for _, t := range g.Textures() {
			d.Textures[t.Name] = t
		}
	}
}

// bindSkeleton attaches rigid models to their bone.
func (d *DrawableBase) bindSkeleton() {
	skel := d.Skeleton.Item
	if skel == nil {
		return
	}
	for _, m := range d.Models() {
		bone := m.BoneIndex()
		if m.HasSkin() || bone >= len(skel.Bones) {
			continue
		}
		for _, g := range m.Geometries.Items {
			if g != nil {
				g.BoneIndex = bone
			}
		}
	}
}

// BoundingBox returns the stored bounding box.
func (d *DrawableBase) BoundingBox() rmath.BoundingBox {
	return rmath.BoundingBox{Min: d.BoundingMin.XYZ(), Max: d.BoundingMax.XYZ()}
}

// Drawable is a single-LOD drawable whose LOD is stored inline at the
// drawable's own address. It carries no shaders of its own.
type Drawable struct {
	Lod DrawableLod

	lodSet
}

func (d *Drawable) Read(r *Reader) {
	d.Lod.Read(r)
	d.Lod.LodDist = noLodDistance
	d.Lods = []*DrawableLod{&d.Lod}
	d.assignShaders(nil)
}

// SimpleDrawableBase is the single-LOD drawable of city packs. Its bounds
// are computed from the geometry boxes.
type SimpleDrawableBase struct {
	VFT         uint32
	BlockMap    Ptr[BlockMap]
	ShaderGroup Ptr[ShaderGroup]
	Lod         Ptr[DrawableLodMap]

	lodSet
	Bounds       rmath.BoundingBox
	SphereCenter rmath.Vec3
	SphereRadius float32
}

func (d *SimpleDrawableBase) Read(r *Reader) {
	d.VFT = r.ReadUint32()
	d.BlockMap = ReadPtr[BlockMap](r)
	d.ShaderGroup = ReadPtr[ShaderGroup](r)
	d.Lod = ReadPtr[DrawableLodMap](r)

	if l := d.Lod.Item; l != nil {
		l.LodDist = noLodDistance
		d.Lods = []*DrawableLod{&l.DrawableLod}
	}
	d.assignShaders(d.ShaderGroup.Item)

	d.Bounds = d.bounds()
	if !d.Bounds.IsEmpty() {
		d.SphereCenter = d.Bounds.Center()
		d.SphereRadius = d.Bounds.Max.Sub(d.SphereCenter).Length()
	}
}

// AmbientDrawablePed is the root of .xapb files.
type AmbientDrawablePed struct {
	VFT      uint32
	BlockMap Ptr[BlockMap]
	Drawable Ptr[DrawableBase]
}

func (p *AmbientDrawablePed) Read(r *Reader) {
	p.VFT = r.ReadUint32()
	p.BlockMap = ReadPtr[BlockMap](r)
	p.Drawable = ReadPtr[DrawableBase](r)
}

// City is the root of city .xshp packs: a texture dictionary and the
// drawable using it.
type City struct {
	VFT        uint32
	BlockMap   Ptr[BlockMap]
	Dictionary Ptr[TextureDictionary]
	Unknown    uint32
	Drawable   Ptr[SimpleDrawableBase]
}

func (c *City) Read(r *Reader) {
	c.VFT = r.ReadUint32()
	c.BlockMap = ReadPtr[BlockMap](r)
	c.Dictionary = ReadPtr[TextureDictionary](r)
	c.Unknown = r.ReadUint32()
	c.Drawable = ReadPtr[SimpleDrawableBase](r)
}

// Fragment is the root of .xft files.
type Fragment struct {
	VFT       uint32
	BlockMap  Ptr[BlockMap]
	Drawable  Ptr[Drawable]
	UnknownC  uint32
	Unknown10 uint32
	Unknown14 PtrArr[*BlockMap]
	Unknown1C uint32
	Unknown20 uint32
	Skeleton  Ptr[Skeleton]
}

func (f *Fragment) Read(r *Reader) {
	f.VFT = r.ReadUint32()
	f.BlockMap = ReadPtr[BlockMap](r)
	f.Drawable = ReadPtr[Drawable](r)
	f.UnknownC = r.ReadUint32()
	f.Unknown10 = r.ReadUint32()
	f.Unknown14 = ReadPtrArr[BlockMap](r)
	f.Unknown1C = r.ReadUint32()
	f.Unknown20 = r.ReadUint32()
	f.Skeleton = ReadPtr[Skeleton](r)
}
