package rsc5

import (
	"fmt"
	"math"

	"github.com/Faultbox/rpfkit/pkg/jenk"
	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// BoundsType selects the collision shape of a bounds block.
type BoundsType uint8

const (
	BoundsSphere      BoundsType = 0
	BoundsCapsule     BoundsType = 1
	BoundsBox         BoundsType = 3
	BoundsGeometry    BoundsType = 4
	BoundsGeometryBVH BoundsType = 10
	BoundsComposite   BoundsType = 12
)

func (t BoundsType) String() string {
	switch t {
	case BoundsSphere:
		return "sphere"
	case BoundsCapsule:
		return "capsule"
	case BoundsBox:
		return "box"
	case BoundsGeometry:
		return "geometry"
	case BoundsGeometryBVH:
		return "geometry_bvh"
	case BoundsComposite:
		return "composite"
	default:
		return fmt.Sprintf("bounds(%d)", uint8(t))
	}
}

// Bounds is a collision shape. The concrete types are *BoundsBase,
// *BoundSphere, *BoundCapsule, *BoundBox, *BoundGeometry,
// *BoundGeometryBVH and *BoundComposite.
type Bounds interface {
	Block
	Base() *BoundsBase
}

// ReadBounds decodes the bounds at pos, choosing the variant from its type
// byte. Unknown types decode as *BoundsBase.
func ReadBounds(r *Reader, pos uint32) Bounds {
	b := r.readBlock(pos, newBounds, func(b Block) bool { _, ok := b.(Bounds); return ok })
	if b == nil {
		return nil
	}
	return b.(Bounds)
}

func newBounds(r *Reader) Block {
	r.Skip(4)
	switch BoundsType(r.ReadUint8()) {
	case BoundsSphere:
		return new(BoundSphere)
	case BoundsCapsule:
		return new(BoundCapsule)
	case BoundsBox:
		return new(BoundBox)
	case BoundsGeometry:
		return new(BoundGeometry)
	case BoundsGeometryBVH:
		return new(BoundGeometryBVH)
	case BoundsComposite:
		return new(BoundComposite)
	default:
		return new(BoundsBase)
	}
}

// BoundsBase holds the fields shared by every shape.
type BoundsBase struct {
	VFT          uint32
	Type         BoundsType
	Unknown1     uint8
	Unknown2     uint16
	SphereRadius float32
	WorldRadius  float32
	BoxMax       rmath.Vec4
	BoxMin       rmath.Vec4
	BoxCenter    rmath.Vec4
	Unknown3     rmath.Vec4
	SphereCenter rmath.Vec4
	Unknown4     rmath.Vec4
	Margin       rmath.Vec3
	RefCount     uint32
}

func (b *BoundsBase) Read(r *Reader) {
	b.VFT = r.ReadUint32()
	b.Type = BoundsType(r.ReadUint8())
	b.Unknown1 = r.ReadUint8()
	b.Unknown2 = r.ReadUint16()
	b.SphereRadius = r.ReadFloat32()
	b.WorldRadius = r.ReadFloat32()
	b.BoxMax = r.ReadVector4()
	b.BoxMin = r.ReadVector4()
	b.BoxCenter = r.ReadVector4()
	b.Unknown3 = r.ReadVector4()
	b.SphereCenter = r.ReadVector4()
	b.Unknown4 = r.ReadVector4()
	b.Margin = r.ReadVector3()
	b.RefCount = r.ReadUint32()
}

func (b *BoundsBase) Base() *BoundsBase { return b }

// Box returns the stored box.
func (b *BoundsBase) Box() rmath.BoundingBox {
	return rmath.BoundingBox{Min: b.BoxMin.XYZ(), Max: b.BoxMax.XYZ()}
}

func (b *BoundsBase) String() string {
	return fmt.Sprintf("%s %v %v", b.Type, b.BoxMin.XYZ(), b.BoxMax.XYZ())
}

// BoundMaterial is a packed collision material reference.
type BoundMaterial struct {
	Index   uint8
	Unknown uint8
	Flags   uint16
}

func readBoundMaterial(r *Reader) BoundMaterial {
	return BoundMaterial{Index: r.ReadUint8(), Unknown: r.ReadUint8(), Flags: r.ReadUint16()}
}

// BoundSphere is a sphere of Radius.X.
type BoundSphere struct {
	BoundsBase
	Radius   rmath.Vec4
	Material BoundMaterial
	Padding  uint32
}

func (b *BoundSphere) Read(r *Reader) {
	b.BoundsBase.Read(r)
	b.Radius = r.ReadVector4()
	b.Material = readBoundMaterial(r)
	b.Padding = r.ReadUint32()
}

// BoundCapsule is a capsule of Radius.X and Height.X.
type BoundCapsule struct {
	BoundsBase
	Radius   rmath.Vec4
	Height   rmath.Vec4
	Unknown5 rmath.Vec4
	Unknown6 rmath.Vec4
	Unknown7 rmath.Vec4
	Material BoundMaterial
	Unknown8 rmath.Vec3
}

func (b *BoundCapsule) Read(r *Reader) {
	b.BoundsBase.Read(r)
	b.Radius = r.ReadVector4()
	b.Height = r.ReadVector4()
	b.Unknown5 = r.ReadVector4()
	b.Unknown6 = r.ReadVector4()
	b.Unknown7 = r.ReadVector4()
	b.Material = readBoundMaterial(r)
	b.Unknown8 = r.ReadVector3()
}

// Vector3S is a quantized vertex.
type Vector3S struct {
	X, Y, Z int16
}

// readVector3S reads a source-order short vector in (X,Y,Z) order.
func readVector3S(r *Reader) Vector3S {
	v := Vector3S{X: r.ReadInt16(), Y: r.ReadInt16(), Z: r.ReadInt16()}
	return Vector3S{X: v.Z, Y: v.X, Z: v.Y}
}

// Dequantize scales the vector by quantum and offsets it by center.
func (v Vector3S) Dequantize(quantum, center rmath.Vec3) rmath.Vec3 {
	return rmath.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}.Mul(quantum).Add(center)
}

// BoundPolygon is a collision triangle, or a quad when TriIndex4 is set.
type BoundPolygon struct {
	Normal        rmath.Vec3
	MatAndTriArea uint32
	TriIndex      [4]int16
	EdgeIndex     [4]int16
}

const boundPolygonSize = 32

func readBoundPolygon(r *Reader) BoundPolygon {
	p := BoundPolygon{Normal: r.ReadVector3(), MatAndTriArea: r.ReadUint32()}
	for i := range p.TriIndex {
		p.TriIndex[i] = r.ReadInt16()
	}
	for i := range p.EdgeIndex {
		p.EdgeIndex[i] = r.ReadInt16()
	}
	return p
}

// MaterialIndex indexes the owning geometry's materials.
func (p BoundPolygon) MaterialIndex() uint8 { return uint8(p.MatAndTriArea) }

// TriArea is stored in the upper 24 bits as a truncated float.
func (p BoundPolygon) TriArea() float32 {
	return math.Float32frombits(p.MatAndTriArea & 0xFFFFFF00)
}

// IsQuad reports whether the polygon has a fourth corner.
func (p BoundPolygon) IsQuad() bool { return p.TriIndex[3] != 0 }

// BoundBox is a box with its corners and faces stored inline.
type BoundBox struct {
	BoundsBase
	Unknown5         uint32
	VertexColoursPtr uint32
	Unknown6         uint32
	PolygonsPtr      uint32
	Quantum          rmath.Vec4
	CenterGeom       rmath.Vec4
	VerticesPtr      uint32
	Unknown7         [5]uint32
	VerticesCount    uint32
	PolygonsCount    uint32
	BoxSize          rmath.Vec4
	Corners          []rmath.Vec4
	Polygons         []BoundPolygon
	Material         BoundMaterial
	Unknown12        [7]uint32

	Vertices []Vector3S
}

func (b *BoundBox) Read(r *Reader) {
	b.BoundsBase.Read(r)
	b.Unknown5 = r.ReadUint32()
	b.VertexColoursPtr = r.ReadUint32()
	b.Unknown6 = r.ReadUint32()
	b.PolygonsPtr = r.ReadUint32()
	b.Quantum = r.ReadVector4()
	b.CenterGeom = r.ReadVector4()
	b.VerticesPtr = r.ReadUint32()
	for i := range b.Unknown7 {
		b.Unknown7[i] = r.ReadUint32()
	}
	b.VerticesCount = r.ReadUint32()
	b.PolygonsCount = r.ReadUint32()
	b.BoxSize = r.ReadVector4()
	b.Corners = readSlice(r, int(b.VerticesCount), 16, (*Reader).ReadVector4)
	b.Polygons = readSlice(r, int(b.PolygonsCount), boundPolygonSize, readBoundPolygon)
	b.Material = readBoundMaterial(r)
	for i := range b.Unknown12 {
		b.Unknown12[i] = r.ReadUint32()
	}
	b.Vertices = ReadArray(r, b.VerticesPtr, int(b.VerticesCount), 6, readVector3S)
}

// Size returns the extent of the box.
func (b *BoundBox) Size() rmath.Vec3 { return b.Box().Size() }

// BoundGeometry is a quantized triangle mesh.
type BoundGeometry struct {
	BoundsBase
	Unknown5         uint32
	VertexColoursPtr uint32
	Unknown6         uint32
	PolygonsPtr      uint32
	Quantum          rmath.Vec4
	CenterGeom       rmath.Vec4
	VerticesPtr      uint32
	Unknown7         [5]uint32
	VerticesCount    uint32
	PolygonsCount    uint32
	MaterialsPtr     uint32
	Unknown12        uint32
	MaterialsCount   uint8
	Unknown13        uint8
	Unknown14        uint16
	Unknown15        uint32

	VertexColours []uint32
	Vertices      []Vector3S
	Polygons      []BoundPolygon
	Materials     []BoundMaterial
}

func (b *BoundGeometry) Read(r *Reader) {
	b.BoundsBase.Read(r)
	b.Unknown5 = r.ReadUint32()
	b.VertexColoursPtr = r.ReadUint32()
	b.Unknown6 = r.ReadUint32()
	b.PolygonsPtr = r.ReadUint32()
	b.Quantum = r.ReadVector4()
	b.CenterGeom = r.ReadVector4()
	b.VerticesPtr = r.ReadUint32()
	for i := range b.Unknown7 {
		b.Unknown7[i] = r.ReadUint32()
	}
	b.VerticesCount = r.ReadUint32()
	b.PolygonsCount = r.ReadUint32()
	b.MaterialsPtr = r.ReadUint32()
	b.Unknown12 = r.ReadUint32()
	b.MaterialsCount = r.ReadUint8()
	b.Unknown13 = r.ReadUint8()
	b.Unknown14 = r.ReadUint16()
	b.Unknown15 = r.ReadUint32()

	n := int(b.VerticesCount)
	b.VertexColours = ReadArray(r, b.VertexColoursPtr, n, 4, (*Reader).ReadUint32)
	b.Vertices = ReadArray(r, b.VerticesPtr, n, 6, readVector3S)
	b.Polygons = ReadArray(r, b.PolygonsPtr, int(b.PolygonsCount), boundPolygonSize, readBoundPolygon)
	b.Materials = ReadArray(r, b.MaterialsPtr, int(b.MaterialsCount), 4, readBoundMaterial)
}

// Positions returns the dequantized vertices.
func (b *BoundGeometry) Positions() []rmath.Vec3 {
	q, c := b.Quantum.XYZ(), b.CenterGeom.XYZ()
	out := make([]rmath.Vec3, len(b.Vertices))
	for i, v := range b.Vertices {
		out[i] = v.Dequantize(q, c)
	}
	return out
}

// Triangles returns the vertex indices of every triangle, splitting quads
// into two. Polygons referencing missing vertices are skipped.
func (b *BoundGeometry) Triangles() [][3]int {
	n := len(b.Vertices)
	valid := func(i int16) bool { return i >= 0 && int(i) < n }
	var out [][3]int
	for _, p := range b.Polygons {
		t := p.TriIndex
		if !valid(t[0]) || !valid(t[1]) || !valid(t[2]) {
			continue
		}
		out = append(out, [3]int{int(t[0]), int(t[1]), int(t[2])})
		if p.IsQuad() && valid(t[3]) {
			out = append(out, [3]int{int(t[0]), int(t[2]), int(t[3])})
		}
	}
	return out
}

// FaceNormals returns the unit normal of every triangle from Triangles,
// wound counter-clockwise.
func (b *BoundGeometry) FaceNormals() []rmath.Vec3 {
	pos := b.Positions()
	tris := b.Triangles()
	out := make([]rmath.Vec3, len(tris))
	for i, t := range tris {
		a := pos[t[0]]
		out[i] = pos[t[1]].Sub(a).Cross(pos[t[2]].Sub(a)).Normalize()
	}
	return out
}

// PolygonMaterial returns the material of polygon i.
func (b *BoundGeometry) PolygonMaterial(i int) (BoundMaterial, bool) {
	if i < 0 || i >= len(b.Polygons) {
		return BoundMaterial{}, false
	}
	m := int(b.Polygons[i].MaterialIndex())
	if m >= len(b.Materials) {
		return BoundMaterial{}, false
	}
	return b.Materials[m], true
}

// BoundGeometryBVH is a mesh with a bounding volume hierarchy.
type BoundGeometryBVH struct {
	BoundGeometry
	BVH     Ptr[BVHRoot]
	Unknown [3]uint32
}

func (b *BoundGeometryBVH) Read(r *Reader) {
	b.BoundGeometry.Read(r)
	b.BVH = ReadPtr[BVHRoot](r)
	for i := range b.Unknown {
		b.Unknown[i] = r.ReadUint32()
	}
}

// BVHNode is a quantized node of the hierarchy.
type BVHNode struct {
	Min, Max  [3]int16
	ItemID    int16
	ItemCount uint8
	Padding   uint8
}

func readBVHNode(r *Reader) BVHNode {
	var n BVHNode
	for i := range n.Min {
		n.Min[i] = r.ReadInt16()
	}
	for i := range n.Max {
		n.Max[i] = r.ReadInt16()
	}
	n.ItemID = r.ReadInt16()
	n.ItemCount = r.ReadUint8()
	n.Padding = r.ReadUint8()
	return n
}

// BVHTree spans the node range [NodeIndex1, NodeIndex2).
type BVHTree struct {
	Min, Max   [3]int16
	NodeIndex1 int16
	NodeIndex2 int16
}

func readBVHTree(r *Reader) BVHTree {
	var t BVHTree
	for i := range t.Min {
		t.Min[i] = r.ReadInt16()
	}
	for i := range t.Max {
		t.Max[i] = r.ReadInt16()
	}
	t.NodeIndex1 = r.ReadInt16()
	t.NodeIndex2 = r.ReadInt16()
	return t
}

// BVHRoot holds the nodes and trees of a hierarchy.
type BVHRoot struct {
	Nodes          Arr[BVHNode]
	Depth          uint32
	BoundingBoxMin rmath.Vec4
	BoundingBoxMax rmath.Vec4
	QuantumInverse rmath.Vec4
	Quantum        rmath.Vec4
	Trees          Arr[BVHTree]
}

func (b *BVHRoot) Read(r *Reader) {
	b.Nodes = ReadArr(r, 16, readBVHNode)
	b.Depth = r.ReadUint32()
	b.BoundingBoxMin = r.ReadVector4()
	b.BoundingBoxMax = r.ReadVector4()
	b.QuantumInverse = r.ReadVector4()
	b.Quantum = r.ReadVector4()
	b.Trees = ReadArr(r, 16, readBVHTree)
}

// BoundComposite groups child bounds with per-child transforms.
type BoundComposite struct {
	BoundsBase
	ChildrenPtr            uint32
	ChildrenTransforms1Ptr uint32
	ChildrenTransforms2Ptr uint32
	ChildrenBoxesPtr       uint32
	ChildrenCount1         uint16
	ChildrenCount2         uint16
	Unknown5               uint32
	Unknown6               uint32
	Unknown7               uint32

	Children            []Bounds
	ChildrenTransforms1 []rmath.Mat4
	ChildrenTransforms2 []rmath.Mat4
	ChildrenBoxes       []rmath.BoundingBox4
}

func (b *BoundComposite) Read(r *Reader) {
	b.BoundsBase.Read(r)
	b.ChildrenPtr = r.ReadUint32()
	b.ChildrenTransforms1Ptr = r.ReadUint32()
	b.ChildrenTransforms2Ptr = r.ReadUint32()
	b.ChildrenBoxesPtr = r.ReadUint32()
	b.ChildrenCount1 = r.ReadUint16()
	b.ChildrenCount2 = r.ReadUint16()
	b.Unknown5 = r.ReadUint32()
	b.Unknown6 = r.ReadUint32()
	b.Unknown7 = r.ReadUint32()

	n := int(b.ChildrenCount1)
	ptrs := ReadArray(r, b.ChildrenPtr, n, 4, (*Reader).ReadUint32)
	b.ChildrenTransforms1 = ReadArray(r, b.ChildrenTransforms1Ptr, n, 64, (*Reader).ReadMatrix)
	b.ChildrenTransforms2 = ReadArray(r, b.ChildrenTransforms2Ptr, n, 64, (*Reader).ReadMatrix)
	b.ChildrenBoxes = ReadArray(r, b.ChildrenBoxesPtr, n, 32, (*Reader).ReadBoundingBox4)
	if ptrs == nil {
		return
	}
	b.Children = make([]Bounds, len(ptrs))
	for i, p := range ptrs {
		b.Children[i] = ReadBounds(r, p)
	}
}

// ChildTransform returns the placement of child i, or the identity.
func (b *BoundComposite) ChildTransform(i int) rmath.Mat4 {
	if i < 0 || i >= len(b.ChildrenTransforms1) {
		return rmath.Identity()
	}
	return b.ChildrenTransforms1[i]
}

// ChildrenBox is the union of every child's box placed by its transform.
// Missing children are skipped.
func (b *BoundComposite) ChildrenBox() rmath.BoundingBox {
	box := rmath.EmptyBox()
	for i, c := range b.Children {
		if c == nil {
			continue
		}
		box = box.Union(c.Base().Box().Transform(b.ChildTransform(i)))
	}
	return box
}

// BoundsFile is the root of .xbn files.
type BoundsFile struct {
	VFT      uint32
	BlockMap Ptr[BlockMap]
	Bounds   Bounds
}

func (f *BoundsFile) Read(r *Reader) {
	f.VFT = r.ReadUint32()
	f.BlockMap = ReadPtr[BlockMap](r)
	f.Bounds = ReadBounds(r, r.ReadUint32())
}

// BoundsDictionary is the root of .xbd files.
type BoundsDictionary struct {
	VFT              uint32
	BlockMap         Ptr[BlockMap]
	ParentDictionary uint32
	UsageCount       uint32
	Hashes           Arr[jenk.Hash]
	Bounds           PtrArr[Bounds]
}

func (d *BoundsDictionary) Read(r *Reader) {
	d.VFT = r.ReadUint32()
	d.BlockMap = ReadPtr[BlockMap](r)
	d.ParentDictionary = r.ReadUint32()
	d.UsageCount = r.ReadUint32()
	d.Hashes = ReadArr(r, 4, readHash)
	d.Bounds = readPtrArr(r, func(pos uint32) Bounds { return ReadBounds(r, pos) })
}

// Lookup returns the bounds stored under hash h.
func (d *BoundsDictionary) Lookup(h jenk.Hash) Bounds {
	for i, k := range d.Hashes.Items {
		if k == h && i < len(d.Bounds.Items) {
			return d.Bounds.Items[i]
		}
	}
	return nil
}
