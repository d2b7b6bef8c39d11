package rsc5

import (
	"encoding/binary"
	"fmt"
	"math"

	rmath "github.com/Faultbox/rpfkit/pkg/math"
	"github.com/Faultbox/rpfkit/pkg/xenon"
)

// VertexDeclaration describes the channels of a vertex buffer.
type VertexDeclaration struct {
	FVF          uint32 // channel mask
	FVFSize      uint8
	Flags        uint8
	DynamicOrder uint8
	ChannelCount uint8
	Types        uint64 // 4-bit component type per channel

	Layout xenon.VertexLayout
}

func (d *VertexDeclaration) Read(r *Reader) {
	d.FVF = r.ReadUint32()
	d.FVFSize = r.ReadUint8()
	d.Flags = r.ReadUint8()
	d.DynamicOrder = r.ReadUint8()
	d.ChannelCount = r.ReadUint8()
	d.Types = r.ReadUint64()
	d.Layout = xenon.NewVertexLayout(d.FVF, d.Types)
}

// VertexBuffer holds raw big-endian vertex data.
type VertexBuffer struct {
	VFT         uint32
	VertexCount uint16
	Flags       uint16
	Data1       RawArr[byte]
	Stride      uint32
	Layout      Ptr[VertexDeclaration]
	Unknown1    uint32
	Data2       RawArr[byte]
	Unknown2    uint32
}

func (b *VertexBuffer) Read(r *Reader) {
	b.VFT = r.ReadUint32()
	b.VertexCount = r.ReadUint16()
	b.Flags = r.ReadUint16()
	b.Data1 = ReadRawArrPtr[byte](r)
	b.Stride = r.ReadUint32()
	b.Layout = ReadPtr[VertexDeclaration](r)
	b.Unknown1 = r.ReadUint32()
	b.Data2 = ReadRawArrPtr[byte](r)
	b.Unknown2 = r.ReadUint32()

	n := int(b.VertexCount) * int(b.Stride)
	b.Data1.ReadItems(r, n, 1, (*Reader).ReadUint8)
	b.Data2.ReadItems(r, n, 1, (*Reader).ReadUint8)
}

// Data returns the first populated data array.
func (b *VertexBuffer) Data() []byte {
	if b.Data1.Items != nil {
		return b.Data1.Items
	}
	return b.Data2.Items
}

// IndexBuffer holds 16-bit triangle list indices.
type IndexBuffer struct {
	VFT          uint32
	IndicesCount uint32
	Indices      RawArr[uint16]
	Unknown      [9]uint32
}

func (b *IndexBuffer) Read(r *Reader) {
	b.VFT = r.ReadUint32()
	b.IndicesCount = r.ReadUint32()
	b.Indices = ReadRawArrPtr[uint16](r)
	for i := range b.Unknown {
		b.Unknown[i] = r.ReadUint32()
	}
	b.Indices.ReadItems(r, int(b.IndicesCount), 2, (*Reader).ReadUint16)
}

// Geometry is one mesh of a model. Vertices are converted to little-endian
// (X,Y,Z) order in place; Layout still describes them.
type Geometry struct {
	VFT            uint32
	Unknown8       uint32
	Unknown10      uint32
	VertexBuffers  [4]Ptr[VertexBuffer]
	IndexBuffers   [4]Ptr[IndexBuffer]
	IndicesCount   uint32
	TrianglesCount uint32
	VertexCount    uint16
	PrimitiveType  uint16
	BoneIDs        RawArr[uint16]
	VertexStride   uint16
	BoneIDsCount   uint16

	Layout   xenon.VertexLayout
	Vertices []byte
	Indices  []uint16

	// Set by the owning model.
	ShaderID  uint16
	AABB      rmath.BoundingBox4
	BoneIndex int

	// Set when the drawable assigns shaders.
	Material Material
}

func (g *Geometry) Read(r *Reader) {
	g.VFT = r.ReadUint32()
	g.Unknown8 = r.ReadUint32()
	g.Unknown10 = r.ReadUint32()
	for i := range g.VertexBuffers {
		g.VertexBuffers[i] = ReadPtr[VertexBuffer](r)
	}
	for i := range g.IndexBuffers {
		g.IndexBuffers[i] = ReadPtr[IndexBuffer](r)
	}
	g.IndicesCount = r.ReadUint32()
	g.TrianglesCount = r.ReadUint32()
	g.VertexCount = r.ReadUint16()
	g.PrimitiveType = r.ReadUint16()
	g.BoneIDs = ReadRawArrPtr[uint16](r)
	g.VertexStride = r.ReadUint16()
	g.BoneIDsCount = r.ReadUint16()
	g.BoneIDs.ReadItems(r, int(g.BoneIDsCount), 2, (*Reader).ReadUint16)

	if ib := g.IndexBuffers[0].Item; ib != nil {
		g.Indices = ib.Indices.Items
	}
	vb := g.VertexBuffers[0].Item
	if vb == nil {
		return
	}
	if g.VertexCount == 0 {
		g.VertexCount = vb.VertexCount
	}
	if vb.Layout.Item != nil {
		g.Layout = vb.Layout.Item.Layout
	}
	raw := vb.Data()
	if raw == nil {
		return
	}
	stride := int(g.VertexStride)
	if stride == 0 {
		stride = int(vb.Stride)
	}
	verts, err := xenon.PrepareVertices(raw, stride, g.Layout)
	if err != nil {
		r.Context().Warn(fmt.Errorf("geometry vertices: %w", err))
		return
	}
	g.Vertices = verts
}

// Stride returns the byte size of one vertex.
func (g *Geometry) Stride() int {
	if g.VertexStride != 0 {
		return int(g.VertexStride)
	}
	if vb := g.VertexBuffers[0].Item; vb != nil {
		return int(vb.Stride)
	}
	return 0
}

// Positions returns the position channel of every vertex.
func (g *Geometry) Positions() []rmath.Vec3 {
	e, ok := g.Layout.Element(xenon.Position)
	stride := g.Stride()
	if !ok || e.Type != xenon.Float3 || stride == 0 {
		return nil
	}
	out := make([]rmath.Vec3, 0, len(g.Vertices)/stride)
	for base := 0; base+stride <= len(g.Vertices); base += stride {
		out = append(out, readVec3LE(g.Vertices[base+e.Offset:]))
	}
	return out
}

// Bounds returns the AABB set by the model, or the box around the vertex
// positions when the model stored none.
func (g *Geometry) Bounds() rmath.BoundingBox {
	b := g.AABB.Box()
	if !b.IsEmpty() && b.Min != b.Max {
		return b
	}
	box := rmath.EmptyBox()
	for _, p := range g.Positions() {
		box = box.Expand(p)
	}
	return box
}

func readVec3LE(b []byte) rmath.Vec3 {
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])) }
	return rmath.Vec3{X: f(0), Y: f(1), Z: f(2)}
}
