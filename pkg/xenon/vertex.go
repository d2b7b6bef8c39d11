package xenon

import (
	"encoding/binary"
	"fmt"
	"math"

	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// ComponentType is the storage format of one vertex channel.
type ComponentType uint8

// Vertex component types as stored in a declaration's 4-bit type fields.
const (
	Nothing ComponentType = iota
	Half2
	Float
	Half4
	FloatUnk
	Float2
	Float3
	Float4
	UByte4
	Colour
	Dec3N
	ShortUNorm
	Short2UNorm
	Byte2UNorm
	UShort2N
	Short4
)

var componentSizes = [16]int{2, 4, 6, 8, 4, 8, 12, 16, 4, 4, 4, 2, 4, 2, 4, 8}

// Size returns the channel size in bytes.
func (c ComponentType) Size() int {
	return componentSizes[c&15]
}

// String returns the component type name.
func (c ComponentType) String() string {
	names := [...]string{
		"Nothing", "Half2", "Float", "Half4", "FloatUnk", "Float2", "Float3", "Float4",
		"UByte4", "Colour", "Dec3N", "ShortUNorm", "Short2UNorm", "Byte2UNorm", "UShort2N", "Short4",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("Unknown(%d)", c)
}

// Semantic is the meaning of a vertex channel, indexed by its FVF bit.
type Semantic uint8

// Vertex semantics.
const (
	Position Semantic = iota
	BlendWeights
	BlendIndices
	Normal
	Colour0
	Colour1
	TexCoord0
	TexCoord1
	TexCoord2
	TexCoord3
	TexCoord4
	TexCoord5
	TexCoord6
	TexCoord7
	Tangent0
	Tangent1
	Binormal0
	Binormal1
)

// VertexElement is one channel of a vertex layout.
type VertexElement struct {
	Semantic Semantic
	Type     ComponentType
	Offset   int
}

// VertexLayout describes the channels of one vertex.
type VertexLayout struct {
	Elements []VertexElement
	Size     int // sum of channel sizes
}

// NewVertexLayout builds a layout from a declaration's FVF channel mask and
// packed 4-bit channel types. Only the first 16 channels carry a type.
func NewVertexLayout(fvf uint32, types uint64) VertexLayout {
	var layout VertexLayout
	for i := 0; i < 16; i++ {
		if (fvf>>i)&1 == 0 {
			continue
		}
		ct := ComponentType((types >> (4 * i)) & 0xF)
		layout.Elements = append(layout.Elements, VertexElement{
			Semantic: Semantic(i),
			Type:     ct,
			Offset:   layout.Size,
		})
		layout.Size += ct.Size()
	}
	return layout
}

// Element returns the element with semantic s.
func (l VertexLayout) Element(s Semantic) (VertexElement, bool) {
	for _, e := range l.Elements {
		if e.Semantic == s {
			return e, true
		}
	}
	return VertexElement{}, false
}

const ushort2NScale = float32(3.05185094e-5)

// PrepareVertices copies big-endian vertex data into a new buffer, reverses
// every 32-bit lane and then applies TransformVertices.
func PrepareVertices(raw []byte, stride int, layout VertexLayout) ([]byte, error) {
	buf := rmath.SwapWords(raw)
	if err := TransformVertices(buf, stride, layout); err != nil {
		return nil, err
	}
	return buf, nil
}

// TransformVertices converts lane-swapped vertex data in place so every
// channel is little-endian and in (X,Y,Z) axis order.
func TransformVertices(buf []byte, stride int, layout VertexLayout) error {
	if stride <= 0 {
		return fmt.Errorf("invalid vertex stride %d", stride)
	}
	for _, e := range layout.Elements {
		if e.Offset+e.Type.Size() > stride {
			return fmt.Errorf("element %d at offset %d exceeds stride %d", e.Semantic, e.Offset, stride)
		}
	}

	for base := 0; base+stride <= len(buf); base += stride {
		for _, e := range layout.Elements {
			transformElement(buf[base+e.Offset:], e.Type)
		}
	}
	return nil
}

func transformElement(b []byte, t ComponentType) {
	le := binary.LittleEndian
	switch t {
	case Float3:
		x, y, z := le.Uint32(b[0:]), le.Uint32(b[4:]), le.Uint32(b[8:])
		le.PutUint32(b[0:], z)
		le.PutUint32(b[4:], x)
		le.PutUint32(b[8:], y)
	case Float4:
		x, y, z, w := le.Uint32(b[0:]), le.Uint32(b[4:]), le.Uint32(b[8:]), le.Uint32(b[12:])
		if f := math.Float32frombits(w); f != f {
			w = 0
		}
		le.PutUint32(b[0:], z)
		le.PutUint32(b[4:], x)
		le.PutUint32(b[8:], y)
		le.PutUint32(b[12:], w)
	case Dec3N:
		le.PutUint32(b, PermuteDec3N(le.Uint32(b)))
	case Half2:
		x, y := le.Uint16(b[0:]), le.Uint16(b[2:])
		le.PutUint16(b[0:], y)
		le.PutUint16(b[2:], x)
	case UShort2N:
		for i := 0; i < 2; i++ {
			v := float32(le.Uint16(b[i*2:])) * ushort2NScale
			le.PutUint16(b[i*2:], uint16(v/ushort2NScale))
		}
	}
}

// PermuteDec3N moves the packed 10:10:10:2 normal fields from source
// (Z,X,Y) order to (X,Y,Z) order.
func PermuteDec3N(v uint32) uint32 {
	x := v & 0x3FF
	y := (v >> 10) & 0x3FF
	z := (v >> 20) & 0x3FF
	w := v & 0xC0000000
	return z | x<<10 | y<<20 | w
}

// InverseDec3N reverses PermuteDec3N.
func InverseDec3N(v uint32) uint32 {
	x := (v >> 10) & 0x3FF
	y := (v >> 20) & 0x3FF
	z := v & 0x3FF
	w := v & 0xC0000000
	return x | y<<10 | z<<20 | w
}
