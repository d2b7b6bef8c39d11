package rsc5

import (
	"github.com/Faultbox/rpfkit/pkg/jenk"
	rmath "github.com/Faultbox/rpfkit/pkg/math"
)

// ShaderGroup holds the shaders a drawable's geometries index into.
type ShaderGroup struct {
	VFT      uint32
	BlockMap uint32
	Shaders  PtrArr[*Shader]
}

func (g *ShaderGroup) Read(r *Reader) {
	g.VFT = r.ReadUint32()
	g.BlockMap = r.ReadUint32()
	g.Shaders = ReadPtrArr[Shader](r)

	for _, s := range g.Shaders.Items {
		if s == nil {
			continue
		}
		for _, p := range s.Params {
			r.Context().AddTexture(p.Texture)
		}
	}
}

// Shader returns shader i, or nil when out of range.
func (g *ShaderGroup) Shader(i int) *Shader {
	if g == nil || i < 0 || i >= len(g.Shaders.Items) {
		return nil
	}
	return g.Shaders.Items[i]
}

// Textures returns the textures bound by every shader, without duplicates.
func (g *ShaderGroup) Textures() []*Texture {
	var out []*Texture
	seen := make(map[*Texture]bool)
	for _, s := range g.Shaders.Items {
		if s == nil {
			continue
		}
		for _, p := range s.Params {
			if p.Texture != nil && !seen[p.Texture] {
				seen[p.Texture] = true
				out = append(out, p.Texture)
			}
		}
	}
	return out
}

// Parameter types. Values above ParamVector are the length of a vector
// array.
const (
	ParamTexture uint8 = 0
	ParamVector  uint8 = 1
)

// ShaderParameter is one effect input.
type ShaderParameter struct {
	Hash    jenk.Hash
	Type    uint8
	Vector  rmath.Vec4
	Array   []rmath.Vec4
	Texture *Texture
}

// Shader is an effect instance with its parameters.
type Shader struct {
	VFT            uint32
	BlockMap       uint32
	Version        uint8
	DrawBucket     uint8
	UsageCount     uint8
	Unknown1       uint8
	Unknown2       uint16
	Index          uint16
	ParamsDataPtr  uint32
	Unknown3       uint32
	ParamsCount    uint16
	EffectSize     uint16
	ParamsTypesPtr uint32
	Hash           uint32
	ParamsNamesPtr uint32
	Unknown4       uint32
	Unknown5       uint32
	Name           Str
	Unknown6       uint32
	FileName       Str
	Unknown7       uint32

	Params []ShaderParameter
}

func (s *Shader) Read(r *Reader) {
	s.VFT = r.ReadUint32()
	s.BlockMap = r.ReadUint32()
	s.Version = r.ReadUint8()
	s.DrawBucket = r.ReadUint8()
	s.UsageCount = r.ReadUint8()
	s.Unknown1 = r.ReadUint8()
	s.Unknown2 = r.ReadUint16()
	s.Index = r.ReadUint16()
	s.ParamsDataPtr = r.ReadUint32()
	s.Unknown3 = r.ReadUint32()
	s.ParamsCount = r.ReadUint16()
	s.EffectSize = r.ReadUint16()
	s.ParamsTypesPtr = r.ReadUint32()
	s.Hash = r.ReadUint32()
	s.ParamsNamesPtr = r.ReadUint32()
	s.Unknown4 = r.ReadUint32()
	s.Unknown5 = r.ReadUint32()
	s.Name = ReadStr(r)
	s.Unknown6 = r.ReadUint32()
	s.FileName = ReadStr(r)
	s.Unknown7 = r.ReadUint32()

	n := int(s.ParamsCount)
	ptrs := ReadArray(r, s.ParamsDataPtr, n, 4, (*Reader).ReadUint32)
	types := ReadArray(r, s.ParamsTypesPtr, n, 1, (*Reader).ReadUint8)
	hashes := ReadArray(r, s.ParamsNamesPtr, n, 4, readHash)
	if len(ptrs) != n || len(types) != n || len(hashes) != n {
		return
	}

	s.Params = make([]ShaderParameter, n)
	for i := range s.Params {
		p := ShaderParameter{Hash: hashes[i], Type: types[i]}
		switch p.Type {
		case ParamTexture:
			p.Texture = ReadBlock[Texture](r, ptrs[i])
		case ParamVector:
			if v := ReadArray(r, ptrs[i], 1, 16, (*Reader).ReadRawVector4); len(v) == 1 {
				p.Vector = v[0]
			}
		default:
			p.Array = ReadArray(r, ptrs[i], int(p.Type), 16, (*Reader).ReadRawVector4)
		}
		s.Params[i] = p
	}
}

// Param returns the parameter with hash h.
func (s *Shader) Param(h jenk.Hash) (ShaderParameter, bool) {
	for _, p := range s.Params {
		if p.Hash == h {
			return p, true
		}
	}
	return ShaderParameter{}, false
}

// terrainShader is the hash of the city terrain blend shader name.
const terrainShader jenk.Hash = 0xE4CB95DC

// IsTerrain reports whether the shader blends several terrain layers.
func (s *Shader) IsTerrain() bool {
	return jenk.Gen(s.Name.Value) == terrainShader
}

// Bucket returns the render bucket for the shader's draw bucket.
func (s *Shader) Bucket() RenderBucket {
	switch s.DrawBucket {
	case 1, 3, 6, 7: // alpha, cutout, water, glass
		return BucketAlpha
	case 2:
		return BucketDecal
	default:
		return BucketSolid
	}
}

// RenderBucket is the pass a geometry is drawn in.
type RenderBucket uint8

const (
	BucketSolid RenderBucket = iota
	BucketAlpha
	BucketDecal
)

func (b RenderBucket) String() string {
	switch b {
	case BucketAlpha:
		return "alpha"
	case BucketDecal:
		return "decal"
	default:
		return "solid"
	}
}

// Texture slots of the default material.
const (
	SlotDiffuse = iota
	SlotBump
	SlotSpecular
	defaultSlots
)

// Texture slots of the terrain material: three albedo layers, then three
// normal layers starting at SlotTerrainNormal.
const (
	SlotTerrainNormal = 4
	terrainSlots      = 7
)

var defaultSamplers = map[jenk.Hash]int{
	0xF1FE2B71: SlotDiffuse, // diffusesampler
	0x50022388: SlotDiffuse, // platebgsampler
	0x1CF5B657: SlotDiffuse, // texturesamp
	0x605FCC60: SlotDiffuse, // distancemapsampler
	0x46B7C64F: SlotBump,    // bumpsampler
	0x65DF0BCE: SlotBump,    // platebgbumpsampler
	0x8AC11CB0: SlotBump,    // normalsampler
	0x608799C6: SlotSpecular,
}

var terrainSamplers = map[jenk.Hash]int{
	0xD52B11DF: 0, // diffusesamplera
	0x2420AFD1: 1,
	0x31934AB6: 2,
	0x3FFF9563: SlotTerrainNormal, // normalsamplera
	0x54CDBEFF: SlotTerrainNormal + 1,
	0xA3A2DCA8: SlotTerrainNormal + 2,
}

const bumpinessParam jenk.Hash = 0xF6712B81

// Material is what a geometry needs from its shader to be drawn.
type Material struct {
	Shader      *Shader
	Bucket      RenderBucket
	Terrain     bool
	DoubleSided bool
	BumpScale   float32
	Textures    []*Texture // indexed by Slot* constants
}

// NewMaterial classifies the shader's texture parameters into slots.
func NewMaterial(s *Shader) Material {
	m := Material{Shader: s, BumpScale: 1, Textures: make([]*Texture, defaultSlots)}
	if s == nil {
		return m
	}
	m.Bucket = s.Bucket()
	m.DoubleSided = s.DrawBucket == 3

	samplers := defaultSamplers
	if s.IsTerrain() {
		samplers = terrainSamplers
		m.Terrain = true
		m.BumpScale = 0
		m.Textures = make([]*Texture, terrainSlots)
	}
	for _, p := range s.Params {
		if p.Type != ParamTexture {
			if m.Terrain && p.Hash == bumpinessParam {
				m.BumpScale = p.Vector.X
			}
			continue
		}
		if slot, ok := samplers[p.Hash]; ok && p.Texture != nil {
			m.Textures[slot] = p.Texture
		}
	}
	return m
}

// Texture returns the texture in slot, or nil.
func (m Material) Texture(slot int) *Texture {
	if slot < 0 || slot >= len(m.Textures) {
		return nil
	}
	return m.Textures[slot]
}
