package rsc5

import (
	"encoding/binary"
	"math"
)

// payload builds a synthetic resource. The first virtual allocation is the
// root block.
type payload struct {
	virt []byte
	phys []byte
}

func (p *payload) alloc(n int) uint32 {
	off := len(p.virt)
	p.virt = append(p.virt, make([]byte, (n+15)&^15)...)
	return VirtualBase + uint32(off)
}

func (p *payload) allocPhys(n int) uint32 {
	off := len(p.phys)
	p.phys = append(p.phys, make([]byte, (n+15)&^15)...)
	return PhysicalBase + uint32(off)
}

func (p *payload) mem(pos uint32) []byte {
	if IsVirtual(pos) {
		return p.virt[pos&0x0FFFFFFF:]
	}
	return p.phys[pos&0x1FFFFFFF:]
}

func (p *payload) u32(pos uint32, vals ...uint32) {
	b := p.mem(pos)
	for i, v := range vals {
		binary.BigEndian.PutUint32(b[i*4:], v)
	}
}

func (p *payload) u16(pos uint32, vals ...uint16) {
	b := p.mem(pos)
	for i, v := range vals {
		binary.BigEndian.PutUint16(b[i*2:], v)
	}
}

func (p *payload) u8(pos uint32, vals ...uint8) {
	copy(p.mem(pos), vals)
}

func (p *payload) f32(pos uint32, vals ...float32) {
	b := p.mem(pos)
	for i, v := range vals {
		binary.BigEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
}

func (p *payload) str(s string) uint32 {
	pos := p.alloc(len(s) + 1)
	copy(p.mem(pos), s)
	return pos
}

// arr writes the pointer, count and capacity of an array header.
func (p *payload) arr(pos, items uint32, count int) {
	p.u32(pos, items)
	p.u16(pos+4, uint16(count), uint16(count))
}

// ptrs allocates a run of pointers.
func (p *payload) ptrs(vals ...uint32) uint32 {
	pos := p.alloc(len(vals) * 4)
	p.u32(pos, vals...)
	return pos
}

func (p *payload) data() ([]byte, int, int) {
	out := append(append([]byte{}, p.virt...), p.phys...)
	return out, len(p.virt), len(p.phys)
}

func (p *payload) reader() *Reader {
	data, v, ph := p.data()
	return NewReader(data, v, ph)
}

// Block sizes of the layouts written below.
const (
	textureSize      = 64
	shaderSize       = 64
	shaderGroupSize  = 16
	boneSize         = 224
	geometrySize     = 64
	modelSize        = 28
	drawableBaseSize = 116
	boundsBaseSize   = 128
)

// texture writes a texture without pixel data.
func (p *payload) texture(name string) uint32 {
	pos := p.alloc(textureSize)
	p.u32(pos+24, p.str(name))
	return pos
}

// dxt1Texture writes a 4x4 texture whose padded data is filled with one
// solid block in the physical arena.
func (p *payload) dxt1Texture(name string, block [8]byte) uint32 {
	pos := p.alloc(textureSize)
	desc := p.alloc(0x24)
	data := p.allocPhys(8192)
	for i := 0; i < 8192; i += 8 {
		copy(p.mem(data + uint32(i)), block[:])
	}
	p.u32(desc+0x20, PhysicalBase|82)

	p.u32(pos+24, p.str(name), desc)
	p.u16(pos+32, 4, 4, 8)
	p.u8(pos+38, 0, 1)
	return pos
}

type shaderParam struct {
	hash  uint32
	typ   uint8
	value uint32 // texture or vector position
}

func (p *payload) shader(name string, bucket uint8, params ...shaderParam) uint32 {
	pos := p.alloc(shaderSize)
	n := len(params)
	data, types, names := p.alloc(n*4), p.alloc(n), p.alloc(n*4)
	for i, prm := range params {
		p.u32(data+uint32(i*4), prm.value)
		p.u8(types+uint32(i), prm.typ)
		p.u32(names+uint32(i*4), prm.hash)
	}
	p.u8(pos+8, 2, bucket)
	p.u32(pos+16, data)
	p.u16(pos+24, uint16(n))
	p.u32(pos+28, types)
	p.u32(pos+36, names)
	p.u32(pos+48, p.str(name))
	return pos
}

func (p *payload) shaderGroup(shaders ...uint32) uint32 {
	pos := p.alloc(shaderGroupSize)
	p.arr(pos+8, p.ptrs(shaders...), len(shaders))
	return pos
}

func (p *payload) vector(vals ...float32) uint32 {
	pos := p.alloc(16)
	p.f32(pos, vals...)
	return pos
}

type boneLinks struct {
	sibling, child, parent uint32
}

func (p *payload) bone(pos uint32, name string, l boneLinks) {
	p.u32(pos, p.str(name))
	p.u32(pos+8, l.sibling, l.child, l.parent)
}
