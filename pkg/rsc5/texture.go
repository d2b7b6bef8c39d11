package rsc5

import (
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/rpfkit/pkg/jenk"
	"github.com/Faultbox/rpfkit/pkg/xenon"
)

// TextureType is the dimensionality of a texture.
type TextureType uint8

const (
	TextureNormal TextureType = 0
	TextureCube   TextureType = 1
	TextureVolume TextureType = 3
)

// d3dFormatOffset is where the GPU descriptor keeps its format word.
const d3dFormatOffset = 0x20

// Texture is a named texture with its pixel data in linear block order.
type Texture struct {
	VFT      uint32
	Unknown  [5]uint32
	NameRef  Str
	D3D      Ptr[BlockMap] // GPU descriptor
	Name     string
	Width    uint16
	Height   uint16
	Stride   uint16
	Type     TextureType
	Mips     uint8
	ColorExp [3]float32
	ColorOfs [3]float32

	D3DFormat uint8
	Format    xenon.TextureFormat
	Data      []byte
}

func (t *Texture) Read(r *Reader) {
	t.VFT = r.ReadUint32()
	for i := range t.Unknown {
		t.Unknown[i] = r.ReadUint32()
	}
	t.NameRef = ReadStr(r)
	t.D3D = ReadPtr[BlockMap](r)
	t.Name = strings.ReplaceAll(strings.ReplaceAll(t.NameRef.Value, ".dds", ""), "pack:/", "")
	if t.D3D.Item == nil {
		return
	}
	t.Width = r.ReadUint16()
	t.Height = r.ReadUint16()
	t.Stride = r.ReadUint16()
	t.Type = TextureType(r.ReadUint8())
	t.Mips = r.ReadUint8()
	for i := range t.ColorExp {
		t.ColorExp[i] = r.ReadFloat32()
	}
	for i := range t.ColorOfs {
		t.ColorOfs[i] = r.ReadFloat32()
	}

	var d3d uint32
	if err := r.deref(t.D3D.Position+d3dFormatOffset, func() { d3d = r.ReadUint32() }); err != nil {
		r.Context().Warn(fmt.Errorf("texture %s descriptor: %w", t.Name, err))
		return
	}
	t.D3DFormat = uint8(d3d)
	t.Format = xenon.FormatFromD3D(t.D3DFormat)

	// Pixel data follows the descriptor's base address; an untagged or
	// zero address means the start of the physical arena.
	off := d3d & 0xFFFF00
	pos := PhysicalBase + off
	if IsVirtual(d3d) && off != 0 {
		pos = VirtualBase + off
	} else if !IsPhysical(d3d) {
		pos = PhysicalBase
	}

	w, h := int(t.Width), int(t.Height)
	var raw []byte
	size := t.Format.DataSize(xenon.VirtualSize(w), xenon.VirtualSize(h))
	if err := r.deref(pos, func() { raw = r.bytes(size) }); err != nil {
		r.Context().Warn(fmt.Errorf("texture %s data: %w", t.Name, err))
		return
	}
	data, err := xenon.Unswizzle(raw, w, h, t.Format)
	if err != nil {
		r.Context().Warn(fmt.Errorf("texture %s: %w", t.Name, err))
		return
	}
	t.Data = data
}

// HasData reports whether pixel data was decoded.
func (t *Texture) HasData() bool { return len(t.Data) > 0 }

// Image decodes the pixel data.
func (t *Texture) Image() (*image.NRGBA, error) {
	if !t.HasData() {
		return nil, fmt.Errorf("texture %q has no pixel data", t.Name)
	}
	return xenon.DecodeImage(t.Data, int(t.Width), int(t.Height), t.Format)
}

func (t *Texture) String() string {
	return fmt.Sprintf("%s %dx%d %s", t.Name, t.Width, t.Height, t.Format)
}

// TextureDictionary is the root of .xtd files and of city packs.
type TextureDictionary struct {
	VFT              uint32
	BlockMap         Ptr[BlockMap]
	ParentDictionary uint32
	UsageCount       uint32
	HashTable        Arr[jenk.Hash]
	Textures         PtrArr[*Texture]
}

func readHash(r *Reader) jenk.Hash { return jenk.Hash(r.ReadUint32()) }

func (d *TextureDictionary) Read(r *Reader) {
	d.VFT = r.ReadUint32()
	d.BlockMap = ReadPtr[BlockMap](r)
	d.ParentDictionary = r.ReadUint32()
	d.UsageCount = r.ReadUint32()
	d.HashTable = ReadArr(r, 4, readHash)
	d.Textures = ReadPtrArr[Texture](r)

	for i, t := range d.Textures.Items {
		if t == nil {
			continue
		}
		if t.Name == "" && i < len(d.HashTable.Items) {
			t.Name = d.HashTable.Items[i].Hex()
		}
		r.Context().AddTexture(t)
	}
}

// Lookup returns the texture named name, ignoring case.
func (d *TextureDictionary) Lookup(name string) *Texture {
	for _, t := range d.Textures.Items {
		if t != nil && strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// Bitmap is the root of vinyl and tire .xshp files.
type Bitmap struct {
	VFT      uint32
	BlockMap Ptr[BlockMap]
	Texture1 Ptr[Texture]
	Texture2 Ptr[Texture]
}

func (b *Bitmap) Read(r *Reader) {
	b.VFT = r.ReadUint32()
	b.BlockMap = ReadPtr[BlockMap](r)
	b.Texture1 = ReadPtr[Texture](r)
	b.Texture2 = ReadPtr[Texture](r)
	r.Context().AddTexture(b.Texture1.Item)
	r.Context().AddTexture(b.Texture2.Item)
}
