// Package xenon decodes the Xbox 360 memory layouts used by RSC5 resources:
// tiled texture data, DXT blocks and big-endian vertex streams.
package xenon

import "fmt"

// TextureFormat is a decoded texture pixel format.
type TextureFormat uint8

// Texture formats.
const (
	BC1 TextureFormat = iota
	BC2
	BC3
	A8R8G8B8
	L8
)

// D3D format codes stored in the low byte of a texture's GPU descriptor.
const (
	D3DFmtL8       = 2
	D3DFmtDXT1     = 82
	D3DFmtDXT3     = 83
	D3DFmtDXT5     = 84
	D3DFmtA8R8G8B8 = 134
)

// FormatFromD3D maps a D3D format code. Unknown codes decode as BC1.
func FormatFromD3D(code uint8) TextureFormat {
	switch code {
	case D3DFmtDXT3:
		return BC2
	case D3DFmtDXT5:
		return BC3
	case D3DFmtA8R8G8B8:
		return A8R8G8B8
	case D3DFmtL8:
		return L8
	default:
		return BC1
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case BC1:
		return "BC1"
	case BC2:
		return "BC2"
	case BC3:
		return "BC3"
	case A8R8G8B8:
		return "A8R8G8B8"
	case L8:
		return "L8"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BlockSize returns the edge length in texels of one addressable block.
func (f TextureFormat) BlockSize() int {
	switch f {
	case BC1, BC2, BC3:
		return 4
	default:
		return 1
	}
}

// TexelPitch returns the bytes per addressable block.
func (f TextureFormat) TexelPitch() int {
	switch f {
	case BC1:
		return 8
	case BC2, BC3:
		return 16
	case A8R8G8B8:
		return 4
	default:
		return 1
	}
}

// DataSize returns the byte size of a width x height surface.
func (f TextureFormat) DataSize(width, height int) int {
	bs := f.BlockSize()
	return ((width + bs - 1) / bs) * ((height + bs - 1) / bs) * f.TexelPitch()
}

// MinTileSize is the smallest surface edge the GPU tiles without padding.
const MinTileSize = 128

// VirtualSize returns the padded edge length stored for a texture edge.
func VirtualSize(size int) int {
	if size%MinTileSize != 0 && size < MinTileSize {
		return MinTileSize
	}
	return size
}
