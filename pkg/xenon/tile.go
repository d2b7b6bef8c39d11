package xenon

import "fmt"

func log2Pitch(texelPitch int) int {
	return (texelPitch >> 2) + ((texelPitch >> 1) >> (texelPitch >> 2))
}

func tiledMacro(offset, texelPitch int) (lb, m, mt int) {
	lb = log2Pitch(texelPitch)
	m = offset << lb
	mt = ((m &^ 4095) >> 3) + ((m & 1792) >> 2) + (m & 63)
	return lb, m, mt
}

// TiledX returns the linear X block coordinate of the tiled block at offset.
// width is the surface width in blocks.
func TiledX(offset, width, texelPitch int) int {
	aligned := (width + 31) &^ 31
	lb, m, mt := tiledMacro(offset, texelPitch)
	macro := (((mt >> (7 + lb)) % (aligned >> 5)) << 2) + ((((mt >> (5 + lb)) & 2) + (m >> 6)) & 3)
	micro := ((((mt >> 1) &^ 15) + (mt & 15)) & ((texelPitch << 3) - 1)) >> lb
	return (macro << 3) + micro
}

// TiledY returns the linear Y block coordinate of the tiled block at offset.
func TiledY(offset, width, texelPitch int) int {
	aligned := (width + 31) &^ 31
	lb, m, mt := tiledMacro(offset, texelPitch)
	macro := (((mt >> (7 + lb)) / (aligned >> 5)) << 2) + ((mt >> (6 + lb)) & 1) + ((m & 2048) >> 10)
	micro := (((mt & (((texelPitch << 6) - 1) &^ 31)) + ((mt & 15) << 1)) >> (3 + lb)) &^ 1
	return (macro << 3) + micro + ((mt & 16) >> 4)
}

// Untile reorders tiled surface data into linear row-major block order.
// width and height must be the padded surface dimensions. Blocks whose
// linear position falls outside the surface are dropped.
func Untile(data []byte, width, height int, format TextureFormat) []byte {
	bs := format.BlockSize()
	tp := format.TexelPitch()
	bw := width / bs
	bh := height / bs
	out := make([]byte, len(data))

	for j := 0; j < bh; j++ {
		for i := 0; i < bw; i++ {
			block := j*bw + i
			x := TiledX(block, bw, tp)
			y := TiledY(block, bw, tp)
			if x >= bw || y >= bh {
				continue
			}
			src := block * tp
			dst := (y*bw + x) * tp
			if src+tp > len(data) || dst+tp > len(out) {
				continue
			}
			copy(out[dst:dst+tp], data[src:src+tp])
		}
	}
	return out
}

// Unswizzle converts GPU texture data of a width x height surface to linear
// order. Data is expected at the padded virtual size; the result is trimmed
// to the true dimensions.
func Unswizzle(data []byte, width, height int, format TextureFormat) ([]byte, error) {
	vw, vh := VirtualSize(width), VirtualSize(height)
	need := format.DataSize(vw, vh)
	if len(data) < need {
		return nil, fmt.Errorf("texture data too short: %d < %d", len(data), need)
	}
	linear := Untile(data[:need], vw, vh, format)
	if vw == width && vh == height {
		return linear, nil
	}
	return trim(linear, vw, width, height, format), nil
}

func trim(data []byte, virtualWidth, width, height int, format TextureFormat) []byte {
	bs := format.BlockSize()
	tp := format.TexelPitch()
	srcPitch := (virtualWidth / bs) * tp
	dstPitch := ((width + bs - 1) / bs) * tp
	rows := (height + bs - 1) / bs

	out := make([]byte, dstPitch*rows)
	for r := 0; r < rows; r++ {
		copy(out[r*dstPitch:(r+1)*dstPitch], data[r*srcPitch:r*srcPitch+dstPitch])
	}
	return out
}
