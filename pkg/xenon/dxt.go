package xenon

import (
	"encoding/binary"
	"fmt"
)

// Block colour endpoints are stored as big-endian 16-bit words and the
// index words as little-endian 32-bit values with rows stored in swapped
// pairs, so row k of a block lands on pixel row k^1.
//
// Output pixels are 4 bytes each. Channel 0 holds the low 5-bit field of the
// 565 colour, channel 2 the high one, channel 3 the alpha.

type colorBlock struct {
	c0, c1 uint32
	ramp   [4][4]byte
}

func decodeColorBlock(b []byte, transparent bool) colorBlock {
	var cb colorBlock
	cb.c0 = uint32(b[0])<<8 | uint32(b[1])
	cb.c1 = uint32(b[2])<<8 | uint32(b[3])

	r0, g0, bl0 := expand565(cb.c0)
	r1, g1, bl1 := expand565(cb.c1)

	cb.ramp[0] = [4]byte{byte(r0), byte(g0), byte(bl0), 255}
	cb.ramp[1] = [4]byte{byte(r1), byte(g1), byte(bl1), 255}
	if cb.c0 > cb.c1 {
		cb.ramp[2] = [4]byte{byte((2*r0 + r1) / 3), byte((2*g0 + g1) / 3), byte((2*bl0 + bl1) / 3), 255}
		cb.ramp[3] = [4]byte{byte((r0 + 2*r1) / 3), byte((g0 + 2*g1) / 3), byte((bl0 + 2*bl1) / 3), 255}
	} else {
		cb.ramp[2] = [4]byte{byte((r0 + r1) / 2), byte((g0 + g1) / 2), byte((bl0 + bl1) / 2), 255}
		if transparent {
			cb.ramp[3] = [4]byte{0, 0, 0, 0}
		} else {
			cb.ramp[3] = [4]byte{0, 0, 0, 255}
		}
	}
	return cb
}

func expand565(c uint32) (uint32, uint32, uint32) {
	return 8 * (c & 31), 4 * ((c >> 5) & 63), 8 * ((c >> 11) & 31)
}

// writeColors expands the 2-bit indices of a colour block into pix. When
// alpha is non-nil it overrides the ramp alpha.
func writeColors(pix []byte, width, bx, by int, cb colorBlock, code uint32, alpha *[16]byte) {
	for k := 0; k < 4; k++ {
		j := k ^ 1
		for i := 0; i < 4; i++ {
			p := (width*(by*4+j) + bx*4 + i) * 4
			c := cb.ramp[code&3]
			pix[p+0], pix[p+1], pix[p+2] = c[0], c[1], c[2]
			if alpha != nil {
				pix[p+3] = alpha[j*4+i]
			} else {
				pix[p+3] = c[3]
			}
			code >>= 2
		}
	}
}

func checkBlocks(data []byte, width, height, blockBytes int) error {
	if width%4 != 0 || height%4 != 0 {
		return fmt.Errorf("dimensions %dx%d not a multiple of 4", width, height)
	}
	if need := (width / 4) * (height / 4) * blockBytes; len(data) < need {
		return fmt.Errorf("block data too short: %d < %d", len(data), need)
	}
	return nil
}

// DecodeDXT1 decodes BC1 block data to BGRA pixels.
func DecodeDXT1(data []byte, width, height int) ([]byte, error) {
	if err := checkBlocks(data, width, height, 8); err != nil {
		return nil, err
	}
	pix := make([]byte, width*height*4)
	xBlocks, yBlocks := width/4, height/4
	for y := 0; y < yBlocks; y++ {
		for x := 0; x < xBlocks; x++ {
			b := data[(y*xBlocks+x)*8:]
			cb := decodeColorBlock(b, true)
			writeColors(pix, width, x, y, cb, binary.LittleEndian.Uint32(b[4:]), nil)
		}
	}
	return pix, nil
}

// DecodeDXT3 decodes BC2 block data. The explicit 4-bit alpha rows are
// big-endian 16-bit words with the lowest nibble first.
func DecodeDXT3(data []byte, width, height int) ([]byte, error) {
	if err := checkBlocks(data, width, height, 16); err != nil {
		return nil, err
	}
	pix := make([]byte, width*height*4)
	xBlocks, yBlocks := width/4, height/4
	for y := 0; y < yBlocks; y++ {
		for x := 0; x < xBlocks; x++ {
			b := data[(y*xBlocks+x)*16:]
			var alpha [16]byte
			for k := 0; k < 4; k++ {
				row := binary.BigEndian.Uint16(b[k*2:])
				j := k ^ 1
				for i := 0; i < 4; i++ {
					alpha[j*4+i] = byte(row&15) * 17
					row >>= 4
				}
			}
			cb := decodeColorBlock(b[8:], false)
			writeColors(pix, width, x, y, cb, binary.LittleEndian.Uint32(b[12:]), &alpha)
		}
	}
	return pix, nil
}

// DecodeDXT5 decodes BC3 block data to BGRA pixels.
func DecodeDXT5(data []byte, width, height int) ([]byte, error) {
	if err := checkBlocks(data, width, height, 16); err != nil {
		return nil, err
	}
	pix := make([]byte, width*height*4)
	xBlocks, yBlocks := width/4, height/4
	for y := 0; y < yBlocks; y++ {
		for x := 0; x < xBlocks; x++ {
			b := data[(y*xBlocks+x)*16:]
			alpha := decodeAlphaBlock(b)
			cb := decodeColorBlock(b[8:], false)
			writeColors(pix, width, x, y, cb, binary.LittleEndian.Uint32(b[12:]), &alpha)
		}
	}
	return pix, nil
}

// decodeAlphaBlock returns the 16 alpha values of a BC3 block indexed by
// row*4+column.
func decodeAlphaBlock(b []byte) [16]byte {
	var alphas [8]uint32
	alphas[0] = uint32(b[1])
	alphas[1] = uint32(b[0])

	var mask uint64
	for _, i := range [...]int{6, 7, 4, 5, 2, 3} {
		mask = mask<<8 | uint64(b[i])
	}

	if alphas[0] > alphas[1] {
		for i := uint32(1); i < 7; i++ {
			alphas[i+1] = ((7-i)*alphas[0] + i*alphas[1] + 3) / 7
		}
	} else {
		for i := uint32(1); i < 5; i++ {
			alphas[i+1] = ((5-i)*alphas[0] + i*alphas[1] + 2) / 5
		}
		alphas[6] = 0
		alphas[7] = 255
	}

	var out [16]byte
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = byte(alphas[mask&7])
			mask >>= 3
		}
	}
	return out
}
