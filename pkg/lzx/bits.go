package lzx

import "encoding/binary"

// bitReader reads an LZX bitstream: 16-bit little-endian words consumed
// most significant bit first. Reads past the end yield zero bits.
type bitReader struct {
	data     []byte
	pos      int
	buf      uint32
	bitsLeft uint
}

func (br *bitReader) reset() {
	br.buf = 0
	br.bitsLeft = 0
}

func (br *bitReader) byteAt(i int) uint32 {
	if i < len(br.data) {
		return uint32(br.data[i])
	}
	return 0
}

func (br *bitReader) ensure(n uint) {
	for br.bitsLeft < n {
		word := br.byteAt(br.pos) | br.byteAt(br.pos+1)<<8
		br.pos += 2
		br.buf |= word << (16 - br.bitsLeft)
		br.bitsLeft += 16
	}
}

func (br *bitReader) peek(n uint) uint32 {
	return br.buf >> (32 - n)
}

func (br *bitReader) remove(n uint) {
	br.buf <<= n
	br.bitsLeft -= n
}

func (br *bitReader) readBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	br.ensure(n)
	v := br.peek(n)
	br.remove(n)
	return v
}

// alignRaw positions the byte cursor for an uncompressed block. The header
// is followed by 1 to 16 padding bits.
func (br *bitReader) alignRaw() {
	br.ensure(16)
	if br.bitsLeft > 16 {
		br.pos -= 2
	}
	br.reset()
}

func (br *bitReader) readUint32LE() uint32 {
	var b [4]byte
	for i := range b {
		b[i] = byte(br.byteAt(br.pos + i))
	}
	br.pos += 4
	return binary.LittleEndian.Uint32(b[:])
}

func (br *bitReader) remaining() int {
	return len(br.data) - br.pos
}
