package lzx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter produces an LZX bitstream: bits MSB first packed into 16-bit
// little-endian words.
type bitWriter struct {
	out []byte
	cur uint32
	n   uint
}

func (w *bitWriter) write(v uint32, bits uint) {
	for i := int(bits) - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | (v>>uint(i))&1
		w.n++
		if w.n == 16 {
			w.out = append(w.out, byte(w.cur), byte(w.cur>>8))
			w.cur, w.n = 0, 0
		}
	}
}

func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.write(0, 16-w.n)
	}
	return w.out
}

func canonicalCodes(lens []byte) []uint32 {
	var count [maxCodeLen + 1]uint32
	for _, l := range lens {
		if l > 0 {
			count[l]++
		}
	}
	var next [maxCodeLen + 1]uint32
	code := uint32(0)
	for l := 1; l <= maxCodeLen; l++ {
		code = (code + count[l-1]) << 1
		next[l] = code
	}
	codes := make([]uint32, len(lens))
	for sym, l := range lens {
		if l > 0 {
			codes[sym] = next[l]
			next[l]++
		}
	}
	return codes
}

// writeLengths sends lens against all-zero previous lengths using a flat
// pretree where every symbol has a 5-bit code.
func writeLengths(w *bitWriter, lens []byte) {
	for i := 0; i < pretreeElements; i++ {
		w.write(5, 4)
	}
	for _, l := range lens {
		w.write(uint32((17-int(l))%17), 5)
	}
}

func frame(payload []byte, outSize int) []byte {
	hdr := []byte{0xFF, byte(outSize >> 8), byte(outSize), byte(len(payload) >> 8), byte(len(payload))}
	return append(hdr, payload...)
}

func uncompressedBlock(data []byte) []byte {
	var b bytes.Buffer
	// intel=0, type=3, size=len(data) in 24 bits, then 4 bits of padding.
	w := &bitWriter{}
	w.write(0, 1)
	w.write(blockUncompressed, 3)
	w.write(uint32(len(data))>>8, 16)
	w.write(uint32(len(data))&0xFF, 8)
	b.Write(w.bytes())
	for i := 0; i < 3; i++ {
		binary.Write(&b, binary.LittleEndian, uint32(1))
	}
	b.Write(data)
	return b.Bytes()
}

func TestDecompressUncompressedBlock(t *testing.T) {
	data := []byte("0123456789abcdef")
	payload := uncompressedBlock(data)
	require.Equal(t, []byte{0x00, 0x30, 0x00, 0x01}, payload[:4])
	require.Len(t, payload, 32)

	out, err := Decompress(frame(payload, len(data)), len(data), DefaultWindowBits)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecompressDefaultFrameSize(t *testing.T) {
	data := []byte("0123456789abcdef")
	payload := uncompressedBlock(data)
	stream := append([]byte{0x00, byte(len(payload))}, payload...)

	out, err := Decompress(stream, len(data), DefaultWindowBits)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecompressVerbatimBlock(t *testing.T) {
	const mainElements = numChars + 34<<3

	matchSlot4 := numChars + (4<<3 | 2) // length 4, offset from slot 4
	repeatR0 := numChars + (0<<3 | 1)   // length 3, offset R0

	mainLens := make([]byte, mainElements)
	mainLens['a'] = 2
	mainLens['b'] = 2
	mainLens[repeatR0] = 2
	mainLens[matchSlot4] = 2
	codes := canonicalCodes(mainLens)

	want := []byte("ababababa")

	w := &bitWriter{}
	w.write(0, 1)
	w.write(blockVerbatim, 3)
	w.write(uint32(len(want))>>8, 16)
	w.write(uint32(len(want))&0xFF, 8)
	writeLengths(w, mainLens[:numChars])
	writeLengths(w, mainLens[numChars:])
	writeLengths(w, make([]byte, numSecondaryLengths))

	w.write(codes['a'], 2)
	w.write(codes['b'], 2)
	w.write(codes[matchSlot4], 2)
	w.write(0, 1) // slot 4 extra bit: offset 2
	w.write(codes[repeatR0], 2)

	out, err := Decompress(frame(w.bytes(), len(want)), len(want), DefaultWindowBits)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestDecompressErrors(t *testing.T) {
	_, err := Decompress(nil, 16, 14)
	assert.Error(t, err)

	_, err = Decompress([]byte{0xFF, 0x00}, 16, DefaultWindowBits)
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = Decompress([]byte{0xFF, 0x00, 0x10, 0x00, 0x40, 0x00}, 16, DefaultWindowBits)
	assert.True(t, errors.Is(err, ErrCorrupt))

	// Block type 0 is invalid.
	w := &bitWriter{}
	w.write(0, 1)
	w.write(0, 3)
	w.write(0, 16)
	w.write(16, 8)
	_, err = Decompress(frame(w.bytes(), 16), 16, DefaultWindowBits)
	assert.True(t, errors.Is(err, ErrCorrupt))

	// Stream ends before the requested size.
	data := []byte("0123456789abcdef")
	_, err = Decompress(frame(uncompressedBlock(data), len(data)), 64, DefaultWindowBits)
	assert.True(t, errors.Is(err, ErrShortOutput))
}

func TestTables(t *testing.T) {
	assert.Equal(t, uint8(0), extraBits[3])
	assert.Equal(t, uint8(1), extraBits[4])
	assert.Equal(t, uint8(17), extraBits[50])
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 6, 8, 12}, positionBase[:8])
}

func TestHuffmanRejectsOversubscribed(t *testing.T) {
	var h huffman
	assert.Error(t, h.build([]byte{1, 1, 1}))
	assert.NoError(t, h.build([]byte{1, 2, 0}))
}

func TestTranslateE8(t *testing.T) {
	d, err := NewDecoder(DefaultWindowBits)
	require.NoError(t, err)
	d.intelStarted = true
	d.intelFileSize = 1000

	out := make([]byte, 16)
	out[2] = 0xE8
	binary.LittleEndian.PutUint32(out[3:], 100)
	d.translateE8(out)
	assert.Equal(t, uint32(98), binary.LittleEndian.Uint32(out[3:]))
	assert.Equal(t, int32(16), d.intelCurPos)
}
