package lzx

import "fmt"

// defaultFrameSize is the output size of a chunk without an explicit size.
const defaultFrameSize = 0x8000

// Decompress decodes an XMem LZX stream into exactly size bytes.
//
// The stream is a sequence of chunks. A chunk starting with 0xFF carries a
// big-endian 16-bit output size followed by a big-endian 16-bit input size;
// any other chunk starts with its big-endian 16-bit input size and produces
// 0x8000 bytes. A zero size ends the stream.
func Decompress(data []byte, size int, windowBits int) ([]byte, error) {
	d, err := NewDecoder(windowBits)
	if err != nil {
		return nil, err
	}
	return d.Decompress(data, size)
}

// Decompress decodes a complete XMem stream with a reset decoder.
func (d *Decoder) Decompress(data []byte, size int) ([]byte, error) {
	d.Reset()
	out := make([]byte, size)
	written := 0
	pos := 0

	for written < size && pos < len(data) {
		hi := int(data[pos])
		pos++
		frameSize := defaultFrameSize
		var chunkSize int
		if hi == 0xFF {
			if pos+4 > len(data) {
				return nil, fmt.Errorf("%w: truncated chunk header", ErrCorrupt)
			}
			frameSize = int(data[pos])<<8 | int(data[pos+1])
			chunkSize = int(data[pos+2])<<8 | int(data[pos+3])
			pos += 4
		} else {
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: truncated chunk header", ErrCorrupt)
			}
			chunkSize = hi<<8 | int(data[pos])
			pos++
		}
		if chunkSize == 0 || frameSize == 0 {
			break
		}
		if pos+chunkSize > len(data) {
			return nil, fmt.Errorf("%w: chunk of %d bytes at %d exceeds input", ErrCorrupt, chunkSize, pos)
		}
		if written+frameSize > size {
			frameSize = size - written
		}

		if err := d.DecodeFrame(data[pos:pos+chunkSize], out[written:written+frameSize]); err != nil {
			return nil, fmt.Errorf("chunk at %d: %w", pos, err)
		}
		pos += chunkSize
		written += frameSize
	}

	if written < size {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrShortOutput, written, size)
	}
	return out, nil
}
