package rpf3

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/rpfkit/pkg/lzx"
)

// ResourceMagic identifies a stored RSC5 resource (big-endian).
const ResourceMagic uint32 = 0x05435352

// ResourceHeaderSize is the size of the stored resource header.
const ResourceHeaderSize = 20

// ResourceHeader precedes the LZX body of a stored resource.
type ResourceHeader struct {
	Magic    uint32
	Type     int32
	Flags    int32
	Unknown  uint32
	BodySize int32
}

// ParseResourceHeader decodes the big-endian resource header.
func ParseResourceHeader(stored []byte) (ResourceHeader, error) {
	if len(stored) < ResourceHeaderSize {
		return ResourceHeader{}, fmt.Errorf("%w: resource header truncated", ErrCorruptArchive)
	}
	h := ResourceHeader{
		Magic:    binary.BigEndian.Uint32(stored[0:]),
		Type:     int32(binary.BigEndian.Uint32(stored[4:])),
		Flags:    int32(binary.BigEndian.Uint32(stored[8:])),
		Unknown:  binary.BigEndian.Uint32(stored[12:]),
		BodySize: int32(binary.BigEndian.Uint32(stored[16:])),
	}
	if h.Magic != ResourceMagic {
		return h, fmt.Errorf("%w: bad resource magic %08X", ErrCorruptArchive, h.Magic)
	}
	return h, nil
}

// DecodeResource decompresses a stored resource into size bytes, the
// virtual arena followed by the physical arena.
func DecodeResource(stored []byte, size, windowBits int) ([]byte, error) {
	h, err := ParseResourceHeader(stored)
	if err != nil {
		return nil, err
	}
	body := stored[ResourceHeaderSize:]
	if h.BodySize < 0 {
		return nil, fmt.Errorf("%w: negative body size", ErrCorruptArchive)
	}
	if int(h.BodySize) < len(body) {
		body = body[:h.BodySize]
	}

	out, err := lzx.Decompress(body, size, windowBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	return out, nil
}
