// Package rpf3 reads and edits RPF3 archives: a 20-byte header, an optionally
// AES-encrypted table of contents at 0x800 and a flat, hash-sorted entry array
// forming a directory tree. Archives stored inside other archives are opened
// recursively.
package rpf3

import (
	"encoding/binary"
	"errors"

	"github.com/Faultbox/rpfkit/pkg/jenk"
	"github.com/Faultbox/rpfkit/pkg/lzx"
)

// Errors returned by archive operations.
var (
	ErrCorruptArchive      = errors.New("rpf3: invalid archive")
	ErrMissingPhysicalFile = errors.New("rpf3: physical archive file does not exist")
	ErrDecompression       = errors.New("rpf3: decompression failed")
	ErrEntryExists         = errors.New("rpf3: entry already exists")
	ErrNotFound            = errors.New("rpf3: entry not found")
	ErrReadOnly            = errors.New("rpf3: nested archives cannot be modified")
	ErrTOCFull             = errors.New("rpf3: table of contents would overwrite entry data")
)

const (
	// Magic is the header identifier ("RPF3" read little-endian).
	Magic uint32 = 0x33465052

	HeaderSize = 20
	TOCOffset  = 0x800
	EntrySize  = 16

	// DataStart is where the first file goes in an archive without files.
	DataStart int64 = 671744

	// BlockAlign is the padding granularity written after inserted data.
	BlockAlign int64 = 2048

	largeFileThreshold = 131072
	smallFileAlign     = 8
)

// Header is the fixed archive header.
type Header struct {
	Version    uint32
	TOCSize    uint32
	EntryCount uint32
	Unknown    uint32
	EncFlag    int32
}

// Encrypted reports whether the TOC is AES encrypted.
func (h Header) Encrypted() bool {
	return h.EncFlag != 0
}

// SetEncrypted sets the encryption flag the way the game writes it.
func (h *Header) SetEncrypted(v bool) {
	if v {
		h.EncFlag = -1
	} else {
		h.EncFlag = 0
	}
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.Version)
	binary.LittleEndian.PutUint32(b[4:], h.TOCSize)
	binary.LittleEndian.PutUint32(b[8:], h.EntryCount)
	binary.LittleEndian.PutUint32(b[12:], h.Unknown)
	binary.LittleEndian.PutUint32(b[16:], uint32(h.EncFlag))
	return b
}

func parseHeader(b []byte) Header {
	return Header{
		Version:    binary.LittleEndian.Uint32(b[0:]),
		TOCSize:    binary.LittleEndian.Uint32(b[4:]),
		EntryCount: binary.LittleEndian.Uint32(b[8:]),
		Unknown:    binary.LittleEndian.Uint32(b[12:]),
		EncFlag:    int32(binary.LittleEndian.Uint32(b[16:])),
	}
}

// RoundUp rounds n up to a multiple of m.
func RoundUp(n, m int64) int64 {
	return (n + m - 1) / m * m
}

// Option configures how an archive is opened.
type Option func(*options)

type options struct {
	names      *jenk.Index
	relPath    string
	windowBits int
}

// WithNames resolves entry name hashes through idx. Renames register their
// new names in it.
func WithNames(idx *jenk.Index) Option {
	return func(o *options) { o.names = idx }
}

// WithRelPath sets the logical path of the archive, used as the root of all
// entry paths. It defaults to the file name.
func WithRelPath(p string) Option {
	return func(o *options) { o.relPath = p }
}

// WithWindowBits sets the LZX window used for resource payloads.
func WithWindowBits(bits int) Option {
	return func(o *options) { o.windowBits = bits }
}

func buildOptions(opts []Option) options {
	o := options{windowBits: lzx.DefaultWindowBits}
	for _, fn := range opts {
		fn(&o)
	}
	if o.names == nil {
		o.names = jenk.NewIndex()
	}
	return o
}
