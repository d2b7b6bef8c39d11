package rpf3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// scriptHeaderSize is the clear-text prefix of a compiled script.
const scriptHeaderSize = 24

// ExtractFile returns the contents of f. Compressed files are inflated and
// resources are returned as their decompressed virtual and physical arenas.
func (a *Archive) ExtractFile(f *FileEntry) ([]byte, error) {
	owner := a
	if f.Archive != nil {
		owner = f.Archive
	}
	r, closeFn, err := owner.source()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return owner.extract(r, f)
}

// ReadStored returns the bytes of f exactly as stored in the archive.
func (a *Archive) ReadStored(f *FileEntry) ([]byte, error) {
	owner := a
	if f.Archive != nil {
		owner = f.Archive
	}
	r, closeFn, err := owner.source()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return owner.readStored(r, f)
}

func (a *Archive) source() (io.ReaderAt, func() error, error) {
	if a.data != nil {
		return bytes.NewReader(a.data), func() error { return nil }, nil
	}
	f, err := os.Open(a.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return f, f.Close, nil
}

func (a *Archive) readStored(r io.ReaderAt, f *FileEntry) ([]byte, error) {
	size := f.FileSize()
	if !f.IsResource && !f.IsCompressed && f.Size > 0 {
		size = int64(f.Size)
	}
	if err := a.checkSpan(r, f, size); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	n, err := r.ReadAt(data, a.StartPos+f.DataOffset())
	if n < len(data) {
		return nil, fmt.Errorf("%w: %s truncated at %d of %d bytes: %v", ErrCorruptArchive, f.Path, n, size, err)
	}
	return data, nil
}

// checkSpan rejects entries whose stored bytes do not fit in r.
func (a *Archive) checkSpan(r io.ReaderAt, f *FileEntry, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: %s has negative size", ErrCorruptArchive, f.Path)
	}
	total, ok := readerSize(r)
	if !ok {
		return nil
	}
	if end := a.StartPos + f.DataOffset() + size; end > total {
		return fmt.Errorf("%w: %s spans [%d,%d) past the archive end %d",
			ErrCorruptArchive, f.Path, a.StartPos+f.DataOffset(), end, total)
	}
	return nil
}

func readerSize(r io.ReaderAt) (int64, bool) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), true
	case *os.File:
		fi, err := v.Stat()
		if err != nil {
			return 0, false
		}
		return fi.Size(), true
	}
	return 0, false
}

func (a *Archive) extract(r io.ReaderAt, f *FileEntry) ([]byte, error) {
	data, err := a.readStored(r, f)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(f.NameLower(), ".sco") && len(data) > 50 {
		if out, err := decodeScript(data); err == nil {
			return out, nil
		}
	}

	if !f.IsResource {
		if !f.IsCompressed {
			return data, nil
		}
		out, err := Inflate(data, int(f.Size))
		if err != nil {
			return nil, fmt.Errorf("inflating %s: %w", f.Path, err)
		}
		return out, nil
	}

	out, err := DecodeResource(data, f.VirtualSize()+f.PhysicalSize(), a.windowBits)
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", f.Path, err)
	}
	return out, nil
}

// decodeScript unwraps a compiled script: a clear header, the body length,
// then an encrypted zlib body. The result keeps the header and length in
// front of the inflated body.
func decodeScript(data []byte) ([]byte, error) {
	if len(data) < scriptHeaderSize+4 {
		return nil, fmt.Errorf("%w: script too short", ErrDecompression)
	}
	size := binary.LittleEndian.Uint32(data[scriptHeaderSize:])
	body := data[scriptHeaderSize+4:]
	if uint64(size) < uint64(len(body)) {
		body = body[:size]
	}

	plain, err := InflateZlib(DecryptAES(body))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, scriptHeaderSize+4+len(plain))
	out = append(out, data[:scriptHeaderSize+4]...)
	return append(out, plain...), nil
}
