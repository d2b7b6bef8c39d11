package rpf3

import (
	"encoding/binary"
	"fmt"
	"io"
)

const maxCachedEntries = 1 << 24

type cacheHeader struct {
	StartPos   int64
	Version    uint32
	EntryCount uint32
	TOCSize    uint32
	Unknown    uint32
	EncFlag    int32
}

// WriteStartupCache writes the header fields and the decrypted TOC so the
// archive can later be restored without reading the file.
func (a *Archive) WriteStartupCache(w io.Writer) error {
	h := cacheHeader{
		StartPos:   a.StartPos,
		Version:    a.Version,
		EntryCount: uint32(len(a.AllEntries)),
		TOCSize:    a.TOCSize,
		Unknown:    a.Unknown,
		EncFlag:    a.EncFlag,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("writing cache header: %w", err)
	}
	if _, err := w.Write(a.TOCData()); err != nil {
		return fmt.Errorf("writing cache entries: %w", err)
	}
	return nil
}

// ReadStartupCache restores the header and entry tree written by
// WriteStartupCache, then reopens the nested archives from the file.
// Compressed entries are peeked again to recover nested archive names.
func (a *Archive) ReadStartupCache(r io.Reader) error {
	var h cacheHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("reading cache header: %w", err)
	}
	a.StartPos = h.StartPos
	a.Header = Header{
		Version:    h.Version,
		TOCSize:    h.TOCSize,
		EntryCount: h.EntryCount,
		Unknown:    h.Unknown,
		EncFlag:    h.EncFlag,
	}

	if h.EntryCount == 0 || h.EntryCount > maxCachedEntries {
		return fmt.Errorf("%w: cache holds %d entries", ErrCorruptArchive, h.EntryCount)
	}
	toc := make([]byte, int(h.EntryCount)*EntrySize)
	if _, err := io.ReadFull(r, toc); err != nil {
		return fmt.Errorf("reading cache entries: %w", err)
	}
	if err := a.loadEntries(toc); err != nil {
		return err
	}

	src, closeFn, err := a.source()
	if err != nil {
		return err
	}
	defer closeFn()

	a.detectArchives(src)
	if err := a.buildTree(); err != nil {
		return err
	}
	return a.openChildren(src)
}
