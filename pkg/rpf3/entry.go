package rpf3

import (
	"encoding/binary"
	"strings"

	"github.com/Faultbox/rpfkit/pkg/jenk"
)

// ResourceType is the tag stored in the low byte of a resource entry offset.
type ResourceType uint8

const (
	ResourceNone      ResourceType = 0
	ResourceBitmap    ResourceType = 1
	ResourceAnimation ResourceType = 2
	ResourceTexture   ResourceType = 9
	ResourceFlash     ResourceType = 27
	ResourceFragment  ResourceType = 63
)

// Extension returns the file extension used for unnamed resources of this
// type, or "" when there is none.
func (t ResourceType) Extension() string {
	switch t {
	case ResourceBitmap:
		return ".xshp"
	case ResourceAnimation:
		return ".xbtm"
	case ResourceTexture:
		return ".xtd"
	case ResourceFlash:
		return ".xsf"
	case ResourceFragment:
		return ".xft"
	}
	return ""
}

// Entry is a TOC record: either a *DirectoryEntry or a *FileEntry.
type Entry interface {
	Info() *EntryInfo
}

// EntryInfo holds the fields shared by directories and files.
type EntryInfo struct {
	NameHash jenk.Hash
	Name     string
	Path     string
	Parent   *DirectoryEntry
	Archive  *Archive
}

// Info returns e.
func (e *EntryInfo) Info() *EntryInfo { return e }

// NameLower returns the lower-cased name.
func (e *EntryInfo) NameLower() string { return strings.ToLower(e.Name) }

// ShortName returns the name without its extension.
func (e *EntryInfo) ShortName() string {
	if i := strings.LastIndexByte(e.Name, '.'); i > 0 {
		return e.Name[:i]
	}
	return e.Name
}

// DirectoryEntry is a directory. Its children occupy
// AllEntries[EntriesIndex : EntriesIndex+EntriesCount].
type DirectoryEntry struct {
	EntryInfo
	Flags        uint32
	EntriesIndex int
	EntriesCount int
	Children     []Entry

	countHigh uint32
}

// Directories returns the child directories.
func (d *DirectoryEntry) Directories() []*DirectoryEntry {
	var out []*DirectoryEntry
	for _, c := range d.Children {
		if sub, ok := c.(*DirectoryEntry); ok {
			out = append(out, sub)
		}
	}
	return out
}

// Files returns the child files.
func (d *DirectoryEntry) Files() []*FileEntry {
	var out []*FileEntry
	for _, c := range d.Children {
		if f, ok := c.(*FileEntry); ok {
			out = append(out, f)
		}
	}
	return out
}

// Child returns the child with the given name, ignoring case.
func (d *DirectoryEntry) Child(name string) Entry {
	name = strings.ToLower(name)
	for _, c := range d.Children {
		if c.Info().NameLower() == name {
			return c
		}
	}
	return nil
}

func (d *DirectoryEntry) removeChild(e Entry) bool {
	for i, c := range d.Children {
		if c == e {
			d.Children = append(d.Children[:i], d.Children[i+1:]...)
			return true
		}
	}
	return false
}

// FileEntry is a stored file, either a raw (possibly deflated) file or an
// RSC5 resource.
type FileEntry struct {
	EntryInfo

	// Size is the stored length for resources and the uncompressed length
	// for raw files.
	Size int32

	// Offset is the raw offset word. For resources the low byte is the
	// resource type.
	Offset uint32

	// Flag is the raw flag word. For resources it packs the virtual and
	// physical sizes.
	Flag uint32

	IsResource    bool
	IsCompressed  bool
	SizeInArchive uint32
}

// ResourceType returns the type tag of a resource entry.
func (f *FileEntry) ResourceType() ResourceType {
	return ResourceType(f.Offset & 0xFF)
}

// SetResourceType replaces the type tag.
func (f *FileEntry) SetResourceType(t ResourceType) {
	f.Offset = f.Offset&^0xFF | uint32(t)
}

// DataOffset returns the offset of the stored bytes relative to the archive
// start.
func (f *FileEntry) DataOffset() int64 {
	if f.IsResource {
		return int64(f.Offset & 0x7FFFFF00)
	}
	return int64(f.Offset & 0x7FFFFFFF)
}

// SetDataOffset moves the entry, keeping the resource type tag.
func (f *FileEntry) SetDataOffset(off int64) {
	if f.IsResource {
		f.Offset = uint32(off)&^0xFF | uint32(f.ResourceType())
		return
	}
	f.Offset = uint32(off)
}

// VirtualSize returns the size of the virtual arena of a resource.
func (f *FileEntry) VirtualSize() int {
	return int(f.Flag&0x7FF) << (((f.Flag >> 11) & 0xF) + 8)
}

// PhysicalSize returns the size of the physical arena of a resource.
func (f *FileEntry) PhysicalSize() int {
	return int((f.Flag>>15)&0x7FF) << (((f.Flag >> 26) & 0xF) + 8)
}

// FileSize returns the number of bytes the entry occupies in the archive.
func (f *FileEntry) FileSize() int64 {
	if f.IsResource {
		if f.Size != 0 {
			return int64(f.Size)
		}
		return int64(f.VirtualSize() + f.PhysicalSize())
	}
	return int64(f.SizeInArchive)
}

// IsArchive reports whether the entry is a nested archive.
func (f *FileEntry) IsArchive() bool {
	return strings.HasSuffix(f.NameLower(), ".rpf")
}

// readEntry decodes one 16-byte TOC record. A negative word at +8 marks a
// directory.
func readEntry(b []byte) Entry {
	hash := jenk.Hash(binary.LittleEndian.Uint32(b[0:]))
	w1 := binary.LittleEndian.Uint32(b[4:])
	w2 := binary.LittleEndian.Uint32(b[8:])
	w3 := binary.LittleEndian.Uint32(b[12:])

	if int32(w2) < 0 {
		return &DirectoryEntry{
			EntryInfo:    EntryInfo{NameHash: hash},
			Flags:        w1,
			EntriesIndex: int(w2 & 0x7FFFFFFF),
			EntriesCount: int(w3 & 0x0FFFFFFF),
			countHigh:    w3 &^ 0x0FFFFFFF,
		}
	}

	f := &FileEntry{
		EntryInfo: EntryInfo{NameHash: hash},
		Size:      int32(w1),
		Offset:    w2,
		Flag:      w3,
	}
	f.IsResource = w3&0xC0000000 == 0xC0000000
	if !f.IsResource {
		f.IsCompressed = w3&0x40000000 != 0
		f.SizeInArchive = w3 & 0xBFFFFFFF
	}
	return f
}

// writeEntry encodes e into a 16-byte TOC record.
func writeEntry(b []byte, e Entry) {
	switch v := e.(type) {
	case *DirectoryEntry:
		binary.LittleEndian.PutUint32(b[0:], uint32(v.NameHash))
		binary.LittleEndian.PutUint32(b[4:], v.Flags)
		binary.LittleEndian.PutUint32(b[8:], 0x80000000|uint32(v.EntriesIndex)&0x7FFFFFFF)
		binary.LittleEndian.PutUint32(b[12:], v.countHigh|uint32(v.EntriesCount)&0x0FFFFFFF)
	case *FileEntry:
		binary.LittleEndian.PutUint32(b[0:], uint32(v.NameHash))
		binary.LittleEndian.PutUint32(b[4:], uint32(v.Size))
		binary.LittleEndian.PutUint32(b[8:], v.Offset)
		if v.IsResource {
			binary.LittleEndian.PutUint32(b[12:], v.Flag)
			return
		}
		flag := v.SizeInArchive
		if v.IsCompressed {
			flag |= 0x40000000
		}
		binary.LittleEndian.PutUint32(b[12:], flag)
	}
}
