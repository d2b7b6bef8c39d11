package rpf3

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/rpfkit/pkg/encoding"
	"github.com/Faultbox/rpfkit/pkg/jenk"
)

// Archive is an opened RPF3 archive. Nested archives are held in Children
// and read from memory.
type Archive struct {
	Header

	Name     string
	Path     string // logical path, lower case, backslash separated
	FilePath string // physical file for root archives
	Size     int64
	StartPos int64

	AllEntries []Entry
	Root       *DirectoryEntry

	Parent      *Archive
	ParentEntry *FileEntry
	Children    []*Archive

	names      *jenk.Index
	windowBits int
	data       []byte // contents of a nested archive
}

// New returns an archive handle for filePath without reading it.
func New(filePath string, opts ...Option) *Archive {
	o := buildOptions(opts)
	rel := o.relPath
	if rel == "" {
		rel = filepath.Base(filePath)
	}
	a := &Archive{
		Header:     Header{Version: Magic},
		Name:       filepath.Base(filePath),
		Path:       encoding.NormalizePath(rel),
		FilePath:   filePath,
		names:      o.names,
		windowBits: o.windowBits,
	}
	if fi, err := os.Stat(filePath); err == nil {
		a.Size = fi.Size()
	}
	return a
}

// Open reads the archive at path, including every nested archive.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	a := New(path, opts...)
	if err := a.read(f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a, nil
}

// OpenBytes reads an archive held in memory. The archive is read-only.
func OpenBytes(data []byte, name string, opts ...Option) (*Archive, error) {
	o := buildOptions(opts)
	rel := o.relPath
	if rel == "" {
		rel = name
	}
	a := &Archive{
		Name:       name,
		Path:       encoding.NormalizePath(rel),
		Size:       int64(len(data)),
		names:      o.names,
		windowBits: o.windowBits,
		data:       data,
	}
	if err := a.read(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return a, nil
}

// Names returns the hash index used for entry names.
func (a *Archive) Names() *jenk.Index {
	return a.names
}

// IsNested reports whether the archive is stored inside another archive.
func (a *Archive) IsNested() bool {
	return a.Parent != nil || a.data != nil
}

// TopParent returns the outermost archive.
func (a *Archive) TopParent() *Archive {
	for a.Parent != nil {
		a = a.Parent
	}
	return a
}

// PhysicalFilePath returns the file on disk holding this archive.
func (a *Archive) PhysicalFilePath() string {
	return a.TopParent().FilePath
}

func (a *Archive) read(r io.ReaderAt) error {
	hdr := make([]byte, HeaderSize)
	if _, err := r.ReadAt(hdr, a.StartPos); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrCorruptArchive, err)
	}
	a.Header = parseHeader(hdr)
	if a.Version != Magic {
		return fmt.Errorf("%w: found magic %08X", ErrCorruptArchive, a.Version)
	}

	if uint64(a.EntryCount)*EntrySize > uint64(a.TOCSize) {
		return fmt.Errorf("%w: %d entries do not fit a %d byte TOC", ErrCorruptArchive, a.EntryCount, a.TOCSize)
	}
	toc := make([]byte, a.TOCSize)
	if _, err := r.ReadAt(toc, a.StartPos+TOCOffset); err != nil {
		return fmt.Errorf("%w: reading TOC: %v", ErrCorruptArchive, err)
	}
	if a.Encrypted() {
		toc = DecryptAES(toc)
	}

	if err := a.loadEntries(toc); err != nil {
		return err
	}
	a.detectArchives(r)
	if err := a.buildTree(); err != nil {
		return err
	}
	return a.openChildren(r)
}

func (a *Archive) loadEntries(toc []byte) error {
	a.AllEntries = make([]Entry, 0, a.EntryCount)
	for i := 0; i < int(a.EntryCount); i++ {
		e := readEntry(toc[i*EntrySize:])
		a.resolveName(e)
		e.Info().Archive = a
		a.AllEntries = append(a.AllEntries, e)
	}
	return nil
}

// resolveName fills in the name from the hash index. Unnamed resources get
// the extension of their resource type.
func (a *Archive) resolveName(e Entry) {
	info := e.Info()
	if d, ok := e.(*DirectoryEntry); ok && d.NameHash == 0 {
		info.Name = "root"
		return
	}

	name := info.NameHash.Hex()
	if s, ok := a.names.TryGet(info.NameHash); ok && s != "" {
		name = s
	}
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	info.Name = name

	if f, ok := e.(*FileEntry); ok && f.IsResource && strings.HasPrefix(name, "0x") {
		info.Name += f.ResourceType().Extension()
	}
}

// detectArchives renames compressed raw entries whose content is an
// archive.
func (a *Archive) detectArchives(r io.ReaderAt) {
	for _, e := range a.AllEntries {
		f, ok := e.(*FileEntry)
		if !ok || f.IsResource || !f.IsCompressed || f.IsArchive() {
			continue
		}
		if a.checkSpan(r, f, int64(f.SizeInArchive)) != nil {
			continue
		}
		stored := make([]byte, f.SizeInArchive)
		n, _ := r.ReadAt(stored, a.StartPos+f.DataOffset())
		head, err := Inflate(stored[:n], 4)
		if err != nil || len(head) < 4 {
			continue
		}
		if uint32(head[0])|uint32(head[1])<<8|uint32(head[2])<<16|uint32(head[3])<<24 == Magic {
			f.Name += ".rpf"
		}
	}
}

// buildTree links directories to their children with an explicit stack.
func (a *Archive) buildTree() error {
	if len(a.AllEntries) == 0 {
		return fmt.Errorf("%w: no root directory", ErrCorruptArchive)
	}
	root, ok := a.AllEntries[0].(*DirectoryEntry)
	if !ok {
		return fmt.Errorf("%w: first entry is not a directory", ErrCorruptArchive)
	}
	a.Root = root
	root.Path = a.Path

	linked := make([]bool, len(a.AllEntries))
	linked[0] = true

	stack := []*DirectoryEntry{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		start, end := dir.EntriesIndex, dir.EntriesIndex+dir.EntriesCount
		if end > len(a.AllEntries) {
			return fmt.Errorf("%w: directory %s children [%d,%d) out of range", ErrCorruptArchive, dir.Path, start, end)
		}
		dir.Children = make([]Entry, 0, dir.EntriesCount)
		for i := start; i < end; i++ {
			if linked[i] {
				return fmt.Errorf("%w: entry %d claimed by more than one directory", ErrCorruptArchive, i)
			}
			linked[i] = true

			e := a.AllEntries[i]
			info := e.Info()
			info.Parent = dir
			info.Path = dir.Path + `\` + info.NameLower()
			dir.Children = append(dir.Children, e)
			if sub, ok := e.(*DirectoryEntry); ok {
				stack = append(stack, sub)
			}
		}
	}
	return nil
}

func (a *Archive) openChildren(r io.ReaderAt) error {
	a.Children = nil
	for _, e := range a.AllEntries {
		f, ok := e.(*FileEntry)
		if !ok || !f.IsArchive() || f.Parent == nil {
			continue
		}
		data, err := a.extract(r, f)
		if err != nil {
			return fmt.Errorf("extracting nested archive %s: %w", f.Path, err)
		}
		child := &Archive{
			Name:        f.Name,
			Path:        f.Path,
			FilePath:    f.Path,
			Size:        int64(len(data)),
			Parent:      a,
			ParentEntry: f,
			names:       a.names,
			windowBits:  a.windowBits,
			data:        data,
		}
		if err := child.read(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("nested archive %s: %w", f.Path, err)
		}
		a.Children = append(a.Children, child)
	}
	return nil
}

// FindChildArchive returns the nested archive stored in f.
func (a *Archive) FindChildArchive(f *FileEntry) *Archive {
	for _, c := range a.Children {
		if c.ParentEntry == f {
			return c
		}
	}
	return nil
}

// Files returns every file entry in TOC order.
func (a *Archive) Files() []*FileEntry {
	var out []*FileEntry
	for _, e := range a.AllEntries {
		if f, ok := e.(*FileEntry); ok {
			out = append(out, f)
		}
	}
	return out
}

// Find returns the entry at path, relative to the archive root or absolute.
// Matching ignores case and accepts either slash.
func (a *Archive) Find(path string) (Entry, error) {
	p := encoding.NormalizePath(path)
	p = strings.TrimPrefix(p, a.Path)
	p = strings.Trim(p, `\`)
	if p == "" {
		return a.Root, nil
	}

	var cur Entry = a.Root
	for _, part := range strings.Split(p, `\`) {
		dir, ok := cur.(*DirectoryEntry)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		cur = dir.Child(part)
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	return cur, nil
}

// FindDirectory is Find restricted to directories.
func (a *Archive) FindDirectory(path string) (*DirectoryEntry, error) {
	e, err := a.Find(path)
	if err != nil {
		return nil, err
	}
	d, ok := e.(*DirectoryEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, path)
	}
	return d, nil
}

// Walk calls fn for every archive in the forest rooted at a, parents first.
func (a *Archive) Walk(fn func(*Archive) error) error {
	queue := []*Archive{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if err := fn(cur); err != nil {
			return err
		}
		queue = append(queue, cur.Children...)
	}
	return nil
}
