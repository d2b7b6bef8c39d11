package rpf3

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CreateNew creates an empty archive at filePath. The file must not exist.
func CreateNew(filePath string, opts ...Option) (*Archive, error) {
	if _, err := os.Stat(filePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryExists, filePath)
	}
	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	a := New(filePath, opts...)
	a.Version = Magic
	a.ensureAllEntries()
	if err := a.WriteHeader(f); err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err == nil {
		a.Size = fi.Size()
	}
	return a, nil
}

// ensureAllEntries rebuilds the flat entry array from the tree. Every
// directory's children are stored as one run sorted by name hash.
func (a *Archive) ensureAllEntries() {
	if a.Root == nil {
		a.Root = &DirectoryEntry{EntryInfo: EntryInfo{Name: "", Path: a.Path, Archive: a}}
	}

	all := []Entry{a.Root}
	var visit func(d *DirectoryEntry)
	visit = func(d *DirectoryEntry) {
		sort.SliceStable(d.Children, func(i, j int) bool {
			return d.Children[i].Info().NameHash < d.Children[j].Info().NameHash
		})
		d.EntriesCount = len(d.Children)
		if len(d.Children) == 0 {
			return
		}
		d.EntriesIndex = len(all)
		all = append(all, d.Children...)
		for _, c := range d.Children {
			if sub, ok := c.(*DirectoryEntry); ok {
				visit(sub)
			}
		}
	}
	visit(a.Root)

	a.AllEntries = all
	a.EntryCount = uint32(len(all))
}

// TOCData serializes the entry array.
func (a *Archive) TOCData() []byte {
	toc := make([]byte, len(a.AllEntries)*EntrySize)
	for i, e := range a.AllEntries {
		writeEntry(toc[i*EntrySize:], e)
	}
	return toc
}

// WriteHeader writes the header, padding and TOC at StartPos.
func (a *Archive) WriteHeader(w io.WriterAt) error {
	toc := a.TOCData()
	if a.Encrypted() {
		toc = EncryptAES(append(toc, encTrailer...))
	}
	if end := TOCOffset + int64(len(toc)); end > a.firstDataOffset() {
		return fmt.Errorf("%w: TOC ends at %d", ErrTOCFull, end)
	}
	a.TOCSize = uint32(len(toc))

	block := make([]byte, TOCOffset, TOCOffset+len(toc))
	copy(block, a.Header.marshal())
	block = append(block, toc...)
	if _, err := w.WriteAt(block, a.StartPos); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (a *Archive) firstDataOffset() int64 {
	first := int64(-1)
	for _, f := range a.Files() {
		if f.FileSize() == 0 {
			continue
		}
		if off := f.DataOffset(); first < 0 || off < first {
			first = off
		}
	}
	if first < 0 {
		return DataStart
	}
	return first
}

// FindEndBlock returns the end of the last stored file, or DataStart when
// the archive holds no files.
func (a *Archive) FindEndBlock() (int64, *FileEntry) {
	var end int64
	var last *FileEntry
	for _, f := range a.Files() {
		if e := f.DataOffset() + f.FileSize(); e > end {
			end = e
			last = f
		}
	}
	if end == 0 {
		end = DataStart
	}
	return end, last
}

// FindHole returns the end block and the padding to insert before f.
// Resources and files of 128 KiB or more align to 2048 bytes, smaller files
// to 8. A full block of padding is used when the end is already aligned.
func (a *Archive) FindHole(f *FileEntry) (end, pad int64) {
	end, _ = a.FindEndBlock()
	align := BlockAlign
	if !f.IsResource && f.FileSize() < largeFileThreshold {
		align = smallFileAlign
	}
	pad = RoundUp(end, align) - end
	if pad == 0 {
		pad = align
	}
	return end, pad
}

func (a *Archive) openForWrite() (*os.File, error) {
	if a.IsNested() {
		return nil, ErrReadOnly
	}
	if _, err := os.Stat(a.FilePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPhysicalFile, a.FilePath)
	}
	f, err := os.OpenFile(a.FilePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening archive for writing: %w", err)
	}
	return f, nil
}

func (a *Archive) rewriteHeader() error {
	f, err := a.openForWrite()
	if err != nil {
		return err
	}
	defer f.Close()
	a.ensureAllEntries()
	return a.WriteHeader(f)
}

// CreateFile stores data as a raw file named name in dir. With overwrite an
// existing file of the same name is deleted first.
func (a *Archive) CreateFile(dir *DirectoryEntry, name string, data []byte, overwrite bool) (*FileEntry, error) {
	lname := strings.ToLower(name)
	if strings.HasSuffix(lname, ".rpf") {
		return nil, fmt.Errorf("cannot import archive %q", name)
	}
	if a.IsNested() {
		return nil, ErrReadOnly
	}

	if overwrite {
		for _, ex := range dir.Files() {
			if ex.NameLower() == lname {
				if err := a.DeleteEntry(ex); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if _, err := os.Stat(a.FilePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPhysicalFile, a.FilePath)
	}
	for _, ex := range dir.Files() {
		if ex.NameLower() == lname {
			return nil, fmt.Errorf("%w: file %q", ErrEntryExists, name)
		}
	}

	size := uint32(len(data))
	entry := &FileEntry{
		EntryInfo: EntryInfo{
			NameHash: a.names.Ensure(name),
			Name:     name,
			Path:     dir.Path + `\` + lname,
			Parent:   dir,
			Archive:  a,
		},
		Size:          int32(size),
		Flag:          size,
		SizeInArchive: size,
	}

	f, err := a.openForWrite()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := a.storeFile(f, dir, entry, data); err != nil {
		return nil, err
	}
	return entry, nil
}

// storeFile appends data behind the last stored file and only then links
// entry into dir and rewrites the TOC.
func (a *Archive) storeFile(w io.WriterAt, dir *DirectoryEntry, entry *FileEntry, data []byte) error {
	end, pad := a.FindHole(entry)
	entry.SetDataOffset(end + pad)

	start := a.StartPos + entry.DataOffset()
	stop := start + int64(len(data))
	block := make([]byte, RoundUp(stop, BlockAlign)-start)
	copy(block, data)
	if _, err := w.WriteAt(block, start); err != nil {
		return fmt.Errorf("writing %s: %w", entry.Name, err)
	}

	dir.Children = append(dir.Children, entry)
	a.ensureAllEntries()
	if err := a.WriteHeader(w); err != nil {
		dir.removeChild(entry)
		a.ensureAllEntries()
		return err
	}
	return nil
}

// CreateDirectory adds an empty directory named name to dir.
func (a *Archive) CreateDirectory(dir *DirectoryEntry, name string) (*DirectoryEntry, error) {
	if a.IsNested() {
		return nil, ErrReadOnly
	}
	lname := strings.ToLower(name)
	for _, ex := range dir.Directories() {
		if ex.NameLower() == lname {
			return nil, fmt.Errorf("%w: directory %q", ErrEntryExists, name)
		}
	}

	entry := &DirectoryEntry{
		EntryInfo: EntryInfo{
			NameHash: a.names.Ensure(name),
			Name:     name,
			Path:     dir.Path + `\` + lname,
			Parent:   dir,
			Archive:  a,
		},
	}
	dir.Children = append(dir.Children, entry)
	if err := a.rewriteHeader(); err != nil {
		dir.removeChild(entry)
		a.ensureAllEntries()
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes e and, for directories, everything below it. The
// stored bytes stay in place.
func (a *Archive) DeleteEntry(e Entry) error {
	if a.IsNested() {
		return ErrReadOnly
	}
	if e.Info().Parent == nil {
		return errors.New("rpf3: entry has no parent directory")
	}
	if _, err := os.Stat(a.FilePath); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingPhysicalFile, a.FilePath)
	}
	if err := a.detach(e); err != nil {
		return err
	}
	return a.rewriteHeader()
}

func (a *Archive) detach(e Entry) error {
	if d, ok := e.(*DirectoryEntry); ok {
		for _, c := range append([]Entry(nil), d.Children...) {
			if err := a.detach(c); err != nil {
				return err
			}
		}
	}

	parent := e.Info().Parent
	if parent == nil {
		return errors.New("rpf3: entry has no parent directory")
	}
	parent.removeChild(e)

	if f, ok := e.(*FileEntry); ok {
		if child := a.FindChildArchive(f); child != nil {
			for i, c := range a.Children {
				if c == child {
					a.Children = append(a.Children[:i], a.Children[i+1:]...)
					break
				}
			}
		}
	}
	return nil
}

// RenameEntry renames e in the TOC and updates the paths below it.
func (a *Archive) RenameEntry(e Entry, newName string) error {
	if a.IsNested() {
		return ErrReadOnly
	}
	info := e.Info()
	if info.Parent != nil && info.Parent.Child(newName) != nil && !strings.EqualFold(info.Name, newName) {
		return fmt.Errorf("%w: %q", ErrEntryExists, newName)
	}

	old := *info
	info.Name = newName
	info.NameHash = a.names.Ensure(newName)
	info.Path = parentPath(info.Path) + strings.ToLower(newName)

	if err := a.rewriteHeader(); err != nil {
		info.Name, info.NameHash, info.Path = old.Name, old.NameHash, old.Path
		a.ensureAllEntries()
		return err
	}
	if d, ok := e.(*DirectoryEntry); ok {
		a.updatePaths(d)
	}
	return nil
}

// RenameArchive changes the logical name of the archive and every path
// derived from it. The file on disk is not touched.
func (a *Archive) RenameArchive(newName string) {
	a.Name = newName
	a.Path = parentPath(a.Path) + strings.ToLower(newName)
	if a.IsNested() {
		a.FilePath = a.Path
	} else {
		a.FilePath = filepath.Join(filepath.Dir(a.FilePath), newName)
	}
	a.updatePaths(nil)
}

func (a *Archive) updatePaths(dir *DirectoryEntry) {
	if dir == nil {
		if a.Root == nil {
			return
		}
		a.Root.Path = a.Path
		dir = a.Root
	}
	for _, c := range dir.Children {
		info := c.Info()
		info.Path = dir.Path + `\` + info.NameLower()
		switch v := c.(type) {
		case *DirectoryEntry:
			a.updatePaths(v)
		case *FileEntry:
			if child := a.FindChildArchive(v); child != nil {
				child.Path = v.Path
				child.FilePath = v.Path
				child.updatePaths(nil)
			}
		}
	}
}

// parentPath returns everything up to and including the last separator.
func parentPath(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		return p[:i+1]
	}
	return ""
}
