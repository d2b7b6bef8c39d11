package rpf3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/rpfkit/pkg/jenk"
)

// record builds one 16-byte TOC record.
func record(w0, w1, w2, w3 uint32) []byte {
	b := make([]byte, EntrySize)
	binary.LittleEndian.PutUint32(b[0:], w0)
	binary.LittleEndian.PutUint32(b[4:], w1)
	binary.LittleEndian.PutUint32(b[8:], w2)
	binary.LittleEndian.PutUint32(b[12:], w3)
	return b
}

func dirRecord(hash jenk.Hash, index, count int) []byte {
	return record(uint32(hash), 0, 0x80000000|uint32(index), uint32(count))
}

// buildArchive returns an archive image with the given TOC records and data
// blobs placed at their offsets.
func buildArchive(records [][]byte, blobs map[int64][]byte, encrypted bool) []byte {
	var toc []byte
	for _, r := range records {
		toc = append(toc, r...)
	}
	if encrypted {
		toc = EncryptAES(append(toc, encTrailer...))
	}

	size := int64(TOCOffset + len(toc))
	for off, b := range blobs {
		if end := off + int64(len(b)); end > size {
			size = end
		}
	}
	img := make([]byte, size)

	h := Header{Version: Magic, TOCSize: uint32(len(toc)), EntryCount: uint32(len(records))}
	h.SetEncrypted(encrypted)
	copy(img, h.marshal())
	copy(img[TOCOffset:], toc)
	for off, b := range blobs {
		copy(img[off:], b)
	}
	return img
}

func writeFixture(t *testing.T, name string, img []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestOpenSingleFile(t *testing.T) {
	names := jenk.NewIndex()
	names.Ensure("data.bin")
	data := sequence(100)

	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(uint32(jenk.Gen("data.bin")), 100, 0x1000, 100),
	}, map[int64][]byte{0x1000: data}, false)
	path := writeFixture(t, "test.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}

	if archive.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", archive.EntryCount)
	}
	if len(archive.Root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(archive.Root.Children))
	}
	file, ok := archive.Root.Children[0].(*FileEntry)
	if !ok || file != archive.AllEntries[1] {
		t.Fatalf("root child is %T, want the file entry", archive.Root.Children[0])
	}
	if file.Path != `test.rpf\data.bin` {
		t.Errorf("Path = %q", file.Path)
	}
	if file.Parent != archive.Root {
		t.Error("file parent is not the root directory")
	}

	got, err := archive.ExtractFile(file)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("extracted %d bytes, want the original 100", len(got))
	}
}

func TestOpenBadMagic(t *testing.T) {
	img := buildArchive([][]byte{dirRecord(0, 0, 0)}, nil, false)
	binary.LittleEndian.PutUint32(img, 0x12345678)
	path := writeFixture(t, "bad.rpf", img)

	if _, err := Open(path); !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("Open error = %v, want ErrCorruptArchive", err)
	}
}

func TestOpenRejectsOverlappingDirectories(t *testing.T) {
	img := buildArchive([][]byte{
		dirRecord(0, 1, 2),
		dirRecord(jenk.Gen("a"), 2, 1),
		record(uint32(jenk.Gen("f")), 4, 0x1000, 4),
	}, map[int64][]byte{0x1000: {1, 2, 3, 4}}, false)
	path := writeFixture(t, "overlap.rpf", img)

	if _, err := Open(path); !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("Open error = %v, want ErrCorruptArchive", err)
	}
}

func TestEncryptedTOC(t *testing.T) {
	names := jenk.NewIndex()
	names.Ensure("readme.txt")
	data := []byte("hello from an encrypted archive")

	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(uint32(jenk.Gen("readme.txt")), uint32(len(data)), 0x1000, uint32(len(data))),
	}, map[int64][]byte{0x1000: data}, true)
	path := writeFixture(t, "enc.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	if !archive.Encrypted() {
		t.Error("archive not reported as encrypted")
	}
	e, err := archive.Find("readme.txt")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got, err := archive.ExtractFile(e.(*FileEntry))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("extracted %q", got)
	}
}

func TestAESRoundTrip(t *testing.T) {
	data := sequence(45)
	enc := EncryptAES(data)
	if bytes.Equal(enc[:32], data[:32]) {
		t.Error("whole blocks were not encrypted")
	}
	if !bytes.Equal(enc[32:], data[32:]) {
		t.Error("trailing partial block was modified")
	}
	if dec := DecryptAES(enc); !bytes.Equal(dec, data) {
		t.Error("DecryptAES(EncryptAES(x)) != x")
	}
	if !bytes.Equal(data, sequence(45)) {
		t.Error("input buffer was modified")
	}
}

func TestEntryCodec(t *testing.T) {
	const flag = 0xC0000000 | 3 | 1<<11 | 2<<15
	e := readEntry(record(0xAABBCCDD, 0, 0x00A40001, flag))
	f, ok := e.(*FileEntry)
	if !ok {
		t.Fatalf("readEntry returned %T", e)
	}
	if !f.IsResource {
		t.Fatal("resource flag not detected")
	}
	if f.VirtualSize() != 1536 {
		t.Errorf("VirtualSize = %d, want 1536", f.VirtualSize())
	}
	if f.PhysicalSize() != 512 {
		t.Errorf("PhysicalSize = %d, want 512", f.PhysicalSize())
	}
	if f.ResourceType() != ResourceBitmap {
		t.Errorf("ResourceType = %d", f.ResourceType())
	}
	if f.DataOffset() != 0xA40000 {
		t.Errorf("DataOffset = %#x", f.DataOffset())
	}
	if f.FileSize() != 2048 {
		t.Errorf("FileSize = %d, want virtual+physical", f.FileSize())
	}

	f.SetDataOffset(0x1000)
	if f.Offset != 0x1001 {
		t.Errorf("SetDataOffset lost the type tag: %#x", f.Offset)
	}

	raw := record(1, 0, 0x00A40001, flag)
	out := make([]byte, EntrySize)
	writeEntry(out, readEntry(raw))
	if !bytes.Equal(out, raw) {
		t.Errorf("resource record changed: % x", out)
	}

	raw = record(2, 7, 0x80000003, 0x30000005)
	writeEntry(out, readEntry(raw))
	if !bytes.Equal(out, raw) {
		t.Errorf("directory record changed: % x", out)
	}

	raw = record(3, 900, 0x2000, 0x40000000|400)
	e = readEntry(raw)
	if c := e.(*FileEntry); !c.IsCompressed || c.SizeInArchive != 400 {
		t.Errorf("compressed file decoded as %+v", c)
	}
	writeEntry(out, e)
	if !bytes.Equal(out, raw) {
		t.Errorf("compressed record changed: % x", out)
	}
}

func TestInsertAfterResource(t *testing.T) {
	existing := sequence(50)
	const resOffset = 0xA4000
	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(0x11111111, 50, resOffset|uint32(ResourceBitmap), 0xC0000001),
	}, map[int64][]byte{resOffset: existing}, false)
	path := writeFixture(t, "insert.rpf", img)

	names := jenk.NewIndex()
	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	res := archive.AllEntries[1].(*FileEntry)
	if res.Name != "0x11111111.xshp" {
		t.Errorf("resource name = %q", res.Name)
	}

	end, _ := archive.FindEndBlock()
	if end != resOffset+50 {
		t.Fatalf("FindEndBlock = %#x", end)
	}

	payload := []byte("inserted file")
	entry, err := archive.CreateFile(archive.Root, "new.txt", payload, false)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if want := RoundUp(end, smallFileAlign); entry.DataOffset() != want {
		t.Errorf("new file offset = %#x, want %#x", entry.DataOffset(), want)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw[resOffset:resOffset+50], existing) {
		t.Error("existing resource bytes changed")
	}

	reopened, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", reopened.EntryCount)
	}
	e, err := reopened.Find("new.txt")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got, err := reopened.ExtractFile(e.(*FileEntry))
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("ExtractFile = %q, %v", got, err)
	}
	for _, f := range reopened.Files() {
		if f.NameHash == 0x11111111 && (f.Flag != 0xC0000001 || f.Offset != resOffset|1) {
			t.Errorf("resource record rewritten as offset %#x flag %#x", f.Offset, f.Flag)
		}
	}
}

func TestFindHoleGranularity(t *testing.T) {
	a := &Archive{names: jenk.NewIndex()}
	a.AllEntries = []Entry{
		&DirectoryEntry{},
		&FileEntry{Size: 4096, SizeInArchive: 4096, Offset: 0x1000},
	}

	_, pad := a.FindHole(&FileEntry{SizeInArchive: 10})
	if pad != smallFileAlign {
		t.Errorf("small file pad = %d, want a full 8 byte block", pad)
	}
	_, pad = a.FindHole(&FileEntry{SizeInArchive: largeFileThreshold})
	if pad != BlockAlign {
		t.Errorf("large file pad = %d", pad)
	}

	a.AllEntries[1].(*FileEntry).SizeInArchive = 4100
	end, pad := a.FindHole(&FileEntry{IsResource: true, Flag: 0xC0000001})
	if end+pad != RoundUp(0x1000+4100, BlockAlign) {
		t.Errorf("resource placed at %#x", end+pad)
	}

	empty := &Archive{AllEntries: []Entry{&DirectoryEntry{}}}
	if end, _ := empty.FindEndBlock(); end != DataStart {
		t.Errorf("empty archive end = %d", end)
	}
}

func TestCreateNewAndEdit(t *testing.T) {
	names := jenk.NewIndex()
	path := filepath.Join(t.TempDir(), "new.rpf")

	archive, err := CreateNew(path, WithNames(names))
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if _, err := CreateNew(path); !errors.Is(err, ErrEntryExists) {
		t.Errorf("second CreateNew error = %v", err)
	}

	dir, err := archive.CreateDirectory(archive.Root, "Textures")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := archive.CreateDirectory(archive.Root, "textures"); !errors.Is(err, ErrEntryExists) {
		t.Errorf("duplicate directory error = %v", err)
	}
	if _, err := archive.CreateFile(dir, "a.txt", []byte("alpha"), false); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := archive.CreateFile(dir, "A.TXT", []byte("again"), false); !errors.Is(err, ErrEntryExists) {
		t.Errorf("duplicate file error = %v", err)
	}
	if _, err := archive.CreateFile(dir, "a.txt", []byte("replaced"), true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := archive.CreateFile(dir, "nested.rpf", []byte("x"), false); err == nil {
		t.Error("importing an archive should fail")
	}

	reopened, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, err := reopened.Find(`textures\a.txt`)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got, _ := reopened.ExtractFile(e.(*FileEntry))
	if string(got) != "replaced" {
		t.Errorf("a.txt = %q", got)
	}

	d, err := reopened.FindDirectory("textures")
	if err != nil {
		t.Fatalf("FindDirectory: %v", err)
	}
	if err := reopened.RenameEntry(d, "maps"); err != nil {
		t.Fatalf("RenameEntry: %v", err)
	}
	if e.Info().Path != `new.rpf\maps\a.txt` {
		t.Errorf("child path after rename = %q", e.Info().Path)
	}

	reopened, err = Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.Find(`maps\a.txt`); err != nil {
		t.Errorf("renamed directory not found: %v", err)
	}

	d, _ = reopened.FindDirectory("maps")
	if err := reopened.DeleteEntry(d); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if err := reopened.DeleteEntry(reopened.Root); err == nil {
		t.Error("deleting the root should fail")
	}

	reopened, err = Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.EntryCount != 1 || len(reopened.Root.Children) != 0 {
		t.Errorf("after delete: %d entries", reopened.EntryCount)
	}

	reopened.RenameArchive("other.rpf")
	if reopened.Root.Path != "other.rpf" {
		t.Errorf("root path = %q", reopened.Root.Path)
	}
}

func TestMutationWithoutPhysicalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.rpf")
	archive, err := CreateNew(path)
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if _, err := archive.CreateDirectory(archive.Root, "x"); !errors.Is(err, ErrMissingPhysicalFile) {
		t.Errorf("CreateDirectory error = %v", err)
	}
	if _, err := archive.CreateFile(archive.Root, "x.txt", []byte("x"), false); !errors.Is(err, ErrMissingPhysicalFile) {
		t.Errorf("CreateFile error = %v", err)
	}
}

func innerArchive(names *jenk.Index) []byte {
	names.Ensure("a.txt")
	return buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(uint32(jenk.Gen("a.txt")), 5, 0x1000, 5),
	}, map[int64][]byte{0x1000: []byte("inner")}, false)
}

func TestNestedArchives(t *testing.T) {
	names := jenk.NewIndex()
	names.Ensure("inner.rpf")
	inner := innerArchive(names)

	packed, err := Deflate(inner)
	if err != nil {
		t.Fatal(err)
	}

	img := buildArchive([][]byte{
		dirRecord(0, 1, 2),
		record(uint32(jenk.Gen("inner.rpf")), uint32(len(inner)), 0x1000, uint32(len(inner))),
		record(0x0BADF00D, uint32(len(inner)), 0x4000, 0x40000000|uint32(len(packed))),
	}, map[int64][]byte{0x1000: inner, 0x4000: packed}, false)
	path := writeFixture(t, "outer.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	if len(archive.Children) != 2 {
		t.Fatalf("got %d nested archives, want 2", len(archive.Children))
	}

	packedEntry := archive.AllEntries[2].(*FileEntry)
	if packedEntry.Name != "0xBADF00D.rpf" {
		t.Errorf("compressed archive name = %q", packedEntry.Name)
	}

	for _, child := range archive.Children {
		if child.Parent != archive || child.ParentEntry == nil {
			t.Error("nested archive not linked to its parent")
		}
		e, err := child.Find("a.txt")
		if err != nil {
			t.Fatalf("Find in %s: %v", child.Path, err)
		}
		if want := child.ParentEntry.Path + `\a.txt`; e.Info().Path != want {
			t.Errorf("nested path = %q, want %q", e.Info().Path, want)
		}
		got, err := archive.ExtractFile(e.(*FileEntry))
		if err != nil || string(got) != "inner" {
			t.Errorf("nested extract = %q, %v", got, err)
		}
		if _, err := child.CreateDirectory(child.Root, "x"); !errors.Is(err, ErrReadOnly) {
			t.Errorf("nested mutation error = %v", err)
		}
	}

	count := 0
	archive.Walk(func(*Archive) error { count++; return nil })
	if count != 3 {
		t.Errorf("Walk visited %d archives", count)
	}
}

func TestScriptExtraction(t *testing.T) {
	plain := sequence(200)
	z, err := DeflateZlib(plain)
	if err != nil {
		t.Fatal(err)
	}
	body := EncryptAES(z)

	stored := make([]byte, scriptHeaderSize+4, scriptHeaderSize+4+len(body))
	copy(stored, "SCRIPT-HEADER-24-BYTES!!")
	binary.LittleEndian.PutUint32(stored[scriptHeaderSize:], uint32(len(body)))
	stored = append(stored, body...)

	names := jenk.NewIndex()
	names.Ensure("main.sco")
	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(uint32(jenk.Gen("main.sco")), uint32(len(stored)), 0x1000, uint32(len(stored))),
	}, map[int64][]byte{0x1000: stored}, false)
	path := writeFixture(t, "script.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	got, err := archive.ExtractFile(archive.AllEntries[1].(*FileEntry))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if !bytes.Equal(got[:scriptHeaderSize+4], stored[:scriptHeaderSize+4]) {
		t.Error("script header not preserved")
	}
	if !bytes.Equal(got[scriptHeaderSize+4:], plain) {
		t.Errorf("script body = %q", got[scriptHeaderSize+4:])
	}
}

// storedResource wraps payload (256 bytes) as an RSC5 resource whose LZX body
// is a single uncompressed block.
func storedResource(payload []byte) []byte {
	block := []byte{0x00, 0x30, 0x00, 0x10}
	for i := 0; i < 3; i++ {
		block = binary.LittleEndian.AppendUint32(block, 1)
	}
	block = append(block, payload...)
	chunk := []byte{0xFF, 0x01, 0x00, byte(len(block) >> 8), byte(len(block))}
	body := append(chunk, block...)

	hdr := make([]byte, ResourceHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:], ResourceMagic)
	binary.BigEndian.PutUint32(hdr[4:], 1)
	binary.BigEndian.PutUint32(hdr[16:], uint32(len(body)))
	return append(hdr, body...)
}

func TestResourceExtraction(t *testing.T) {
	payload := sequence(256)
	stored := storedResource(payload)

	got, err := DecodeResource(stored, 256, 17)
	if err != nil {
		t.Fatalf("DecodeResource: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("decoded resource differs")
	}

	bad := append([]byte(nil), stored...)
	bad[0] = 0
	if _, err := DecodeResource(bad, 256, 17); !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("bad magic error = %v", err)
	}
	if _, err := DecodeResource(stored, 512, 17); !errors.Is(err, ErrDecompression) {
		t.Errorf("short body error = %v", err)
	}

	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(0x22222222, uint32(len(stored)), 0x1000|uint32(ResourceTexture), 0xC0000001),
	}, map[int64][]byte{0x1000: stored}, false)
	path := writeFixture(t, "res.rpf", img)

	archive, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	res := archive.AllEntries[1].(*FileEntry)
	if res.Name != "0x22222222.xtd" {
		t.Errorf("resource name = %q", res.Name)
	}
	got, err = archive.ExtractFile(res)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("extracted resource differs")
	}
}

func TestStartupCache(t *testing.T) {
	names := jenk.NewIndex()
	names.Ensure("data.bin")
	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(uint32(jenk.Gen("data.bin")), 4, 0x1000, 4),
	}, map[int64][]byte{0x1000: {1, 2, 3, 4}}, true)
	path := writeFixture(t, "cached.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}

	var buf bytes.Buffer
	if err := archive.WriteStartupCache(&buf); err != nil {
		t.Fatalf("WriteStartupCache: %v", err)
	}

	restored := New(path, WithNames(names))
	if err := restored.ReadStartupCache(&buf); err != nil {
		t.Fatalf("ReadStartupCache: %v", err)
	}
	if restored.Header != archive.Header {
		t.Errorf("header %+v, want %+v", restored.Header, archive.Header)
	}
	e, err := restored.Find("data.bin")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got, err := restored.ExtractFile(e.(*FileEntry))
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("ExtractFile = %v, %v", got, err)
	}
}

func TestStartupCacheKeepsCompressedNestedArchives(t *testing.T) {
	names := jenk.NewIndex()
	inner := innerArchive(names)
	packed, err := Deflate(inner)
	if err != nil {
		t.Fatal(err)
	}

	img := buildArchive([][]byte{
		dirRecord(0, 1, 1),
		record(0x22222222, uint32(len(inner)), 0x1000, 0x40000000|uint32(len(packed))),
	}, map[int64][]byte{0x1000: packed}, false)
	path := writeFixture(t, "outer.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}

	var buf bytes.Buffer
	if err := archive.WriteStartupCache(&buf); err != nil {
		t.Fatalf("WriteStartupCache: %v", err)
	}
	restored := New(path, WithNames(names))
	if err := restored.ReadStartupCache(&buf); err != nil {
		t.Fatalf("ReadStartupCache: %v", err)
	}

	entry := restored.AllEntries[1].(*FileEntry)
	if entry.Name != "0x22222222.rpf" {
		t.Errorf("restored name = %q, want 0x22222222.rpf", entry.Name)
	}
	if len(restored.Children) != len(archive.Children) || len(restored.Children) != 1 {
		t.Fatalf("restored %d nested archives, want %d", len(restored.Children), len(archive.Children))
	}
	if _, err := restored.Children[0].Find("a.txt"); err != nil {
		t.Errorf("Find in restored nested archive: %v", err)
	}
}

func TestEntryPastArchiveEnd(t *testing.T) {
	names := jenk.NewIndex()
	names.Ensure("big.bin")
	names.Ensure("packed.bin")
	img := buildArchive([][]byte{
		dirRecord(0, 1, 2),
		record(uint32(jenk.Gen("big.bin")), 0x7FFFFFF0, 0x1000, 0x7FFFFFF0),
		record(uint32(jenk.Gen("packed.bin")), 0x100, 0x1000, 0x40000000|0x3FFFFFF0),
	}, map[int64][]byte{0x1000: {1, 2, 3, 4}}, false)
	path := writeFixture(t, "short.rpf", img)

	archive, err := Open(path, WithNames(names))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	for _, name := range []string{"big.bin", "packed.bin"} {
		e, err := archive.Find(name)
		if err != nil {
			t.Fatalf("Find(%s): %v", name, err)
		}
		if _, err := archive.ExtractFile(e.(*FileEntry)); !errors.Is(err, ErrCorruptArchive) {
			t.Errorf("ExtractFile(%s) error = %v, want ErrCorruptArchive", name, err)
		}
	}
}

// failingWriter rejects every write and counts the attempts.
type failingWriter struct{ calls int }

func (w *failingWriter) WriteAt(p []byte, off int64) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestFailedDataWriteLeavesTOCUntouched(t *testing.T) {
	names := jenk.NewIndex()
	path := filepath.Join(t.TempDir(), "new.rpf")
	archive, err := CreateNew(path, WithNames(names))
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	entry := &FileEntry{
		EntryInfo:     EntryInfo{Name: "a.txt", NameHash: names.Ensure("a.txt"), Parent: archive.Root, Archive: archive},
		Size:          5,
		Flag:          5,
		SizeInArchive: 5,
	}
	w := &failingWriter{}
	if err := archive.storeFile(w, archive.Root, entry, []byte("alpha")); err == nil {
		t.Fatal("expected write error")
	}
	if w.calls != 1 {
		t.Errorf("got %d writes, want only the data write", w.calls)
	}
	if len(archive.Root.Children) != 0 || len(archive.AllEntries) != 1 {
		t.Errorf("entry linked after failed write: %d children, %d entries",
			len(archive.Root.Children), len(archive.AllEntries))
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("archive file changed after failed write")
	}
}
