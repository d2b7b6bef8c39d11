package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/rpfkit/internal/logger"
	"github.com/Faultbox/rpfkit/pkg/rpf3"
	"github.com/Faultbox/rpfkit/pkg/rsc5"
)

type workspace struct {
	t       *testing.T
	dir     string
	archive string
	strings string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		t:       t,
		dir:     dir,
		archive: filepath.Join(dir, "test.rpf"),
		strings: filepath.Join(dir, "strings.txt"),
	}
	require.NoError(t, os.WriteFile(w.strings, []byte("data\nhello.txt\nrenamed.txt\n"), 0644))
	t.Cleanup(logger.Nop)
	return w
}

// run runs one command with the strings file bound and returns its
// standard output.
func (w *workspace) run(command string, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	c := &cli{out: &out, errOut: &errOut}
	err := c.run(command, append([]string{"-strings", w.strings}, args...))
	return out.String(), err
}

func (w *workspace) must(command string, args ...string) string {
	w.t.Helper()
	out, err := w.run(command, args...)
	require.NoError(w.t, err, "rpftool %s", command)
	return out
}

func TestEditAndReadArchive(t *testing.T) {
	w := newWorkspace(t)

	w.must("new", w.archive)
	w.must("mkdir", w.archive, "data")

	local := filepath.Join(w.dir, "hello.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello world"), 0644))
	out := w.must("add", w.archive, "data", local)
	assert.Contains(t, out, `test.rpf\data\hello.txt`)

	_, err := w.run("add", w.archive, "data", local)
	assert.Error(t, err, "adding twice without -f")
	w.must("add", "-f", w.archive, "data", local)

	out = w.must("list", w.archive)
	assert.Equal(t, "test.rpf\\data\\hello.txt\n", out)

	out = w.must("list", "-l", w.archive, "*.txt")
	assert.Contains(t, out, "11  raw")

	outDir := filepath.Join(w.dir, "out")
	w.must("extract", w.archive, "data/hello.txt", outDir)
	got, err := os.ReadFile(filepath.Join(outDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	out = w.must("search", w.archive, "HELLO")
	assert.Contains(t, out, `data\hello.txt`)

	out = w.must("tree", w.archive)
	assert.Contains(t, out, "└── data\\")
	assert.Contains(t, out, "    └── hello.txt")

	out = w.must("info", w.archive)
	assert.Contains(t, out, "Files:     1 (0 resources)")
	assert.Contains(t, out, ".txt")

	w.must("mv", w.archive, "data/hello.txt", "renamed.txt")
	out = w.must("list", w.archive)
	assert.Equal(t, "test.rpf\\data\\renamed.txt\n", out)

	w.must("rm", w.archive, `data\renamed.txt`)
	out = w.must("list", w.archive)
	assert.Empty(t, out)

	_, err = w.run("rm", w.archive, "data/missing.txt")
	assert.Error(t, err)
}

func TestExtractPattern(t *testing.T) {
	w := newWorkspace(t)
	w.must("new", w.archive)
	w.must("mkdir", w.archive, "data")
	local := filepath.Join(w.dir, "hello.txt")
	require.NoError(t, os.WriteFile(local, []byte("hi"), 0644))
	w.must("add", w.archive, "data", local)

	outDir := filepath.Join(w.dir, "out")
	w.must("extract", w.archive, "*.txt", outDir)
	got, err := os.ReadFile(filepath.Join(outDir, "test.rpf", "data", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestNewEncryptedArchive(t *testing.T) {
	w := newWorkspace(t)
	w.must("new", "-encrypted", w.archive)
	w.must("mkdir", w.archive, "data")

	out := w.must("info", w.archive)
	assert.Contains(t, out, "Encrypted: true")
	assert.Contains(t, out, "Entries:   2")

	_, err := w.run("new", w.archive)
	assert.Error(t, err, "archive already exists")
}

func TestRenameArchiveFile(t *testing.T) {
	w := newWorkspace(t)
	w.must("new", w.archive)
	w.must("mv", "-archive", w.archive, "other.rpf")

	assert.NoFileExists(t, w.archive)
	assert.FileExists(t, filepath.Join(w.dir, "other.rpf"))
}

func TestUsageErrors(t *testing.T) {
	w := newWorkspace(t)
	for _, cmd := range []string{"info", "list", "extract", "search", "tree", "textures", "mkdir", "add", "rm", "mv", "new"} {
		_, err := w.run(cmd)
		assert.ErrorIs(t, err, errUsage, cmd)
	}

	var out, errOut bytes.Buffer
	c := &cli{out: &out, errOut: &errOut}
	assert.ErrorIs(t, c.run("bogus", nil), errUsage)
	assert.Contains(t, errOut.String(), "Commands:")
}

func TestInvalidFormatRejected(t *testing.T) {
	w := newWorkspace(t)
	w.must("new", w.archive)
	_, err := w.run("textures", "-format", "gif", w.archive)
	assert.Error(t, err)
}

func TestTexturesWithoutResources(t *testing.T) {
	w := newWorkspace(t)
	w.must("new", w.archive)
	out := w.must("textures", "-out", filepath.Join(w.dir, "tex"), w.archive)
	assert.Contains(t, out, "Decoded 0 resources, exported 0 textures")
}

func TestSaveConfig(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(w.dir, "conf", "rpftool.yaml")
	out := w.must("config", "-workers", "5", "-o", path)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers: 5")
	assert.Contains(t, string(data), "strings_file: "+w.strings)
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 1, color.NRGBA{0, 0, 255, 255})
	return img
}

func TestEncodeImage(t *testing.T) {
	img := testImage()

	var buf bytes.Buffer
	require.NoError(t, encodeImage(&buf, img, "png"))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, color.NRGBAModel.Convert(decoded.At(0, 0)))

	buf.Reset()
	require.NoError(t, encodeImage(&buf, img, "bmp"))
	decoded, err = bmp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
	r, g, b, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xFFFF}, []uint32{r, g, b})

	assert.Error(t, encodeImage(&buf, img, "tga"))
}

func TestExportTextureWithoutData(t *testing.T) {
	_, err := exportTexture(t.TempDir(), &rsc5.Texture{Name: "empty"}, "png")
	assert.Error(t, err)
}

func TestExportDirKeepsEntriesApart(t *testing.T) {
	out := t.TempDir()
	entries := []*rpf3.FileEntry{
		{EntryInfo: rpf3.EntryInfo{Name: "pack.xshp", Path: `game.rpf\sc\pack.xshp`}},
		{EntryInfo: rpf3.EntryInfo{Name: "pack.xshp", Path: `game.rpf\city\pack.xshp`}},
		{EntryInfo: rpf3.EntryInfo{Name: "pack.xtd", Path: `game.rpf\sc\pack.xtd`}},
	}

	seen := make(map[string]bool)
	for _, f := range entries {
		dir := exportDir(out, f)
		assert.False(t, seen[dir], "duplicate export directory %s", dir)
		seen[dir] = true
		assert.True(t, strings.HasPrefix(dir, out), dir)
	}
	assert.Equal(t, filepath.Join(out, "game.rpf", "sc", "pack.xshp"), exportDir(out, entries[0]))
}

func TestSplitParent(t *testing.T) {
	tests := []struct {
		in, dir, name string
	}{
		{"data", "", "data"},
		{"data/Sub", "data", "Sub"},
		{`\a\b\C\`, `a\b`, "C"},
	}
	for _, tt := range tests {
		dir, name := splitParent(tt.in)
		assert.Equal(t, tt.dir, dir, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}
