package assets

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/rpfkit/pkg/rpf3"
	"github.com/Faultbox/rpfkit/pkg/rsc5"
)

// StartupFile is the name of the startup cache inside the cache directory.
const StartupFile = "startup.dat"

// harvestDir is the directory whose bitmap packs feed the texture index.
const harvestDir = "sc"

// harvestSkip is never decoded during the harvest.
const harvestSkip = "0x5674B600.xshp"

// TextureLocation maps a texture name to the pack that holds it.
type TextureLocation struct {
	Texture string
	File    string
}

type archiveRecord struct {
	size    int64
	modTime int64
	toc     []byte
}

// startupCache holds what a previous run learned about the install: the
// header and TOC of every root archive and the texture index.
type startupCache struct {
	mu       sync.Mutex
	dirty    bool
	archives map[string]archiveRecord
	textures []TextureLocation
}

func newStartupCache() *startupCache {
	return &startupCache{archives: make(map[string]archiveRecord)}
}

func fileStamp(path string) (size, modTime int64, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return fi.Size(), fi.ModTime().UnixNano(), nil
}

// restore rebuilds the archive at path from its cached TOC if the file is
// unchanged.
func (c *startupCache) restore(path string, opts []rpf3.Option) (*rpf3.Archive, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.archives[path]
	if !ok {
		return nil, false
	}
	size, mod, err := fileStamp(path)
	if err != nil || size != rec.size || mod != rec.modTime {
		delete(c.archives, path)
		c.dirty = true
		return nil, false
	}

	a := rpf3.New(path, opts...)
	if err := a.ReadStartupCache(bytes.NewReader(rec.toc)); err != nil {
		delete(c.archives, path)
		c.dirty = true
		return nil, false
	}
	return a, true
}

// record stores the TOC of a freshly read root archive.
func (c *startupCache) record(a *rpf3.Archive) error {
	size, mod, err := fileStamp(a.FilePath)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := a.WriteStartupCache(&buf); err != nil {
		return err
	}

	c.mu.Lock()
	c.archives[a.FilePath] = archiveRecord{size: size, modTime: mod, toc: buf.Bytes()}
	c.dirty = true
	c.mu.Unlock()
	return nil
}

func (m *Manager) startupPath() string {
	return filepath.Join(m.data.CacheDir, StartupFile)
}

// stringsStamp is the modification time of the strings file, 0 when there
// is none.
func (m *Manager) stringsStamp() int64 {
	if m.data.StringsFile == "" {
		return 0
	}
	_, mod, err := fileStamp(m.data.StringsFile)
	if err != nil {
		return 0
	}
	return mod
}

// loadStartupCache reads the startup cache. A missing cache, or one built
// against another strings file, marks the cache dirty.
func (m *Manager) loadStartupCache() error {
	data, err := os.ReadFile(m.startupPath())
	if errors.Is(err, os.ErrNotExist) {
		m.startup.dirty = true
		return nil
	}
	if err != nil {
		return err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompressing startup cache: %w", err)
	}

	c, stamp, err := decodeStartupCache(raw)
	if err != nil {
		return err
	}
	if stamp != m.stringsStamp() {
		m.log.Info("strings file changed, startup cache will be rebuilt")
		m.startup.dirty = true
		return nil
	}
	m.startup = c
	m.log.Info("startup cache loaded",
		zap.Int("archives", len(c.archives)),
		zap.Int("textures", len(c.textures)))
	return nil
}

// SaveStartupCache rebuilds the texture index and writes the startup cache.
func (m *Manager) SaveStartupCache(ctx context.Context) error {
	m.log.Info("building startup cache")
	textures, err := m.harvestTextures(ctx)
	if err != nil {
		return err
	}

	m.startup.mu.Lock()
	m.startup.textures = textures
	raw := encodeStartupCache(m.startup, m.stringsStamp())
	m.startup.dirty = false
	m.startup.mu.Unlock()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	data := enc.EncodeAll(raw, nil)

	if err := os.MkdirAll(m.data.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(m.data.CacheDir, StartupFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), m.startupPath()); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	m.log.Info("startup cache saved",
		zap.String("path", m.startupPath()),
		zap.Int("textures", len(textures)))
	return nil
}

// harvestTextures decodes every bitmap pack under an sc directory on a
// bounded pool and records which pack holds each texture. Packs that fail
// to decode are logged and skipped.
func (m *Manager) harvestTextures(ctx context.Context) ([]TextureLocation, error) {
	var (
		mu  sync.Mutex
		set = make(map[TextureLocation]struct{})
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, f := range m.StreamEntries(rpf3.ResourceBitmap) {
		if f.Parent == nil || f.Parent.NameLower() != harvestDir || f.Name == harvestSkip {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, err := rsc5.LoadEntry(f.Archive, f)
			if err != nil {
				m.log.Debug("harvest skipped pack", zap.String("path", f.Path), zap.Error(err))
				return nil
			}

			local := make([]TextureLocation, 0, len(file.Textures()))
			for _, t := range file.Textures() {
				if t.Name == "" {
					continue
				}
				local = append(local, TextureLocation{Texture: strings.ToLower(t.Name), File: f.Path})
			}

			mu.Lock()
			for _, loc := range local {
				set[loc] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]TextureLocation, 0, len(set))
	for loc := range set {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Texture != out[j].Texture {
			return out[i].Texture < out[j].Texture
		}
		return out[i].File < out[j].File
	})
	return out, nil
}

// Textures returns the texture index of the startup cache.
func (m *Manager) Textures() []TextureLocation {
	m.startup.mu.Lock()
	defer m.startup.mu.Unlock()
	return append([]TextureLocation(nil), m.startup.textures...)
}

// FindTexture loads the texture called name from the pack the texture
// index points at.
func (m *Manager) FindTexture(name string) (*rsc5.Texture, error) {
	name = strings.TrimSuffix(strings.ToLower(name), ".dds")
	for _, loc := range m.Textures() {
		if loc.Texture != name {
			continue
		}
		file, err := m.Load(loc.File)
		if err != nil {
			return nil, err
		}
		for _, t := range file.Textures() {
			if strings.EqualFold(t.Name, name) {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: texture %s", ErrNotFound, name)
}

// Layout, little endian:
//
//	int64 strings file stamp
//	int32 texture count, then texture and file as null-terminated strings
//	int32 archive count, then per archive: null-terminated path,
//	int64 size, int64 stamp, int32 length and the archive's own cache
func encodeStartupCache(c *startupCache, stamp int64) []byte {
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	str := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	w(stamp)
	w(int32(len(c.textures)))
	for _, t := range c.textures {
		str(t.Texture)
		str(t.File)
	}

	paths := make([]string, 0, len(c.archives))
	for p := range c.archives {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	w(int32(len(paths)))
	for _, p := range paths {
		rec := c.archives[p]
		str(p)
		w(rec.size)
		w(rec.modTime)
		w(int32(len(rec.toc)))
		buf.Write(rec.toc)
	}
	return buf.Bytes()
}

func decodeStartupCache(raw []byte) (*startupCache, int64, error) {
	c := newStartupCache()
	br := bufio.NewReader(bytes.NewReader(raw))
	rd := func(v any) error { return binary.Read(br, binary.LittleEndian, v) }
	str := func() (string, error) {
		s, err := br.ReadString(0)
		if err != nil {
			return "", err
		}
		return s[:len(s)-1], nil
	}
	count := func() (int, error) {
		var n int32
		if err := rd(&n); err != nil {
			return 0, err
		}
		if n < 0 || int(n) > len(raw) {
			return 0, fmt.Errorf("bad count %d", n)
		}
		return int(n), nil
	}

	var stamp int64
	if err := rd(&stamp); err != nil {
		return nil, 0, fmt.Errorf("reading startup cache: %w", err)
	}

	n, err := count()
	if err != nil {
		return nil, 0, fmt.Errorf("reading texture index: %w", err)
	}
	c.textures = make([]TextureLocation, 0, n)
	for i := 0; i < n; i++ {
		tex, err := str()
		if err != nil {
			return nil, 0, fmt.Errorf("reading texture %d: %w", i, err)
		}
		file, err := str()
		if err != nil {
			return nil, 0, fmt.Errorf("reading texture %d: %w", i, err)
		}
		c.textures = append(c.textures, TextureLocation{Texture: tex, File: file})
	}

	n, err = count()
	if err != nil {
		return nil, 0, fmt.Errorf("reading archive records: %w", err)
	}
	for i := 0; i < n; i++ {
		path, err := str()
		if err != nil {
			return nil, 0, fmt.Errorf("reading archive %d: %w", i, err)
		}
		var rec archiveRecord
		if err := rd(&rec.size); err != nil {
			return nil, 0, err
		}
		if err := rd(&rec.modTime); err != nil {
			return nil, 0, err
		}
		size, err := count()
		if err != nil {
			return nil, 0, fmt.Errorf("reading archive %s: %w", path, err)
		}
		rec.toc = make([]byte, size)
		if _, err := io.ReadFull(br, rec.toc); err != nil {
			return nil, 0, fmt.Errorf("reading archive %s: %w", path, err)
		}
		c.archives[path] = rec
	}
	return c, stamp, nil
}
