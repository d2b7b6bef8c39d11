// Package assets indexes the archives of a game install and loads decoded
// resources from them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/rpfkit/internal/config"
	"github.com/Faultbox/rpfkit/internal/logger"
	"github.com/Faultbox/rpfkit/pkg/encoding"
	"github.com/Faultbox/rpfkit/pkg/jenk"
	"github.com/Faultbox/rpfkit/pkg/rpf3"
	"github.com/Faultbox/rpfkit/pkg/rsc5"
)

// ErrNotFound is returned when no indexed archive holds a path.
var ErrNotFound = errors.New("assets: entry not found")

// Manager opens every configured archive, nested ones included, and looks
// entries up by path or by resource type and name.
type Manager struct {
	data       config.DataConfig
	windowBits int
	workers    int
	names      *jenk.Index
	log        *zap.Logger

	mu       sync.RWMutex
	roots    []*rpf3.Archive
	archives []*rpf3.Archive // every archive, parents first
	byPath   map[string]*rpf3.Archive
	entries  map[string]*rpf3.FileEntry
	streams  map[rpf3.ResourceType]map[jenk.Hash]*rpf3.FileEntry

	startup *startupCache
	cache   *Cache
}

// NewManager creates a manager for cfg. Nothing is opened until Init or
// AddArchive is called.
func NewManager(cfg *config.Config) *Manager {
	workers := cfg.Decode.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Manager{
		data:       cfg.Data,
		windowBits: cfg.Decode.WindowBits,
		workers:    workers,
		names:      jenk.NewIndex(),
		log:        logger.Named("assets"),
		byPath:     make(map[string]*rpf3.Archive),
		entries:    make(map[string]*rpf3.FileEntry),
		streams:    make(map[rpf3.ResourceType]map[jenk.Hash]*rpf3.FileEntry),
		startup:    newStartupCache(),
		cache:      NewCache(),
	}
}

// Names returns the hash index shared by every archive.
func (m *Manager) Names() *jenk.Index {
	return m.names
}

// Init loads the strings file and the startup cache, opens the configured
// archives and rebuilds the startup cache when it is stale.
func (m *Manager) Init(ctx context.Context) error {
	if m.data.StringsFile != "" {
		n, err := m.names.LoadFile(m.data.StringsFile)
		if err != nil {
			m.log.Warn("strings file not loaded", zap.String("path", m.data.StringsFile), zap.Error(err))
		} else {
			m.log.Info("strings loaded", zap.Int("count", n))
		}
	}

	if err := m.loadStartupCache(); err != nil {
		m.log.Warn("startup cache ignored", zap.Error(err))
		m.startup = newStartupCache()
	}

	for _, p := range m.data.ArchivePaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.AddPath(p); err != nil {
			return err
		}
	}

	m.mu.RLock()
	n := len(m.archives)
	m.mu.RUnlock()
	m.log.Info("archives indexed", zap.Int("archives", n), zap.Int("files", m.EntryCount()))

	if m.startup.dirty {
		if err := m.SaveStartupCache(ctx); err != nil {
			m.log.Warn("startup cache not saved", zap.Error(err))
		}
	}
	return nil
}

// AddPath adds an archive file, or every .rpf file below a directory.
func (m *Manager) AddPath(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive path %s: %w", path, err)
	}
	if !fi.IsDir() {
		return m.AddArchive(path, filepath.Base(path))
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".rpf") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", path, err)
	}

	for _, f := range files {
		rel, err := filepath.Rel(path, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		if err := m.AddArchive(f, rel); err != nil {
			m.log.Warn("archive skipped", zap.String("path", f), zap.Error(err))
		}
	}
	return nil
}

// AddArchive opens the archive at path under the logical path relPath and
// indexes it together with its nested archives.
func (m *Manager) AddArchive(path, relPath string) error {
	a, err := m.openArchive(path, relPath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = append(m.roots, a)
	return a.Walk(func(cur *rpf3.Archive) error {
		m.archives = append(m.archives, cur)
		m.byPath[cur.Path] = cur
		stream := !m.skipped(cur.Path)
		for _, f := range cur.Files() {
			m.entries[f.Path] = f
			short := strings.ToLower(f.ShortName())
			m.names.Ensure(short)
			if !stream || !f.IsResource {
				continue
			}
			t := f.ResourceType()
			if m.streams[t] == nil {
				m.streams[t] = make(map[jenk.Hash]*rpf3.FileEntry)
			}
			m.streams[t][jenk.Gen(short)] = f
		}
		return nil
	})
}

// openArchive restores the archive from the startup cache when the file
// has not changed, and reads it otherwise.
func (m *Manager) openArchive(path, relPath string) (*rpf3.Archive, error) {
	opts := []rpf3.Option{
		rpf3.WithNames(m.names),
		rpf3.WithRelPath(relPath),
		rpf3.WithWindowBits(m.windowBits),
	}

	if a, ok := m.startup.restore(path, opts); ok {
		m.log.Debug("archive restored from cache", zap.String("path", path))
		return a, nil
	}

	a, err := rpf3.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.startup.record(a); err != nil {
		m.log.Debug("archive not cached", zap.String("path", path), zap.Error(err))
	}
	return a, nil
}

func (m *Manager) skipped(archivePath string) bool {
	for _, p := range m.data.SkipPrefixes {
		if p != "" && strings.HasPrefix(archivePath, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Archives returns the root archives in the order they were added.
func (m *Manager) Archives() []*rpf3.Archive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*rpf3.Archive(nil), m.roots...)
}

// AllArchives returns every archive, nested ones included, parents first.
func (m *Manager) AllArchives() []*rpf3.Archive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*rpf3.Archive(nil), m.archives...)
}

// Archive returns the archive with the given logical path.
func (m *Manager) Archive(path string) (*rpf3.Archive, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byPath[encoding.NormalizePath(path)]
	return a, ok
}

// Entry returns the file at path. Matching ignores case and slash style.
func (m *Manager) Entry(path string) (*rpf3.FileEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.entries[encoding.NormalizePath(path)]
	return f, ok
}

// EntryCount returns the number of indexed files.
func (m *Manager) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Search returns the paths of every file whose path contains term, sorted.
func (m *Manager) Search(term string) []string {
	term = encoding.NormalizePath(term)
	m.mu.RLock()
	var out []string
	for p := range m.entries {
		if strings.Contains(p, term) {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// StreamEntry returns the resource of type t whose name without extension
// is name.
func (m *Manager) StreamEntry(t rpf3.ResourceType, name string) (*rpf3.FileEntry, bool) {
	return m.StreamEntryHash(t, jenk.Gen(name))
}

// StreamEntryHash is StreamEntry keyed by the name hash.
func (m *Manager) StreamEntryHash(t rpf3.ResourceType, h jenk.Hash) (*rpf3.FileEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.streams[t][h]
	return f, ok
}

// StreamEntries returns every streamable resource of type t, sorted by
// path.
func (m *Manager) StreamEntries(t rpf3.ResourceType) []*rpf3.FileEntry {
	m.mu.RLock()
	out := make([]*rpf3.FileEntry, 0, len(m.streams[t]))
	for _, f := range m.streams[t] {
		out = append(out, f)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Extract returns the contents of the file at path.
func (m *Manager) Extract(path string) ([]byte, error) {
	f, ok := m.Entry(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return f.Archive.ExtractFile(f)
}

// Load decodes the resource at path. Decoded files are cached.
func (m *Manager) Load(path string) (*rsc5.File, error) {
	f, ok := m.Entry(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return m.LoadEntry(f)
}

// LoadEntry decodes f, using the cache.
func (m *Manager) LoadEntry(f *rpf3.FileEntry) (*rsc5.File, error) {
	if file, ok := m.cache.Get(f.Path); ok {
		return file, nil
	}

	file, err := rsc5.LoadEntry(f.Archive, f)
	if err != nil {
		return nil, err
	}
	for _, w := range file.Warnings() {
		m.log.Debug("decode warning", zap.String("path", f.Path), zap.Error(w))
	}
	m.cache.Set(f.Path, file)
	return file, nil
}

// Close drops every archive and cached resource.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.archives = nil
	m.byPath = make(map[string]*rpf3.Archive)
	m.entries = make(map[string]*rpf3.FileEntry)
	m.streams = make(map[rpf3.ResourceType]map[jenk.Hash]*rpf3.FileEntry)
	m.cache.Clear()
}

// Cache holds decoded resources by entry path.
type Cache struct {
	data map[string]*rsc5.File
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*rsc5.File),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*rsc5.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return f, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, f *rsc5.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = f
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*rsc5.File)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
