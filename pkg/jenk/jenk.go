// Package jenk implements the Jenkins one-at-a-time name hash used by RPF3
// archives and a concurrency-safe hash to string index.
package jenk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Faultbox/rpfkit/pkg/encoding"
)

// Hash is a 32-bit Jenkins one-at-a-time hash of a lower-cased name.
type Hash uint32

// Gen hashes s after lower-casing it.
func Gen(s string) Hash {
	return GenBytes([]byte(strings.ToLower(s)))
}

// GenBytes hashes data as-is.
func GenBytes(data []byte) Hash {
	var h uint32
	for _, c := range data {
		h += uint32(c)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return Hash(h)
}

// Hex returns the hash formatted as 0x%X.
func (h Hash) Hex() string {
	return fmt.Sprintf("0x%X", uint32(h))
}

// Index maps hashes back to the strings they were generated from.
// It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	names map[Hash]string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{names: make(map[Hash]string)}
}

// Ensure adds s to the index and returns its hash.
func (x *Index) Ensure(s string) Hash {
	h := Gen(s)
	x.mu.Lock()
	if _, ok := x.names[h]; !ok {
		x.names[h] = s
	}
	x.mu.Unlock()
	return h
}

// TryGet returns the string for h if one is known.
func (x *Index) TryGet(h Hash) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.names[h]
	return s, ok
}

// Name returns the string for h, or its 0x%X form when unknown.
func (x *Index) Name(h Hash) string {
	if s, ok := x.TryGet(h); ok {
		return s
	}
	return h.Hex()
}

// Len returns the number of known names.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

// Load reads newline separated names from r. Blank lines and lines starting
// with ';' or '#' are skipped. It returns the number of lines added.
func (x *Index) Load(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(encoding.DecodeString(sc.Bytes()))
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		x.Ensure(line)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading strings: %w", err)
	}
	return n, nil
}

// LoadFile reads a strings file from disk.
func (x *Index) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening strings file: %w", err)
	}
	defer f.Close()
	return x.Load(f)
}
