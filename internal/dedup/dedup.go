// Package dedup maintains the set of asset identifiers already present on
// disk, derived from the marker embedded in downloaded files.
package dedup

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sunovault/sunovault/internal/tagging"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
}

// Index is a mutex-guarded identifier set shared by concurrent workers.
// It is rebuilt from disk at the start of every run and never persisted.
type Index struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{ids: make(map[string]struct{})}
}

// Build scans dir recursively, reading the embedded marker from every audio
// file it can open. Unreadable or unmarked files contribute nothing; a
// corrupt file never aborts the scan. A missing directory yields an empty
// index.
func Build(dir string) *Index {
	idx := NewIndex()
	if dir == "" {
		return idx
	}
	if _, err := os.Stat(dir); err != nil {
		return idx
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		marker, err := tagging.ReadMarker(path)
		if err == nil && marker != "" {
			idx.Add(marker)
		}
		return nil
	})
	return idx
}

// Contains reports whether id is already known.
func (i *Index) Contains(id string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.ids[id]
	return ok
}

// Add records id. Adding an existing id is a no-op.
func (i *Index) Add(id string) {
	if id == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids[id] = struct{}{}
}

// Len returns the number of known identifiers.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ids)
}
