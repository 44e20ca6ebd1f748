// Package dirty tracks which analysed functions changed since they were
// last served, so stale dependence graphs can be evicted from the cache.
//
// A document is one function range of one file, identified by the file path
// and the function's first line. The tracker remembers the content key
// (see cache.Key) last observed for each document.
package dirty

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultCacheDir is the default directory for storing tracker state.
const DefaultCacheDir = ".cflow/cache"

// DefaultCacheFile is the default filename for tracker state.
const DefaultCacheFile = "documents.json"

// docState is the last observed state of one document.
type docState struct {
	Path     string `json:"path"`
	Start    int    `json:"start"`
	Key      string `json:"key"`
	Changed  bool   `json:"changed"`
	LastSeen int64  `json:"last_seen"` // Unix timestamp
}

// trackerData is the on-disk JSON structure.
type trackerData struct {
	Version   int        `json:"version"`
	Documents []docState `json:"documents"`
}

// Change reports the outcome of observing a document.
type Change struct {
	// Changed is true when the document is new or its key differs from the
	// previous observation.
	Changed bool
	// Stale is the previous key of a changed document, empty when there was
	// none. Callers evict it from their graph cache.
	Stale string
}

// Tracker records the content key of every document it has seen.
type Tracker struct {
	mu        sync.RWMutex
	docs      map[string]docState
	cacheDir  string
	cacheFile string
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(t *Tracker) {
		t.cacheDir = dir
	}
}

// WithCacheFile sets the cache filename.
func WithCacheFile(file string) Option {
	return func(t *Tracker) {
		t.cacheFile = file
	}
}

// New creates a new Tracker with optional configuration.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		docs:      make(map[string]docState),
		cacheDir:  DefaultCacheDir,
		cacheFile: DefaultCacheFile,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HashFile returns the BLAKE3 digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// absPath returns the absolute form of path, or its cleaned form when the
// working directory is unknown.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func docID(path string, start int) string {
	return absPath(path) + ":" + strconv.Itoa(start)
}

// Observe records key as the current content key of the function starting
// at start in path.
func (t *Tracker) Observe(path string, start int, key string) Change {
	id := docID(path, start)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.docs[id]
	if exists && existing.Key == key {
		existing.LastSeen = t.now().Unix()
		t.docs[id] = existing
		return Change{}
	}

	t.docs[id] = docState{
		Path:     absPath(path),
		Start:    start,
		Key:      key,
		Changed:  true,
		LastSeen: t.now().Unix(),
	}
	if exists {
		return Change{Changed: true, Stale: existing.Key}
	}
	return Change{Changed: true}
}

// ObserveFile hashes a whole file and records it as the document starting
// at line 0. It returns true when the file is new or its content changed.
func (t *Tracker) ObserveFile(path string) (bool, error) {
	hash, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return t.Observe(path, 0, hash).Changed, nil
}

// Key returns the last key observed for a document.
func (t *Tracker) Key(path string, start int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.docs[docID(path, start)]
	return state.Key, exists
}

// IsChanged reports whether any document of path changed since it was
// last acknowledged.
func (t *Tracker) IsChanged(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clean := absPath(path)
	for _, state := range t.docs {
		if state.Path == clean && state.Changed {
			return true
		}
	}
	return false
}

// ChangedFiles returns the sorted paths with at least one changed document.
func (t *Tracker) ChangedFiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, state := range t.docs {
		if state.Changed && !seen[state.Path] {
			seen[state.Path] = true
			result = append(result, state.Path)
		}
	}
	sort.Strings(result)
	return result
}

// Acknowledge clears the changed flag of every document in the given
// files. If no files are provided, all documents are cleared.
func (t *Tracker) Acknowledge(files ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	want := make(map[string]bool, len(files))
	for _, f := range files {
		want[absPath(f)] = true
	}
	for id, state := range t.docs {
		if len(files) == 0 || want[state.Path] {
			state.Changed = false
			t.docs[id] = state
		}
	}
}

// Count returns the number of changed documents.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.docs {
		if state.Changed {
			count++
		}
	}
	return count
}

// TotalCount returns the total number of tracked documents.
func (t *Tracker) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.docs)
}

// Forget stops tracking every document of path and returns their keys.
func (t *Tracker) Forget(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	clean := absPath(path)
	var keys []string
	for id, state := range t.docs {
		if state.Path == clean {
			keys = append(keys, state.Key)
			delete(t.docs, id)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all tracked documents.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs = make(map[string]docState)
}

// cachePath returns the full path to the cache file.
func (t *Tracker) cachePath() string {
	return filepath.Join(t.cacheDir, t.cacheFile)
}

// Save persists the tracker state to the cache file.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(t.cachePath())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return t.SaveTo(f)
}

// Load restores the tracker state from the cache file.
func (t *Tracker) Load() error {
	f, err := os.Open(t.cachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return t.LoadFrom(f)
}

// SaveTo writes the tracker state to the given writer.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	docs := make([]docState, 0, len(t.docs))
	for _, state := range t.docs {
		docs = append(docs, state)
	}
	t.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Path != docs[j].Path {
			return docs[i].Path < docs[j].Path
		}
		return docs[i].Start < docs[j].Start
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(trackerData{Version: 1, Documents: docs}); err != nil {
		return fmt.Errorf("failed to encode tracker data: %w", err)
	}
	return nil
}

// LoadFrom reads the tracker state from the given reader.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data trackerData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode tracker data: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs = make(map[string]docState, len(data.Documents))
	for _, state := range data.Documents {
		t.docs[docID(state.Path, state.Start)] = state
	}
	return nil
}
