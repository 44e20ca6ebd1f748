// Package cache provides a content-addressed LRU cache for analysed
// function bodies, with disk persistence.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// Key returns the content address of a function text starting at startLine.
// The start line is part of the key because statements are line-addressed.
func Key(text string, startLine int) string {
	h := blake3.New()
	h.Write([]byte(strconv.Itoa(startLine)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache defines the interface for a cache with basic operations.
type Cache[V any] interface {
	// Get retrieves a value by key.
	Get(key string) (V, bool)

	// Set stores a key-value pair in the cache.
	// If the cache is full, LRU eviction will occur.
	Set(key string, value V)

	// Delete removes a key from the cache.
	Delete(key string)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Save persists the cache to the given writer.
	Save(w io.Writer) error

	// Load restores the cache from the given reader.
	Load(r io.Reader) error
}

// Entry represents a cache entry with metadata.
type Entry[V any] struct {
	Key        string    `msgpack:"key"`
	Value      V         `msgpack:"value"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
	Size       int       `msgpack:"size"` // estimated size in bytes
}

// LRUCache is an in-memory LRU cache with optional disk persistence.
// Entries are immutable: storing a key that is already present only
// refreshes its recency.
type LRUCache[V any] struct {
	mu           sync.RWMutex
	items        map[string]*listItem[V]
	lru          *list[V] // doubly-linked list (most recent at front)
	maxSize      int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, value V)
	sizeOf       func(V) int
}

// listItem is an item in the doubly-linked list.
type listItem[V any] struct {
	Entry[V]
	prev *listItem[V]
	next *listItem[V]
}

// list represents a doubly-linked list.
type list[V any] struct {
	head *listItem[V] // most recently accessed
	tail *listItem[V] // least recently accessed
	len  int
}

// moveToFront moves an item to the front (most recently used).
func (l *list[V]) moveToFront(item *listItem[V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// unlink removes item from its current position.
func (l *list[V]) unlink(item *listItem[V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

// removeBack removes and returns the least recently used item.
func (l *list[V]) removeBack() *listItem[V] {
	if l.tail == nil {
		return nil
	}
	item := l.tail
	l.unlink(item)
	return item
}

// pushFront adds an item to the front of the list.
func (l *list[V]) pushFront(item *listItem[V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// Options configures the LRU cache.
type Options[V any] struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// MaxBytes is the approximate maximum size in bytes.
	// 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted or deleted.
	OnEvict func(key string, value V)

	// SizeOf estimates the size of a value. Defaults to the length of
	// its msgpack encoding.
	SizeOf func(V) int
}

// New creates a new LRU cache with the given options.
func New[V any](opts Options[V]) *LRUCache[V] {
	sizeOf := opts.SizeOf
	if sizeOf == nil {
		sizeOf = estimateSize[V]
	}
	return &LRUCache[V]{
		items:    make(map[string]*listItem[V]),
		lru:      &list[V]{},
		maxSize:  opts.MaxSize,
		maxBytes: opts.MaxBytes,
		onEvict:  opts.OnEvict,
		sizeOf:   sizeOf,
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		var zero V
		return zero, false
	}

	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value in the cache.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.AccessedAt = time.Now()
		c.lru.moveToFront(item)
		return
	}

	now := time.Now()
	item := &listItem[V]{
		Entry: Entry[V]{
			Key:        key,
			Value:      value,
			AccessedAt: now,
			CreatedAt:  now,
			Size:       c.sizeOf(value),
		},
	}

	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(item.Size)

	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}

	c.lru.unlink(item)
	delete(c.items, key)
	c.currentBytes -= int64(item.Size)

	if c.onEvict != nil {
		c.onEvict(key, item.Value)
	}
}

// Clear removes all entries from the cache.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem[V])
	c.lru = &list[V]{}
	c.currentBytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CurrentBytes returns the approximate current size in bytes.
func (c *LRUCache[V]) CurrentBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentBytes
}

// evictIfNeeded evicts entries if the cache exceeds its limits.
func (c *LRUCache[V]) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)
		c.currentBytes -= int64(item.Size)

		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}

// shouldEvict returns true if the cache should evict entries.
func (c *LRUCache[V]) shouldEvict() bool {
	if c.maxSize > 0 && c.lru.len > c.maxSize {
		return true
	}
	if c.maxBytes > 0 && c.currentBytes > c.maxBytes && c.lru.len > 1 {
		return true
	}
	return false
}

// entries returns the entries from least to most recently used.
func (c *LRUCache[V]) entries() []Entry[V] {
	out := make([]Entry[V], 0, len(c.items))
	for item := c.lru.tail; item != nil; item = item.prev {
		out = append(out, item.Entry)
	}
	return out
}

// restore replaces the contents with entries ordered least recent first.
func (c *LRUCache[V]) restore(entries []Entry[V]) {
	c.items = make(map[string]*listItem[V], len(entries))
	c.lru = &list[V]{}
	c.currentBytes = 0

	for _, entry := range entries {
		item := &listItem[V]{Entry: entry}
		c.items[entry.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += int64(entry.Size)
	}
	c.evictIfNeeded()
}

// Save persists the cache to a writer using msgpack.
func (c *LRUCache[V]) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return msgpack.NewEncoder(w).Encode(c.entries())
}

// Load restores the cache from a reader using msgpack.
func (c *LRUCache[V]) Load(r io.Reader) error {
	var entries []Entry[V]
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.restore(entries)
	return nil
}

// PersistToFile saves the cache to a file, creating parent directories.
func PersistToFile[V any](c Cache[V], path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from a file.
func LoadFromFile[V any](c Cache[V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// estimateSize estimates the size of a value in bytes.
func estimateSize[V any](value V) int {
	switch v := any(value).(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	default:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return 0
		}
		return len(b)
	}
}

// GetWithContext retrieves a value unless ctx is already done.
func GetWithContext[V any](ctx context.Context, c Cache[V], key string) (V, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero V
		return zero, false, err
	}
	val, found := c.Get(key)
	return val, found, nil
}

// Stats returns cache statistics.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// NewStatsCache creates a cache that tracks statistics.
func NewStatsCache[V any](opts Options[V]) *StatsCache[V] {
	return &StatsCache[V]{
		LRUCache: New(opts),
	}
}

// StatsCache wraps an LRU cache with statistics tracking.
type StatsCache[V any] struct {
	*LRUCache[V]
	mu        sync.RWMutex
	hitCount  int64
	missCount int64
}

// Get retrieves a value and updates statistics.
func (c *StatsCache[V]) Get(key string) (V, bool) {
	val, found := c.LRUCache.Get(key)
	c.mu.Lock()
	if found {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mu.Unlock()
	return val, found
}

// Stats returns the current cache statistics.
func (c *StatsCache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Length:       c.LRUCache.Len(),
		CurrentBytes: c.LRUCache.CurrentBytes(),
		HitCount:     c.hitCount,
		MissCount:    c.missCount,
	}
}

// HitRate returns the cache hit rate.
func (c *StatsCache[V]) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hitCount + c.missCount
	if total == 0 {
		return 0
	}
	return float64(c.hitCount) / float64(total)
}

// ResetStats resets the statistics counters.
func (c *StatsCache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hitCount = 0
	c.missCount = 0
}

// NewShardedCache creates a cache with multiple shards for better concurrency.
// The size limits in opts apply per shard.
func NewShardedCache[V any](numShards int, opts Options[V]) *ShardedCache[V] {
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*LRUCache[V], numShards)
	for i := range shards {
		shards[i] = New(opts)
	}
	return &ShardedCache[V]{shards: shards}
}

// ShardedCache is a sharded LRU cache for better concurrency.
type ShardedCache[V any] struct {
	shards []*LRUCache[V]
}

// shardIndex returns the shard index for a key.
func (s *ShardedCache[V]) shardIndex(key string) uint64 {
	return xxhash.Sum64String(key) % uint64(len(s.shards))
}

// Get retrieves a value from the appropriate shard.
func (s *ShardedCache[V]) Get(key string) (V, bool) {
	return s.shards[s.shardIndex(key)].Get(key)
}

// Set sets a value in the appropriate shard.
func (s *ShardedCache[V]) Set(key string, value V) {
	s.shards[s.shardIndex(key)].Set(key, value)
}

// Delete deletes a key from the appropriate shard.
func (s *ShardedCache[V]) Delete(key string) {
	s.shards[s.shardIndex(key)].Delete(key)
}

// Clear clears all shards.
func (s *ShardedCache[V]) Clear() {
	for _, shard := range s.shards {
		shard.Clear()
	}
}

// Len returns the total number of entries across all shards.
func (s *ShardedCache[V]) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// CurrentBytes returns the approximate size of all shards.
func (s *ShardedCache[V]) CurrentBytes() int64 {
	var total int64
	for _, shard := range s.shards {
		total += shard.CurrentBytes()
	}
	return total
}

// Save saves all shards to a writer as one flat entry list.
func (s *ShardedCache[V]) Save(w io.Writer) error {
	var all []Entry[V]
	for _, shard := range s.shards {
		shard.mu.RLock()
		all = append(all, shard.entries()...)
		shard.mu.RUnlock()
	}
	return msgpack.NewEncoder(w).Encode(all)
}

// Load loads entries from a reader, routing each to its shard. The shard
// count may differ from the one that saved the file.
func (s *ShardedCache[V]) Load(r io.Reader) error {
	var all []Entry[V]
	if err := msgpack.NewDecoder(r).Decode(&all); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	perShard := make([][]Entry[V], len(s.shards))
	for _, entry := range all {
		idx := s.shardIndex(entry.Key)
		perShard[idx] = append(perShard[idx], entry)
	}
	for i, shard := range s.shards {
		shard.mu.Lock()
		shard.restore(perShard[i])
		shard.mu.Unlock()
	}
	return nil
}

var (
	_ Cache[string] = (*LRUCache[string])(nil)
	_ Cache[string] = (*StatsCache[string])(nil)
	_ Cache[string] = (*ShardedCache[string])(nil)
)
