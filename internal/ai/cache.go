package ai

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
	Level   string `json:"level"` // "L1", "L2", "multi"
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// CacheLayer is the interface for all cache levels. Values are the raw JSON
// payloads extracted from LLM responses.
type CacheLayer interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value json.RawMessage)
	Clear()
	Stats() CacheStats
}

type cacheEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// MemoryCache is an in-memory L1 LFU cache.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	maxSize  int
	ttl      time.Duration
	hitCount map[string]int
	order    []string
	hits     int64
	misses   int64
}

// NewMemoryCache creates a new in-memory LFU cache.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]*cacheEntry),
		maxSize:  maxSize,
		ttl:      ttl,
		hitCount: make(map[string]int),
		order:    make([]string, 0, maxSize),
	}
}

// Get retrieves a cached value if it exists and hasn't expired.
func (m *MemoryCache) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		m.misses++
		return nil, false
	}
	m.hitCount[key]++
	m.hits++
	return entry.value, true
}

// Set stores a value, evicting the least frequently used entry at capacity.
func (m *MemoryCache) Set(key string, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize && m.entries[key] == nil {
		m.evictLFU()
	}
	m.entries[key] = &cacheEntry{value: value, expiresAt: time.Now().Add(m.ttl)}
	m.hitCount[key] = 0
	m.order = append(m.order, key)
}

func (m *MemoryCache) evictLFU() {
	if len(m.entries) == 0 {
		return
	}
	var minKey string
	minCount := int(^uint(0) >> 1)
	for _, key := range m.order {
		if count, ok := m.hitCount[key]; ok && count < minCount {
			minKey = key
			minCount = count
		}
	}
	if minKey != "" {
		delete(m.entries, minKey)
		delete(m.hitCount, minKey)
	}
	newOrder := make([]string, 0, len(m.order))
	for _, k := range m.order {
		if _, ok := m.entries[k]; ok {
			newOrder = append(newOrder, k)
		}
	}
	m.order = newOrder
}

// Clear removes all entries.
func (m *MemoryCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*cacheEntry)
	m.hitCount = make(map[string]int)
	m.order = make([]string, 0, m.maxSize)
}

// Stats returns current performance metrics for this layer.
func (m *MemoryCache) Stats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CacheStats{Hits: m.hits, Misses: m.misses, Size: len(m.entries), MaxSize: m.maxSize, Level: "L1"}
}

// MultiLevelCache chains cache layers. Get checks layers in order and
// backfills upper layers on a lower-level hit; Set and Clear touch every
// layer. Readers never block writers beyond the per-layer locks.
type MultiLevelCache struct {
	layers []CacheLayer
	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewMultiLevelCache creates a cache that checks layers in order (first = L1).
func NewMultiLevelCache(layers ...CacheLayer) *MultiLevelCache {
	return &MultiLevelCache{layers: layers}
}

func (c *MultiLevelCache) Get(key string) (json.RawMessage, bool) {
	for i, layer := range c.layers {
		if val, ok := layer.Get(key); ok {
			for j := 0; j < i; j++ {
				c.layers[j].Set(key, val)
			}
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return val, true
		}
	}
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

func (c *MultiLevelCache) Set(key string, value json.RawMessage) {
	for _, layer := range c.layers {
		layer.Set(key, value)
	}
}

func (c *MultiLevelCache) Clear() {
	for _, layer := range c.layers {
		layer.Clear()
	}
}

func (c *MultiLevelCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	totalSize := 0
	for _, layer := range c.layers {
		totalSize += layer.Stats().Size
	}
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: totalSize, Level: "multi"}
}

// MakeCacheKey builds the cache key op:model:pv:hash where hash is the
// SHA256 of the canonical prompt payload.
func MakeCacheKey(operation, model, promptVersion string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s:%x", operation, model, promptVersion, hash[:]), nil
}
