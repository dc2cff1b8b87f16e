package ai

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// PersistentCacheConfig holds configuration for the SQLite-backed L2 cache.
type PersistentCacheConfig struct {
	// DBPath is the file path for the SQLite database.
	DBPath string
	// MaxSize is the maximum number of entries to keep. Default 10000.
	MaxSize int
	// TTL is the time-to-live for each entry. Default 24h.
	TTL time.Duration
}

func (c *PersistentCacheConfig) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = ".cache/ai_cache.db"
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 10000
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
}

// PersistentCache is a SQLite-backed L2 cache implementing CacheLayer.
// Writes are serialised through a mutex; stats use atomic counters so
// readers never contend with writers.
type PersistentCache struct {
	db     *sql.DB
	config PersistentCacheConfig
	mu     sync.Mutex // serialises writes and evictions
	hits   atomic.Int64
	misses atomic.Int64
	closed atomic.Bool
}

// NewPersistentCache opens (or creates) the SQLite database at
// config.DBPath, creating parent directories as needed.
func NewPersistentCache(config PersistentCacheConfig) (*PersistentCache, error) {
	config.applyDefaults()

	dir := filepath.Dir(config.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache_persistent: create dir %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("cache_persistent: open db: %w", err)
	}
	// A single connection serialises all access to the database file.
	db.SetMaxOpenConns(1)

	if err := initCacheSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PersistentCache{db: db, config: config}, nil
}

func initCacheSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key          TEXT    PRIMARY KEY,
		value        BLOB    NOT NULL,
		expires_at   INTEGER NOT NULL,
		created_at   INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("cache_persistent: create table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at)`)
	if err != nil {
		return fmt.Errorf("cache_persistent: create index: %w", err)
	}
	return nil
}

// Get retrieves a cached value if present and unexpired.
func (p *PersistentCache) Get(key string) (json.RawMessage, bool) {
	if p.closed.Load() {
		return nil, false
	}
	var value []byte
	var expiresAt int64
	err := p.db.QueryRow(
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err != nil || time.Now().Unix() > expiresAt {
		p.misses.Add(1)
		return nil, false
	}

	p.mu.Lock()
	_, _ = p.db.Exec(`UPDATE cache_entries SET access_count = access_count + 1 WHERE key = ?`, key)
	p.mu.Unlock()

	p.hits.Add(1)
	return json.RawMessage(value), true
}

// Set upserts an entry and evicts the least-accessed rows when over capacity.
func (p *PersistentCache) Set(key string, value json.RawMessage) {
	if p.closed.Load() {
		return
	}
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = p.db.Exec(
		`INSERT INTO cache_entries (key, value, expires_at, created_at, access_count)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, []byte(value), now.Add(p.config.TTL).Unix(), now.Unix(),
	)

	var count int
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err == nil && count > p.config.MaxSize {
		_, _ = p.db.Exec(
			`DELETE FROM cache_entries WHERE key IN (
				SELECT key FROM cache_entries ORDER BY access_count ASC, created_at ASC LIMIT ?
			)`, count-p.config.MaxSize,
		)
	}
}

// Clear removes all entries.
func (p *PersistentCache) Clear() {
	if p.closed.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.db.Exec(`DELETE FROM cache_entries`)
}

// Stats returns current performance metrics for this layer.
func (p *PersistentCache) Stats() CacheStats {
	size := 0
	if !p.closed.Load() {
		_ = p.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&size)
	}
	return CacheStats{
		Hits:    p.hits.Load(),
		Misses:  p.misses.Load(),
		Size:    size,
		MaxSize: p.config.MaxSize,
		Level:   "L2",
	}
}

// Close releases the database handle. Subsequent operations are no-ops.
func (p *PersistentCache) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.db.Close()
}
