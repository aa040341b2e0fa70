package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	"why/internal/usage"
)

// DefaultMemoryEntries is the in-memory front size when none is configured.
const DefaultMemoryEntries = 4096

// ScanCache is a usage.Cache backed by the scan_cache table with an LRU of
// recently used entries in front. Site lists are stored as zstd-compressed
// JSON.
type ScanCache struct {
	db  *DB
	mem *lru.Cache[usage.CacheKey, []usage.Match]

	enc *zstd.Encoder
	dec *zstd.Decoder

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness for one ScanCache.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"` // rows on disk
}

// NewScanCache wraps db. memoryEntries <= 0 selects DefaultMemoryEntries.
func NewScanCache(db *DB, memoryEntries int) (*ScanCache, error) {
	if memoryEntries <= 0 {
		memoryEntries = DefaultMemoryEntries
	}
	mem, err := lru.New[usage.CacheKey, []usage.Match](memoryEntries)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ScanCache{db: db, mem: mem, enc: enc, dec: dec}, nil
}

// Get implements usage.Cache.
func (c *ScanCache) Get(ctx context.Context, key usage.CacheKey) ([]usage.Match, bool, error) {
	if matches, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return matches, true, nil
	}

	var blob []byte
	err := c.db.QueryRow(ctx, `
		SELECT matches
		FROM scan_cache
		WHERE path = ? AND content_hash = ? AND fingerprint = ?
	`, key.Path, key.Hash, key.Fingerprint).Scan(&blob)
	if err == sql.ErrNoRows {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("scan cache lookup failed: %w", err)
	}

	matches, err := c.decode(blob)
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("scan cache entry for %s is corrupt: %w", key.Path, err)
	}

	c.mem.Add(key, matches)
	c.hits.Add(1)
	return matches, true, nil
}

// Put implements usage.Cache. A file has one row; a new hash replaces it.
func (c *ScanCache) Put(ctx context.Context, key usage.CacheKey, matches []usage.Match) error {
	blob, err := c.encode(matches)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(ctx, `
		INSERT OR REPLACE INTO scan_cache (path, content_hash, fingerprint, match_count, matches, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.Path, key.Hash, key.Fingerprint, len(matches), blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write scan cache: %w", err)
	}

	c.mem.Add(key, matches)
	return nil
}

// Prune deletes rows for paths not in keep. It is called with the
// files of a completed scan so rows for deleted files do not accumulate.
func (c *ScanCache) Prune(ctx context.Context, keep []string) (int64, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, p := range keep {
		keepSet[p] = true
	}

	rows, err := c.db.Query(ctx, "SELECT path FROM scan_cache")
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if !keepSet[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var removed int64
	err = c.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, p := range stale {
			res, err := tx.ExecContext(ctx, "DELETE FROM scan_cache WHERE path = ?", p)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range c.mem.Keys() {
		if !keepSet[k.Path] {
			c.mem.Remove(k)
		}
	}
	c.db.logger.Debug("Pruned scan cache", "removed", removed)
	return removed, nil
}

// Clear drops every cached entry.
func (c *ScanCache) Clear(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, "DELETE FROM scan_cache"); err != nil {
		return fmt.Errorf("failed to clear scan cache: %w", err)
	}
	c.mem.Purge()
	return nil
}

// Stats returns hit and miss counters since creation and the row count.
func (c *ScanCache) Stats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	err := c.db.QueryRow(ctx, "SELECT COUNT(*) FROM scan_cache").Scan(&stats.Entries)
	return stats, err
}

// Close releases the codec resources. The DB is closed by its owner.
func (c *ScanCache) Close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *ScanCache) encode(matches []usage.Match) ([]byte, error) {
	if matches == nil {
		matches = []usage.Match{}
	}
	raw, err := json.Marshal(matches)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *ScanCache) decode(blob []byte) ([]usage.Match, error) {
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, err
	}
	var matches []usage.Match
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}
