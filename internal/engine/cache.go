package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides 2-tier caching for normalized transcripts:
// L1 in-memory + L2 Redis. L1 is fast but lost on restart.
// L2 survives restarts and is shared with the job queue connection.
var transcriptCache *tieredCache

// Cache metrics — atomic counters for thread-safe access.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// tieredCache implements L1 (memory) + L2 (Redis) caching.
type tieredCache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the 2-tier cache with an already-constructed Redis
// client. rdb can be nil to run L1-only.
func InitCache(rdb *redis.Client, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{rdb: rdb, ttl: ttl, maxEntries: maxEntries, cleanupInterval: cleanupInterval}
	transcriptCache = c
	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", maxEntries))

	go c.cleanupLoop()
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("gd:%x", hash[:12]) // 24-char hex prefix
}

// CacheGetJSON tries L1, then L2, decoding into T. On L2 hit, populates L1.
func CacheGetJSON[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	if transcriptCache == nil {
		cacheMisses.Add(1)
		return zero, false
	}

	// L1 check
	if val, ok := transcriptCache.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			var out T
			if json.Unmarshal(entry.data, &out) == nil {
				slog.Debug("cache: L1 hit", slog.String("key", key))
				cacheHits.Add(1)
				return out, true
			}
		}
		transcriptCache.l1.Delete(key) // expired or corrupt
	}

	// L2 check
	if transcriptCache.rdb != nil {
		data, err := transcriptCache.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var out T
			if json.Unmarshal(data, &out) == nil {
				slog.Debug("cache: L2 hit", slog.String("key", key))
				cacheHits.Add(1)
				transcriptCache.l1.Store(key, &cacheEntry{
					data:      data,
					expiresAt: time.Now().Add(transcriptCache.ttl),
				})
				return out, true
			}
		}
	}

	cacheMisses.Add(1)
	return zero, false
}

// CacheSetJSON stores value in both L1 and L2.
func CacheSetJSON[T any](ctx context.Context, key string, value T) {
	if transcriptCache == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	// Evict if needed before adding
	transcriptCache.evictIfNeeded()

	transcriptCache.l1.Store(key, &cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(transcriptCache.ttl),
	})

	if transcriptCache.rdb != nil {
		if err := transcriptCache.rdb.Set(ctx, key, data, transcriptCache.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then oldest entries if still over limit.
func (c *tieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})

	if count < c.maxEntries {
		return
	}

	// Phase 1: remove expired
	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	if count < c.maxEntries {
		return
	}

	// Phase 2: remove oldest entries until under limit
	var oldest struct {
		key any
		at  time.Time
	}
	for count >= c.maxEntries {
		oldest.key = nil
		oldest.at = time.Now().Add(time.Hour) // far future
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok {
				// Earlier expiry = older entry (since expiry = createdAt + ttl)
				if entry.expiresAt.Before(oldest.at) {
					oldest.key = key
					oldest.at = entry.expiresAt
				}
			}
			return true
		})
		if oldest.key == nil {
			break
		}
		c.l1.Delete(oldest.key)
		count--
	}
}

// cleanupLoop periodically sweeps expired L1 entries.
func (c *tieredCache) cleanupLoop() {
	if c.cleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
