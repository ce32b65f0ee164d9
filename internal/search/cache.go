package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/historian-labs/historian/internal/rank"
)

// DefaultCacheSize and DefaultCacheTTL match spec.md §4.6's "~100-entry,
// 5-minute TTL" query result cache.
const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 5 * time.Minute
)

// resultCache caches fused Results by (normalized query, opts). It is
// invalidated wholesale on Put and Delete.
type resultCache struct {
	lru *expirable.LRU[string, []Result]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{lru: expirable.NewLRU[string, []Result](size, nil, ttl)}
}

func (c *resultCache) key(query string, opts Options) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	combined := fmt.Sprintf("%s\x00%s\x00%d\x00%.4f\x00%.4f", normalized, opts.Mode, opts.K, opts.MinSimilarity, opts.Alpha)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(query string, opts Options) ([]Result, bool) {
	return c.lru.Get(c.key(query, opts))
}

func (c *resultCache) put(query string, opts Options, results []Result) {
	c.lru.Add(c.key(query, opts), results)
}

func (c *resultCache) clear() {
	c.lru.Purge()
}

// embeddingCache caches semantic candidate lists under a hash of the query
// embedding, so repeated queries that embed to the same vector (e.g. across
// mode=semantic and mode=hybrid calls) skip the passage scan.
type embeddingCache struct {
	lru *expirable.LRU[string, []rank.SemanticResult]
}

func newEmbeddingCache(size int, ttl time.Duration) *embeddingCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &embeddingCache{lru: expirable.NewLRU[string, []rank.SemanticResult](size, nil, ttl)}
}

func (c *embeddingCache) key(vec []float32) string {
	var b strings.Builder
	for _, f := range vec {
		fmt.Fprintf(&b, "%x,", f)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c *embeddingCache) get(vec []float32) ([]rank.SemanticResult, bool) {
	return c.lru.Get(c.key(vec))
}

func (c *embeddingCache) put(vec []float32, results []rank.SemanticResult) {
	c.lru.Add(c.key(vec), results)
}

func (c *embeddingCache) clear() {
	c.lru.Purge()
}
