// Package cache memoizes retrieval results between store writes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"examprep/internal/adapter/retriever"
	"examprep/internal/domain"
	"examprep/internal/port"
)

// QueryCache is an LRU of search results with a TTL. Each entry remembers
// the store generation it was computed at and is dropped once the store has
// been written since.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	results    []domain.SearchResult
	timestamp  time.Time
	generation uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topK int) string {
	data := []byte(query)
	data = append(data, byte(topK>>24), byte(topK>>16), byte(topK>>8), byte(topK))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns cached results computed at generation.
func (c *QueryCache) Get(query string, topK int, generation uint64) ([]domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.generation != generation {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return cloneResults(entry.results), true
}

// Put stores results computed at generation.
func (c *QueryCache) Put(query string, topK int, generation uint64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	entry := &cacheEntry{
		results:    cloneResults(results),
		timestamp:  c.now(),
		generation: generation,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneResults(results []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.Metadata = r.Metadata.Clone()
		out[i] = r
	}
	return out
}

// Generational is anything that reports a write counter, normally the
// vector store.
type Generational interface {
	Generation() uint64
}

// CachedRetriever serves repeated queries from a QueryCache until the store
// changes. Errors are never cached.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	source    Generational
}

func NewCachedRetriever(r port.Retriever, cache *QueryCache, source Generational) *CachedRetriever {
	return &CachedRetriever{
		retriever: r,
		cache:     cache,
		source:    source,
	}
}

func (r *CachedRetriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return retriever.Texts(results), nil
}

func (r *CachedRetriever) SearchResults(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	gen := r.source.Generation()
	if results, hit := r.cache.Get(query, k, gen); hit {
		return results, nil
	}

	results, err := r.retriever.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, k, gen, results)
	return results, nil
}
