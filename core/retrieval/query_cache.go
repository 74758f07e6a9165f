package retrieval

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/etherealheim/aria/core/memory"
)

// cachedResult holds one retrieval result set with its expiry.
type cachedResult struct {
	messages []memory.RetrievedMessage
	expires  time.Time
}

// queryCache memoizes retrieval results for repeated queries. Entries
// expire after the configured TTL; eviction beyond capacity is LRU.
type queryCache struct {
	entries *lru.Cache[string, cachedResult]
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func newQueryCache(size int, ttl time.Duration) (*queryCache, error) {
	entries, err := lru.New[string, cachedResult](size)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &queryCache{entries: entries, ttl: ttl}, nil
}

// cacheKey normalizes the query and folds in the parameters that change
// the result set.
func cacheKey(query string, limit int, threshold float64) string {
	return fmt.Sprintf("%s|%d|%.4f", strings.ToLower(strings.TrimSpace(query)), limit, threshold)
}

func (c *queryCache) Get(key string, now time.Time) ([]memory.RetrievedMessage, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if now.After(entry.expires) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.messages, true
}

func (c *queryCache) Put(key string, messages []memory.RetrievedMessage, now time.Time) {
	c.entries.Add(key, cachedResult{messages: messages, expires: now.Add(c.ttl)})
}

func (c *queryCache) Purge() {
	c.entries.Purge()
}

// CacheStats reports cumulative hit and miss counts.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

func (c *queryCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.entries.Len(),
	}
}
