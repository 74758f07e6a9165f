package storage

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/etherealheim/aria/core/memory"
)

// DefaultDocCacheSize bounds the number of messages cached alongside the
// keyword index.
const DefaultDocCacheSize = 10000

// BleveIndex is the subset of bleve operations the keyword index needs,
// kept as an interface so tests can substitute an in-memory fake.
type BleveIndex interface {
	Index(id string, data interface{}) error
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)
	Delete(id string) error
	Close() error
}

// keywordDocument is the shape indexed in bleve. Fields are stored so a
// hit can be materialized even after a cache eviction.
type keywordDocument struct {
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
}

// KeywordIndex provides BM25-style lexical search over stored messages.
// It maintains an LRU cache of indexed messages so search hits resolve
// without a database round-trip in the common case.
type KeywordIndex struct {
	index BleveIndex
	mu    sync.RWMutex

	docCache *lru.Cache[string, *memory.StoredMessage]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// KeywordIndexConfig configures a KeywordIndex.
type KeywordIndexConfig struct {
	// Path is the on-disk bleve index location. Empty means in-memory.
	Path string

	// Index overrides the bleve backend; used by tests.
	Index BleveIndex

	// CacheSize bounds the document cache. <= 0 uses the default.
	CacheSize int
}

// OpenKeywordIndex opens or creates the keyword index.
func OpenKeywordIndex(cfg KeywordIndexConfig) (*KeywordIndex, error) {
	backend := cfg.Index
	if backend == nil {
		index, err := openBleve(cfg.Path)
		if err != nil {
			return nil, err
		}
		backend = index
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultDocCacheSize
	}

	ki := &KeywordIndex{index: backend}
	cache, err := lru.NewWithEvict[string, *memory.StoredMessage](cacheSize, func(string, *memory.StoredMessage) {
		ki.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("create doc cache: %w", err)
	}
	ki.docCache = cache
	return ki, nil
}

func openBleve(path string) (bleve.Index, error) {
	mapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Store = true
	doc.AddFieldMappingsAt("content", content)

	role := bleve.NewKeywordFieldMapping()
	role.Store = true
	doc.AddFieldMappingsAt("role", role)

	timestamp := bleve.NewKeywordFieldMapping()
	timestamp.Store = true
	doc.AddFieldMappingsAt("timestamp", timestamp)

	mapping.DefaultMapping = doc

	if path == "" {
		index, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return index, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		return index, nil
	}

	index, err := bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return index, nil
}

// Close closes the underlying bleve index.
func (ki *KeywordIndex) Close() error {
	return ki.index.Close()
}

// IndexMessage adds a message to the lexical index and the doc cache.
func (ki *KeywordIndex) IndexMessage(msg *memory.StoredMessage) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message must have an ID")
	}
	doc := keywordDocument{
		Content:   msg.Content,
		Role:      string(msg.Role),
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
	}
	ki.mu.Lock()
	defer ki.mu.Unlock()
	if err := ki.index.Index(msg.ID, doc); err != nil {
		return fmt.Errorf("index message %s: %w", msg.ID, err)
	}
	ki.docCache.Add(msg.ID, msg)
	return nil
}

// DeleteMessage removes a message from the index and cache.
func (ki *KeywordIndex) DeleteMessage(id string) error {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	if err := ki.index.Delete(id); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	ki.docCache.Remove(id)
	return nil
}

// SearchKeyword runs an OR-of-terms query-string search and returns
// matches ranked by BM25-style score, descending.
func (ki *KeywordIndex) SearchKeyword(queryString string, limit int) ([]memory.RetrievedMessage, error) {
	if queryString == "" || limit <= 0 {
		return nil, nil
	}
	query := bleve.NewQueryStringQuery(queryString)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"content", "role", "timestamp"}

	ki.mu.RLock()
	result, err := ki.index.Search(req)
	ki.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]memory.RetrievedMessage, 0, len(result.Hits))
	for _, hit := range result.Hits {
		retrieved := memory.RetrievedMessage{
			Score:  hit.Score,
			Source: memory.SourceSparse,
		}
		if msg, ok := ki.docCache.Get(hit.ID); ok {
			ki.hits.Add(1)
			retrieved.Content = msg.Content
			retrieved.Role = msg.Role
			retrieved.Timestamp = msg.CreatedAt.Format(time.RFC3339)
		} else {
			ki.misses.Add(1)
			retrieved.Content = stringField(hit.Fields, "content")
			retrieved.Role = memory.ParseRole(stringField(hit.Fields, "role"))
			retrieved.Timestamp = stringField(hit.Fields, "timestamp")
		}
		if retrieved.Content == "" {
			continue
		}
		results = append(results, retrieved)
	}
	return results, nil
}

// CacheStats reports doc cache hit/miss/eviction counters.
func (ki *KeywordIndex) CacheStats() (hits, misses, evictions int64) {
	return ki.hits.Load(), ki.misses.Load(), ki.evictions.Load()
}

func stringField(fields map[string]interface{}, name string) string {
	if fields == nil {
		return ""
	}
	if value, ok := fields[name].(string); ok {
		return value
	}
	return ""
}
