package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/etherealheim/aria/core/memory"
)

// Store is the persistence surface the engine retrieves against.
// storage.Manager satisfies it.
type Store interface {
	SearchSimilar(embedding []float32, limit int) ([]memory.RetrievedMessage, error)
	SearchKeyword(query string, limit int) ([]memory.RetrievedMessage, error)
	CountMissingEmbeddings() (int, error)
	LoadMissingEmbeddings(limit int) ([]memory.StoredMessage, error)
	WriteEmbedding(id string, embedding []float32) error
	LoadRecentUserMessages(limit int) ([]memory.StoredMessage, error)
}

// Embedder produces a dense vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the retrieval pipeline. Zero values are replaced with
// defaults by NewEngine.
type Config struct {
	// RRFK is the rank-smoothing constant in the reciprocal rank
	// fusion formula 1/(k+rank).
	RRFK float64

	// BackfillThreshold is the missing-embedding count at which an
	// opportunistic backfill runs ahead of the dense pass.
	BackfillThreshold int

	// BackfillBatch bounds how many messages one backfill embeds.
	BackfillBatch int

	// RecentUserLimit bounds how many recent user messages the profile
	// heuristic scans for fact candidates.
	RecentUserLimit int

	// MinEmbedLength and MaxEmbedLength bound the text passed to the
	// embedder during backfill.
	MinEmbedLength int
	MaxEmbedLength int

	// CacheSize and CacheTTL configure the query result cache.
	CacheSize int
	CacheTTL  time.Duration
}

func (c *Config) applyDefaults() {
	if c.RRFK == 0 {
		c.RRFK = 60
	}
	if c.BackfillThreshold == 0 {
		c.BackfillThreshold = 10
	}
	if c.BackfillBatch == 0 {
		c.BackfillBatch = 50
	}
	if c.RecentUserLimit == 0 {
		c.RecentUserLimit = 50
	}
	if c.MinEmbedLength == 0 {
		c.MinEmbedLength = 10
	}
	if c.MaxEmbedLength == 0 {
		c.MaxEmbedLength = 2000
	}
	if c.CacheSize == 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Engine fuses dense vector search, sparse keyword search, and a
// profile heuristic into one ranked result list. Every stage degrades
// on failure; Retrieve never errors, it only returns fewer results.
type Engine struct {
	store    Store
	embedder Embedder
	cache    *queryCache
	config   Config
	logger   *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine builds a retrieval engine. embedder may be nil, in which
// case dense search is skipped and results come from the sparse and
// heuristic passes only.
func NewEngine(store Store, embedder Embedder, config Config, logger *slog.Logger) (*Engine, error) {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := newQueryCache(config.CacheSize, config.CacheTTL)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		cache:    cache,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Retrieve runs the full pipeline for a query. similarityThreshold
// filters dense-only results; sparse, hybrid, and heuristic results are
// exempt because their scores are not cosine similarities.
func (e *Engine) Retrieve(ctx context.Context, query string, limit int, similarityThreshold float64) []memory.RetrievedMessage {
	if limit <= 0 {
		return nil
	}
	key := cacheKey(query, limit, similarityThreshold)
	if cached, ok := e.cache.Get(key, e.now()); ok {
		return cached
	}

	dense := e.denseSearch(ctx, query, limit)
	sparse := e.sparseSearch(query, limit)
	fused := e.fuse(dense, sparse, limit)

	if IsProfileQuery(query) {
		fused = e.mergeProfileCandidates(fused, limit)
	}

	filtered := fused[:0:0]
	for _, msg := range fused {
		if msg.Source == memory.SourceDense && msg.Similarity <= similarityThreshold {
			continue
		}
		filtered = append(filtered, msg)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	e.cache.Put(key, filtered, e.now())
	return filtered
}

// InvalidateCache drops all cached query results. Call after ingesting
// new messages so stale result sets do not mask them.
func (e *Engine) InvalidateCache() {
	e.cache.Purge()
}

// CacheStats reports query cache hit and miss counts.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// ============================================================
// Dense pass
// ============================================================

func (e *Engine) denseSearch(ctx context.Context, query string, limit int) []memory.RetrievedMessage {
	if e.embedder == nil {
		return nil
	}
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, skipping dense search", "error", err)
		return nil
	}

	missing, err := e.store.CountMissingEmbeddings()
	if err != nil {
		e.logger.Warn("missing-embedding count failed", "error", err)
		missing = 0
	}
	if missing >= e.config.BackfillThreshold {
		e.backfillEmbeddings(ctx)
	}

	results := e.runDense(embedding, limit)
	if len(results) == 0 && missing > 0 {
		// Cold start: embed whatever is pending, however few, and try
		// the dense search once more.
		e.backfillEmbeddings(ctx)
		results = e.runDense(embedding, limit)
	}
	return results
}

func (e *Engine) runDense(embedding []float32, limit int) []memory.RetrievedMessage {
	results, err := e.store.SearchSimilar(embedding, limit)
	if err != nil {
		e.logger.Warn("dense search failed", "error", err)
		return nil
	}
	return results
}

// backfillEmbeddings embeds a batch of stored messages that have no
// vector yet, oldest first. Callers decide when a backfill is worth
// running; this only does the work.
func (e *Engine) backfillEmbeddings(ctx context.Context) {
	batch, err := e.store.LoadMissingEmbeddings(e.config.BackfillBatch)
	if err != nil {
		e.logger.Warn("embedding backfill load failed", "error", err)
		return
	}
	written := 0
	for _, msg := range batch {
		text := PrepareEmbeddingText(msg.Content, e.config.MinEmbedLength, e.config.MaxEmbedLength)
		if text == "" {
			continue
		}
		embedding, err := e.embedder.Embed(ctx, text)
		if err != nil {
			e.logger.Warn("backfill embedding failed", "id", msg.ID, "error", err)
			continue
		}
		if err := e.store.WriteEmbedding(msg.ID, embedding); err != nil {
			e.logger.Warn("backfill write failed", "id", msg.ID, "error", err)
			continue
		}
		written++
	}
	e.logger.Debug("embedding backfill complete", "batch", len(batch), "written", written)
}

// ============================================================
// Sparse pass
// ============================================================

func (e *Engine) sparseSearch(query string, limit int) []memory.RetrievedMessage {
	keywordQuery := BuildKeywordQuery(query)
	if keywordQuery == "" {
		return nil
	}
	results, err := e.store.SearchKeyword(keywordQuery, limit)
	if err != nil {
		e.logger.Warn("keyword search failed", "error", err)
		return nil
	}
	for i := range results {
		results[i].Source = memory.SourceSparse
	}
	return results
}

// ============================================================
// Fusion
// ============================================================

// fuse merges the dense and sparse result lists with reciprocal rank
// fusion: each list contributes 1/(k+rank) per entry, ranks starting at
// 1. Entries present in both lists sum contributions and are tagged
// Hybrid. Ties keep insertion order, dense list first. The merged list
// is cut to limit here, before the profile and threshold stages see it.
func (e *Engine) fuse(dense, sparse []memory.RetrievedMessage, limit int) []memory.RetrievedMessage {
	type fusedEntry struct {
		msg      memory.RetrievedMessage
		score    float64
		inDense  bool
		inSparse bool
	}

	var order []string
	entries := make(map[string]*fusedEntry)

	for rank, msg := range dense {
		key := msg.Key()
		entry, ok := entries[key]
		if !ok {
			entry = &fusedEntry{msg: msg}
			entries[key] = entry
			order = append(order, key)
		}
		entry.score += 1 / (e.config.RRFK + float64(rank+1))
		entry.inDense = true
	}
	for rank, msg := range sparse {
		key := msg.Key()
		entry, ok := entries[key]
		if !ok {
			entry = &fusedEntry{msg: msg}
			entries[key] = entry
			order = append(order, key)
		}
		entry.score += 1 / (e.config.RRFK + float64(rank+1))
		entry.inSparse = true
	}

	fused := make([]memory.RetrievedMessage, 0, len(order))
	for _, key := range order {
		entry := entries[key]
		msg := entry.msg
		msg.Score = entry.score
		switch {
		case entry.inDense && entry.inSparse:
			msg.Source = memory.SourceHybrid
		case entry.inDense:
			msg.Source = memory.SourceDense
		default:
			msg.Source = memory.SourceSparse
		}
		fused = append(fused, msg)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// ============================================================
// Profile heuristic
// ============================================================

// mergeProfileCandidates handles profile queries. When recent user
// messages contain first-person fact statements, the fused list is
// narrowed to entries that are themselves preference statements and the
// candidates are appended behind them with a small fixed score, so they
// break ties without outranking genuine hybrid matches. Without
// candidates the fused list passes through untouched.
func (e *Engine) mergeProfileCandidates(fused []memory.RetrievedMessage, limit int) []memory.RetrievedMessage {
	recent, err := e.store.LoadRecentUserMessages(e.config.RecentUserLimit)
	if err != nil {
		e.logger.Warn("profile candidate load failed", "error", err)
		return fused
	}
	var candidates []memory.RetrievedMessage
	for _, msg := range recent {
		if IsProfileFactCandidate(msg.Content) {
			candidates = append(candidates, msg.Retrieved(memory.SourceHeuristic, 0, 0.01))
		}
	}
	if len(candidates) == 0 {
		return fused
	}

	merged := fused[:0:0]
	seen := make(map[string]bool)
	for _, msg := range fused {
		if !IsProfileFactCandidate(msg.Content) {
			continue
		}
		merged = append(merged, msg)
		seen[msg.Key()] = true
	}
	for _, candidate := range candidates {
		if len(merged) >= limit {
			break
		}
		if seen[candidate.Key()] {
			continue
		}
		seen[candidate.Key()] = true
		merged = append(merged, candidate)
	}
	return merged
}
