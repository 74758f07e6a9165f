package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/etherealheim/aria/core/memory"
	"github.com/etherealheim/aria/core/temporal"
)

// Sentinel bounds used when a range query should cover every row.
var (
	minStoredDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxStoredDate = time.Date(9000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Manager fronts the SQLite message store and the bleve keyword index
// with a single handle. Writes from this subsystem are limited to message
// ingest and embedding backfill; conflicting writes are serialized by
// SQLite itself.
type Manager struct {
	messages *MessageStore
	keywords *KeywordIndex
	logger   *slog.Logger
}

// ManagerConfig configures a storage Manager.
type ManagerConfig struct {
	// Dir is the data directory; the message database and keyword index
	// live under it.
	Dir string

	// KeywordCacheSize bounds the keyword index doc cache.
	KeywordCacheSize int

	Logger *slog.Logger
}

// OpenManager opens the message store and keyword index under cfg.Dir.
func OpenManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	messages, err := OpenMessageStore(filepath.Join(cfg.Dir, "messages.db"))
	if err != nil {
		return nil, err
	}
	keywords, err := OpenKeywordIndex(KeywordIndexConfig{
		Path:      filepath.Join(cfg.Dir, "keywords.bleve"),
		CacheSize: cfg.KeywordCacheSize,
	})
	if err != nil {
		messages.Close()
		return nil, err
	}
	return &Manager{messages: messages, keywords: keywords, logger: logger}, nil
}

// Close closes both backends, reporting the first failure.
func (m *Manager) Close() error {
	keywordErr := m.keywords.Close()
	messageErr := m.messages.Close()
	if messageErr != nil {
		return messageErr
	}
	return keywordErr
}

// Messages exposes the underlying message store.
func (m *Manager) Messages() *MessageStore {
	return m.messages
}

// Ingest persists a message and indexes it for lexical search. The
// embedding may be nil; the retrieval engine backfills it later.
func (m *Manager) Ingest(msg *memory.StoredMessage, embedding []float32) (string, error) {
	id, err := m.messages.InsertMessage(msg, embedding)
	if err != nil {
		return "", err
	}
	if err := m.keywords.IndexMessage(msg); err != nil {
		// The row is durable; a missing index entry only degrades sparse
		// recall for this message.
		m.logger.Warn("keyword indexing failed", "message_id", id, "error", err)
	}
	return id, nil
}

// IngestSummary persists a conversation summary.
func (m *Manager) IngestSummary(conversationID, content string) (string, error) {
	return m.messages.InsertSummary(conversationID, content)
}

// ReindexAll rebuilds the keyword index from every stored message.
func (m *Manager) ReindexAll() (int, error) {
	all, err := m.messages.LoadMessagesInRange(temporal.DateRange{
		Start: minStoredDate, End: maxStoredDate,
	})
	if err != nil {
		return 0, fmt.Errorf("load messages for reindex: %w", err)
	}
	indexed := 0
	for i := range all {
		if err := m.keywords.IndexMessage(&all[i]); err != nil {
			m.logger.Warn("reindex failed", "message_id", all[i].ID, "error", err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

// SearchSimilar implements dense search for the retrieval engine.
func (m *Manager) SearchSimilar(embedding []float32, limit int) ([]memory.RetrievedMessage, error) {
	return m.messages.SearchSimilar(embedding, limit)
}

// SearchKeyword implements sparse search for the retrieval engine.
func (m *Manager) SearchKeyword(queryString string, limit int) ([]memory.RetrievedMessage, error) {
	return m.keywords.SearchKeyword(queryString, limit)
}

// CountMissingEmbeddings implements embedding maintenance.
func (m *Manager) CountMissingEmbeddings() (int, error) {
	return m.messages.CountMissingEmbeddings()
}

// LoadMissingEmbeddings implements embedding maintenance.
func (m *Manager) LoadMissingEmbeddings(limit int) ([]memory.StoredMessage, error) {
	return m.messages.LoadMissingEmbeddings(limit)
}

// WriteEmbedding implements embedding maintenance.
func (m *Manager) WriteEmbedding(id string, embedding []float32) error {
	return m.messages.UpdateEmbedding(id, embedding)
}

// LoadRecentUserMessages implements the profile heuristic data source.
func (m *Manager) LoadRecentUserMessages(limit int) ([]memory.StoredMessage, error) {
	return m.messages.LoadRecentUserMessages(limit)
}
