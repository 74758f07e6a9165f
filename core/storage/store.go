package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"
	_ "modernc.org/sqlite"

	"github.com/etherealheim/aria/core/memory"
	"github.com/etherealheim/aria/core/temporal"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	embedding       BLOB
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_role ON messages(role);

CREATE TABLE IF NOT EXISTS summaries (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_created ON summaries(created_at);
`

// MessageStore persists conversation messages and their embeddings in
// SQLite. Dense similarity search scans embedded rows and ranks them by
// cosine similarity; callers that need lexical search go through the
// keyword index instead.
type MessageStore struct {
	db *sql.DB
}

// OpenMessageStore opens (creating if needed) the message database.
func OpenMessageStore(dbPath string) (*MessageStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open message db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate message db: %w", err)
	}
	return &MessageStore{db: db}, nil
}

// Close closes the underlying database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// InsertMessage persists a message, assigning an ID and timestamp when
// absent. The embedding may be nil; backfill picks it up later.
func (s *MessageStore) InsertMessage(msg *memory.StoredMessage, embedding []float32) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var blob any
	if len(embedding) > 0 {
		blob = encodeEmbedding(embedding)
		msg.HasEmbedding = true
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, created_at, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		formatStoredTime(msg.CreatedAt), blob,
	)
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return msg.ID, nil
}

// GetMessage loads a single message by ID.
func (s *MessageStore) GetMessage(id string) (*memory.StoredMessage, error) {
	row := s.db.QueryRow(
		`SELECT id, conversation_id, role, content, created_at, embedding IS NOT NULL
		 FROM messages WHERE id = ?`, id,
	)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// SearchSimilar ranks embedded messages by cosine similarity against the
// query embedding, descending, and returns the top limit results.
func (s *MessageStore) SearchSimilar(embedding []float32, limit int) ([]memory.RetrievedMessage, error) {
	if len(embedding) == 0 || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, created_at, embedding
		 FROM messages WHERE embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("load embedded messages: %w", err)
	}
	defer rows.Close()

	queryNorm := vectorNorm(embedding)
	if queryNorm == 0 {
		return nil, nil
	}

	var results []memory.RetrievedMessage
	for rows.Next() {
		var msg memory.StoredMessage
		var role, created string
		var blob []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &created, &blob); err != nil {
			return nil, fmt.Errorf("scan embedded message: %w", err)
		}
		candidate := decodeEmbedding(blob)
		if len(candidate) != len(embedding) {
			continue
		}
		norm := vectorNorm(candidate)
		if norm == 0 {
			continue
		}
		similarity := float64(vek32.Dot(embedding, candidate)) / (queryNorm * norm)
		msg.Role = memory.ParseRole(role)
		msg.CreatedAt = parseStoredTime(created)
		results = append(results, msg.Retrieved(memory.SourceDense, similarity, similarity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded messages: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CountMissingEmbeddings returns how many messages still lack embeddings.
func (s *MessageStore) CountMissingEmbeddings() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE embedding IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count missing embeddings: %w", err)
	}
	return count, nil
}

// LoadMissingEmbeddings returns the oldest messages without embeddings,
// up to limit.
func (s *MessageStore) LoadMissingEmbeddings(limit int) ([]memory.StoredMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, created_at, 0
		 FROM messages WHERE embedding IS NULL ORDER BY created_at ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load missing embeddings: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// UpdateEmbedding writes the embedding for an existing message.
func (s *MessageStore) UpdateEmbedding(id string, embedding []float32) error {
	result, err := s.db.Exec(
		`UPDATE messages SET embedding = ? WHERE id = ?`, encodeEmbedding(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("update embedding %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("update embedding %s: message not found", id)
	}
	return nil
}

// LoadRecentUserMessages returns the most recent user-authored messages,
// newest first.
func (s *MessageStore) LoadRecentUserMessages(limit int) ([]memory.StoredMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, created_at, embedding IS NOT NULL
		 FROM messages WHERE role = ? ORDER BY created_at DESC LIMIT ?`,
		string(memory.RoleUser), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load recent user messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// LoadMessagesInRange returns messages created inside the inclusive date
// range, oldest first.
func (s *MessageStore) LoadMessagesInRange(r temporal.DateRange) ([]memory.StoredMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, created_at, embedding IS NOT NULL
		 FROM messages WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`,
		formatStoredTime(r.Start),
		formatStoredTime(r.End.AddDate(0, 0, 1)),
	)
	if err != nil {
		return nil, fmt.Errorf("load messages in range: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// InsertSummary persists a conversation summary.
func (s *MessageStore) InsertSummary(conversationID, content string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO summaries (id, conversation_id, content, created_at) VALUES (?, ?, ?, ?)`,
		id, conversationID, content, formatStoredTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}
	return id, nil
}

// LoadSummariesInRange returns summaries created inside the inclusive
// date range, oldest first.
func (s *MessageStore) LoadSummariesInRange(r temporal.DateRange) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT content FROM summaries WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC`,
		formatStoredTime(r.Start),
		formatStoredTime(r.End.AddDate(0, 0, 1)),
	)
	if err != nil {
		return nil, fmt.Errorf("load summaries in range: %w", err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, content)
	}
	return summaries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(scanner rowScanner) (*memory.StoredMessage, error) {
	var msg memory.StoredMessage
	var role, created string
	var hasEmbedding int
	if err := scanner.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &created, &hasEmbedding); err != nil {
		return nil, err
	}
	msg.Role = memory.ParseRole(role)
	msg.CreatedAt = parseStoredTime(created)
	msg.HasEmbedding = hasEmbedding != 0
	return &msg, nil
}

func collectMessages(rows *sql.Rows) ([]memory.StoredMessage, error) {
	var messages []memory.StoredMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// storedTimeFormat pads fractional seconds to a fixed width so that
// string comparison on the created_at column matches chronological
// order.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z"

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

func parseStoredTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Embeddings are stored as little-endian float32 blobs.

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

func vectorNorm(vec []float32) float64 {
	return math.Sqrt(float64(vek32.Dot(vec, vec)))
}
