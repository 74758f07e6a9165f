package memory

import (
	"fmt"
	"time"
)

// Role identifies the author of a stored conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a stored role string onto a Role, defaulting to user.
func ParseRole(value string) Role {
	if value == string(RoleAssistant) {
		return RoleAssistant
	}
	return RoleUser
}

// RetrievalSource records which search stage produced a retrieved message.
type RetrievalSource string

const (
	SourceDense     RetrievalSource = "dense"
	SourceSparse    RetrievalSource = "sparse"
	SourceHybrid    RetrievalSource = "hybrid"
	SourceHeuristic RetrievalSource = "heuristic"
)

// RetrievedMessage is a transient, per-query view of a past message.
// It is never persisted; Score is the fused relevance assigned during
// retrieval and Similarity is cosine similarity when the dense stage
// computed one (0 otherwise).
type RetrievedMessage struct {
	Content    string          `json:"content"`
	Role       Role            `json:"role"`
	Timestamp  string          `json:"timestamp"` // RFC3339
	Similarity float64         `json:"similarity"`
	Score      float64         `json:"score"`
	Source     RetrievalSource `json:"source"`
}

// Key returns the deduplication identity of the message.
func (m *RetrievedMessage) Key() string {
	return fmt.Sprintf("%s:%s:%s", m.Role, m.Timestamp, m.Content)
}

// StoredMessage is a persisted conversation message row.
type StoredMessage struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
	HasEmbedding   bool
}

// Retrieved converts a stored message into a retrieval result with the
// given source tag and scores.
func (m *StoredMessage) Retrieved(source RetrievalSource, similarity, score float64) RetrievedMessage {
	return RetrievedMessage{
		Content:    m.Content,
		Role:       m.Role,
		Timestamp:  m.CreatedAt.Format(time.RFC3339),
		Similarity: similarity,
		Score:      score,
		Source:     source,
	}
}
