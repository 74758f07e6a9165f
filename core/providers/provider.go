package providers

import (
	"context"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatClient is the chat-completion capability the memory subsystem
// consumes. Failures are ordinary: callers treat them as "no output this
// cycle" rather than surfacing them.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// Embedder generates text embeddings. The vector dimensionality is fixed
// per deployment and callers must not mix vectors across embedders.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderType identifies a configured provider backend.
type ProviderType string

const (
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeOllama    ProviderType = "ollama"
)

// ErrMissingAPIKey is returned by provider constructors when no
// credential was configured.
var ErrMissingAPIKey = fmt.Errorf("missing API key")
