package interfaces

import "context"

// LLMMode identifies the backing provider
type LLMMode string

const (
	LLMModeClaude LLMMode = "claude"
	LLMModeGemini LLMMode = "gemini"
)

// Message represents a single chat turn
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// LLMService abstracts a chat-completion provider
type LLMService interface {
	// Chat sends a conversation and returns the assistant reply text
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the provider is reachable with the configured key
	HealthCheck(ctx context.Context) error

	GetMode() LLMMode

	Close() error
}
