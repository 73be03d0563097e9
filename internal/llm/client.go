// Package llm wraps the external answer-generation collaborator.
package llm

import "context"

// Roles understood by chat-completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// Response is the model's reply.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client generates an answer from a prompt. Implementations are opaque
// services; the engine never inspects how the answer is produced.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
