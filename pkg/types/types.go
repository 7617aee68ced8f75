package types

// ContextKey is the type for request-scoped values stored in a context.
type ContextKey string

const (
	// ContextKeyUserID holds the id of the user the request acts for.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID holds the client session id, when provided.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource names the entry point (server, cli).
	ContextKeyRequestSource ContextKey = "request_source"
	// ContextKeyRunID holds the id of the current materialization run.
	ContextKeyRunID ContextKey = "run_id"
)

// Role is the author of a chat message.
type Role string

// Message is a single chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports the tokens consumed by one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a language model completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}
