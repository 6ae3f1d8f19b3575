// Package protocol defines the provider-agnostic conversation types shared by
// every component of the gateway. A Message is a plain {role, content} pair
// independent of any specific LLM wire format; provider clients translate
// between these types and their backend's protocol.
package protocol

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation. Content is untrusted
// text when Role is RoleUser.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ChatRequest is the normalized payload every provider client consumes: an
// ordered message list plus the target model identifier.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ChatResponse is the normalized result of a provider call. TokensUsed sums
// input and output tokens when the backend reports them separately. Model
// echoes the model the backend says it served, which may differ from the
// requested one.
type ChatResponse struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}
