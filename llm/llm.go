// Package llm provides a uniform chat-completion interface over the
// heterogeneous vendor APIs supported by Homewright (OpenAI, Anthropic,
// Gemini, Ollama). Every adapter normalizes its vendor's wire format into
// the Message/Response types defined here.
package llm

import (
	"context"
	"fmt"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Message roles shared by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the normalized request unit passed to every adapter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage tracks token consumption as reported by the vendor.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized result every adapter must produce regardless
// of vendor wire format.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamEvent is one element of a streaming response. Exactly one field is
// set: Delta for an incremental text chunk, Response for the terminal
// assembled result, Err for a terminal failure. A stream always ends with
// either a Response event or an Err event before the channel closes.
type StreamEvent struct {
	Delta    string
	Response *Response
	Err      error
}

// ProviderConfig is constructed per-request from the user's chat settings
// plus environment-held API keys. It is never persisted.
type ProviderConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Provider is implemented by each vendor adapter.
type Provider interface {
	// GenerateResponse makes exactly one completion call and returns the
	// normalized result.
	GenerateResponse(ctx context.Context, messages []Message) (Response, error)

	// StreamResponse makes one streaming completion call. The returned
	// channel delivers delta events followed by a terminal Response or Err
	// event, then closes.
	StreamResponse(ctx context.Context, messages []Message) <-chan StreamEvent

	// Validate makes a lightweight call to test the configured credentials.
	// It reports false instead of returning an error so callers can use it
	// directly in settings screens.
	Validate(ctx context.Context) bool
}

// ValidateMessages enforces the shared input contract: the sequence must be
// non-empty and every role must be one of system, user, assistant.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
	}
	return nil
}

// SplitSystem extracts system-role messages from a sequence and returns the
// joined system text plus the remaining messages. Several vendors take the
// system instruction as a separate request field rather than a message in
// the array.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
