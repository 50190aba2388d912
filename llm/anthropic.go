package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicMessagesPath   = "/v1/messages"
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultMaxTokens = 1024
)

// Anthropic Messages API wire types. Unlike the OpenAI shape, the system
// instruction is a top-level field and must not appear in the messages
// array.

type anthropicMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// Streaming SSE event types.
const (
	anthropicEventMessageStart      = "message_start"
	anthropicEventMessageDelta      = "message_delta"
	anthropicEventMessageStop       = "message_stop"
	anthropicEventContentBlockDelta = "content_block_delta"
)

// Anthropic implements Provider for the Anthropic Messages API.
type Anthropic struct {
	config ProviderConfig
	client *http.Client
}

func NewAnthropic(cfg ProviderConfig) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Provider: ProviderAnthropic, Reason: "missing API key"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(ProviderAnthropic)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultBaseURL
	}
	return &Anthropic{config: cfg, client: http.DefaultClient}, nil
}

func (p *Anthropic) GenerateResponse(ctx context.Context, messages []Message) (Response, error) {
	if err := ValidateMessages(messages); err != nil {
		return Response{}, err
	}

	body, err := p.do(ctx, p.buildRequest(messages, false))
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Response{}, &TransportError{Provider: ProviderAnthropic, Err: err}
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := Response{
		Content:      text.String(),
		Model:        resp.Model,
		FinishReason: resp.StopReason,
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	if out.Model == "" {
		out.Model = p.config.Model
	}
	return out, nil
}

func (p *Anthropic) StreamResponse(ctx context.Context, messages []Message) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		if err := ValidateMessages(messages); err != nil {
			events <- StreamEvent{Err: err}
			return
		}

		body, err := p.do(ctx, p.buildRequest(messages, true))
		if err != nil {
			events <- StreamEvent{Err: err}
			return
		}
		defer body.Close()

		var content strings.Builder
		model := p.config.Model
		stopReason := ""
		usage := Usage{}
		done := false

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var raw struct {
				Type    string `json:"type"`
				Message *struct {
					Model string         `json:"model"`
					Usage anthropicUsage `json:"usage"`
				} `json:"message"`
				Delta json.RawMessage `json:"delta"`
				Usage *anthropicUsage `json:"usage"`
			}
			if err := json.Unmarshal([]byte(data), &raw); err != nil {
				continue
			}

			switch raw.Type {
			case anthropicEventMessageStart:
				if raw.Message != nil {
					if raw.Message.Model != "" {
						model = raw.Message.Model
					}
					usage.PromptTokens = raw.Message.Usage.InputTokens
				}

			case anthropicEventContentBlockDelta:
				var delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				}
				json.Unmarshal(raw.Delta, &delta)
				if delta.Type == "text_delta" && delta.Text != "" {
					content.WriteString(delta.Text)
					events <- StreamEvent{Delta: delta.Text}
				}

			case anthropicEventMessageDelta:
				var delta struct {
					StopReason string `json:"stop_reason"`
				}
				json.Unmarshal(raw.Delta, &delta)
				if delta.StopReason != "" {
					stopReason = delta.StopReason
				}
				if raw.Usage != nil {
					usage.CompletionTokens = raw.Usage.OutputTokens
				}

			case anthropicEventMessageStop:
				done = true
			}
			if done {
				break
			}
		}

		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: &TransportError{Provider: ProviderAnthropic, Err: err}}
			return
		}
		if !done {
			events <- StreamEvent{Err: &TransportError{
				Provider: ProviderAnthropic,
				Err:      fmt.Errorf("stream ended before message_stop"),
			}}
			return
		}

		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		events <- StreamEvent{Response: &Response{
			Content:      content.String(),
			Model:        model,
			Usage:        &usage,
			FinishReason: stopReason,
		}}
	}()

	return events
}

// Validate requests a 1-token completion, the cheapest call that exercises
// the key.
func (p *Anthropic) Validate(ctx context.Context) bool {
	req := anthropicRequest{
		Model:     p.config.Model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: RoleUser, Content: "ping"}},
	}
	body, err := p.do(ctx, req)
	if err != nil {
		return false
	}
	body.Close()
	return true
}

// buildRequest relocates system-role messages into the top-level system
// field and merges consecutive same-role messages, since the API requires
// strictly alternating user/assistant roles.
func (p *Anthropic) buildRequest(messages []Message, stream bool) anthropicRequest {
	system, rest := SplitSystem(messages)

	var msgs []anthropicMessage
	for _, m := range rest {
		if len(msgs) > 0 && msgs[len(msgs)-1].Role == m.Role {
			msgs[len(msgs)-1].Content += "\n\n" + m.Content
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	req := anthropicRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		Messages:  msgs,
		System:    system,
		Stream:    stream,
	}
	if p.config.Temperature != 0 {
		t := p.config.Temperature
		req.Temperature = &t
	}
	return req
}

func (p *Anthropic) do(ctx context.Context, reqBody anthropicRequest) (io.ReadCloser, error) {
	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+anthropicMessagesPath, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: ProviderAnthropic, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
