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
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIChatPath       = "/v1/chat/completions"
	openAIModelsPath     = "/v1/models"
)

// OpenAI chat-completions wire types. The same shapes serve any
// OpenAI-compatible endpoint reached via a custom base URL.

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

type openAIStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

// OpenAI implements Provider for the OpenAI chat-completions API.
type OpenAI struct {
	config ProviderConfig
	client *http.Client
}

// NewOpenAI builds an OpenAI adapter. The API key is checked here so a
// misconfiguration fails before any network call.
func NewOpenAI(cfg ProviderConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Provider: ProviderOpenAI, Reason: "missing API key"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(ProviderOpenAI)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIDefaultBaseURL
	}
	return &OpenAI{config: cfg, client: http.DefaultClient}, nil
}

func (p *OpenAI) GenerateResponse(ctx context.Context, messages []Message) (Response, error) {
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
		return Response{}, &TransportError{Provider: ProviderOpenAI, Err: err}
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("response contained no choices")
	}

	out := Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
	}
	if out.Model == "" {
		out.Model = p.config.Model
	}
	if resp.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (p *OpenAI) StreamResponse(ctx context.Context, messages []Message) <-chan StreamEvent {
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
		finishReason := ""
		model := p.config.Model
		var usage *Usage
		done := false

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				done = true
				break
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage != nil {
				usage = &Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			for _, c := range chunk.Choices {
				if c.Delta.Content != "" {
					content.WriteString(c.Delta.Content)
					events <- StreamEvent{Delta: c.Delta.Content}
				}
				if c.FinishReason != nil && *c.FinishReason != "" {
					finishReason = *c.FinishReason
				}
			}
		}

		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: &TransportError{Provider: ProviderOpenAI, Err: err}}
			return
		}
		if !done {
			events <- StreamEvent{Err: &TransportError{
				Provider: ProviderOpenAI,
				Err:      fmt.Errorf("stream ended before completion"),
			}}
			return
		}

		events <- StreamEvent{Response: &Response{
			Content:      content.String(),
			Model:        model,
			Usage:        usage,
			FinishReason: finishReason,
		}}
	}()

	return events
}

// Validate lists models, which needs nothing beyond a working key.
func (p *OpenAI) Validate(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+openAIModelsPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *OpenAI) buildRequest(messages []Message, stream bool) openAIRequest {
	// The API accepts system messages inline, but only one logical system
	// instruction is meaningful; collapse any scattered ones into a single
	// leading message.
	system, rest := SplitSystem(messages)

	out := make([]openAIMessage, 0, len(rest)+1)
	if system != "" {
		out = append(out, openAIMessage{Role: RoleSystem, Content: system})
	}
	for _, m := range rest {
		out = append(out, openAIMessage{Role: m.Role, Content: m.Content})
	}

	req := openAIRequest{
		Model:    p.config.Model,
		Messages: out,
		Stream:   stream,
	}
	if p.config.Temperature != 0 {
		t := p.config.Temperature
		req.Temperature = &t
	}
	if p.config.MaxTokens > 0 {
		m := p.config.MaxTokens
		req.MaxTokens = &m
	}
	return req
}

// do posts the request and maps failures onto the error taxonomy. On
// success the caller owns the returned body.
func (p *OpenAI) do(ctx context.Context, reqBody openAIRequest) (io.ReadCloser, error) {
	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+openAIChatPath, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: ProviderOpenAI, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
