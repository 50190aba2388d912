package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaChatPath       = "/api/chat"
	ollamaTagsPath       = "/api/tags"
)

// Ollama /api/chat wire types. Local server, no auth. Streaming responses
// are newline-delimited JSON objects rather than SSE.

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Ollama implements Provider for a local Ollama server.
type Ollama struct {
	config ProviderConfig
	client *http.Client
}

// NewOllama builds an Ollama adapter. No API key is required.
func NewOllama(cfg ProviderConfig) (*Ollama, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(ProviderOllama)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	return &Ollama{config: cfg, client: http.DefaultClient}, nil
}

func (p *Ollama) GenerateResponse(ctx context.Context, messages []Message) (Response, error) {
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
		return Response{}, &TransportError{Provider: ProviderOllama, Err: err}
	}

	var resp ollamaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := Response{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
	}
	if out.Model == "" {
		out.Model = p.config.Model
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
	}
	return out, nil
}

func (p *Ollama) StreamResponse(ctx context.Context, messages []Message) <-chan StreamEvent {
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

		var content []byte
		model := p.config.Model
		doneReason := ""
		var usage *Usage
		done := false

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			var chunk ollamaResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Message.Content != "" {
				content = append(content, chunk.Message.Content...)
				events <- StreamEvent{Delta: chunk.Message.Content}
			}
			if chunk.Done {
				done = true
				doneReason = chunk.DoneReason
				if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
					usage = &Usage{
						PromptTokens:     chunk.PromptEvalCount,
						CompletionTokens: chunk.EvalCount,
						TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
					}
				}
				break
			}
		}

		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: &TransportError{Provider: ProviderOllama, Err: err}}
			return
		}
		if !done {
			events <- StreamEvent{Err: &TransportError{
				Provider: ProviderOllama,
				Err:      fmt.Errorf("stream ended before done message"),
			}}
			return
		}

		events <- StreamEvent{Response: &Response{
			Content:      string(content),
			Model:        model,
			Usage:        usage,
			FinishReason: doneReason,
		}}
	}()

	return events
}

// Validate checks that the server is reachable by listing local models.
func (p *Ollama) Validate(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+ollamaTagsPath, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Ollama) buildRequest(messages []Message, stream bool) ollamaRequest {
	// Ollama accepts system messages inline; collapse them into a single
	// leading one like the other adapters.
	system, rest := SplitSystem(messages)

	msgs := make([]ollamaMessage, 0, len(rest)+1)
	if system != "" {
		msgs = append(msgs, ollamaMessage{Role: RoleSystem, Content: system})
	}
	for _, m := range rest {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	req := ollamaRequest{
		Model:    p.config.Model,
		Messages: msgs,
		Stream:   stream,
	}

	opts := ollamaOptions{}
	if p.config.Temperature != 0 {
		t := p.config.Temperature
		opts.Temperature = &t
	}
	if p.config.MaxTokens > 0 {
		n := p.config.MaxTokens
		opts.NumPredict = &n
	}
	if opts.Temperature != nil || opts.NumPredict != nil {
		req.Options = &opts
	}
	return req
}

func (p *Ollama) do(ctx context.Context, reqBody ollamaRequest) (io.ReadCloser, error) {
	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+ollamaChatPath, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: ProviderOllama, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: ProviderOllama, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
