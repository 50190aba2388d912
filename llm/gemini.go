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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// Gemini generateContent wire types. Roles are "user" and "model", the
// system instruction is a dedicated field, and the key travels as a query
// parameter rather than a header.

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
	ModelVersion  string               `json:"modelVersion"`
}

// Gemini implements Provider for the Generative Language API.
type Gemini struct {
	config ProviderConfig
	client *http.Client
}

func NewGemini(cfg ProviderConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Provider: ProviderGemini, Reason: "missing API key"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(ProviderGemini)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	return &Gemini{config: cfg, client: http.DefaultClient}, nil
}

func (p *Gemini) GenerateResponse(ctx context.Context, messages []Message) (Response, error) {
	if err := ValidateMessages(messages); err != nil {
		return Response{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.config.BaseURL, p.config.Model, p.config.APIKey)

	body, err := p.do(ctx, url, p.buildRequest(messages))
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Response{}, &TransportError{Provider: ProviderGemini, Err: err}
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Response{}, fmt.Errorf("response contained no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	out := Response{
		Content:      text.String(),
		Model:        p.config.Model,
		FinishReason: resp.Candidates[0].FinishReason,
	}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (p *Gemini) StreamResponse(ctx context.Context, messages []Message) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		if err := ValidateMessages(messages); err != nil {
			events <- StreamEvent{Err: err}
			return
		}

		url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
			p.config.BaseURL, p.config.Model, p.config.APIKey)

		body, err := p.do(ctx, url, p.buildRequest(messages))
		if err != nil {
			events <- StreamEvent{Err: err}
			return
		}
		defer body.Close()

		var content strings.Builder
		finishReason := ""
		var usage *Usage

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				continue
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						content.WriteString(part.Text)
						events <- StreamEvent{Delta: part.Text}
					}
				}
				if cand.FinishReason != "" {
					finishReason = cand.FinishReason
				}
			}
			if chunk.UsageMetadata != nil {
				usage = &Usage{
					PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
					CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
				}
			}
		}

		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Err: &TransportError{Provider: ProviderGemini, Err: err}}
			return
		}
		// Gemini's SSE stream has no explicit terminator; a stream that
		// produced no finish reason ended abruptly.
		if finishReason == "" {
			events <- StreamEvent{Err: &TransportError{
				Provider: ProviderGemini,
				Err:      fmt.Errorf("stream ended without a finish reason"),
			}}
			return
		}

		events <- StreamEvent{Response: &Response{
			Content:      content.String(),
			Model:        p.config.Model,
			Usage:        usage,
			FinishReason: finishReason,
		}}
	}()

	return events
}

// Validate lists models with the configured key.
func (p *Gemini) Validate(ctx context.Context) bool {
	url := fmt.Sprintf("%s/v1beta/models?key=%s", p.config.BaseURL, p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

// buildRequest maps assistant messages to the "model" role and moves system
// messages into systemInstruction.
func (p *Gemini) buildRequest(messages []Message) geminiRequest {
	system, rest := SplitSystem(messages)

	contents := make([]geminiContent, 0, len(rest))
	for _, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	req := geminiRequest{Contents: contents}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	genCfg := geminiGenerationConfig{}
	if p.config.Temperature != 0 {
		t := p.config.Temperature
		genCfg.Temperature = &t
	}
	if p.config.MaxTokens > 0 {
		m := p.config.MaxTokens
		genCfg.MaxOutputTokens = &m
	}
	if genCfg.Temperature != nil || genCfg.MaxOutputTokens != nil {
		req.GenerationConfig = &genCfg
	}
	return req
}

func (p *Gemini) do(ctx context.Context, url string, reqBody geminiRequest) (io.ReadCloser, error) {
	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: ProviderGemini, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: ProviderGemini, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
