package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAIAgainst(t *testing.T, url string) *OpenAI {
	t.Helper()
	p, err := NewOpenAI(ProviderConfig{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		APIKey:      "sk-test",
		BaseURL:     url,
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	return p
}

func TestOpenAI_GenerateResponse(t *testing.T) {
	var captured openAIRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(openAIResponse{
			Model: "gpt-4o-mini",
			Choices: []openAIChoice{{
				Message:      openAIMessage{Role: "assistant", Content: "hello"},
				FinishReason: "stop",
			}},
			Usage: &openAIUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		})
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	resp, err := p.GenerateResponse(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != RoleSystem || captured.Messages[0].Content != "be brief" {
		t.Errorf("system message should lead the array, got %+v", captured.Messages[0])
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q, want hello", resp.Content)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", resp.Model)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 12 {
		t.Errorf("usage not normalized: %+v", resp.Usage)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish_reason = %q", resp.FinishReason)
	}
}

func TestOpenAI_CollapsesScatteredSystemMessages(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(openAIResponse{
			Choices: []openAIChoice{{Message: openAIMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	_, err := p.GenerateResponse(context.Background(), []Message{
		{Role: RoleSystem, Content: "A"},
		{Role: RoleUser, Content: "U"},
		{Role: RoleSystem, Content: "B"},
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	systems := 0
	for _, m := range captured.Messages {
		if m.Role == RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("expected exactly one system message, got %d", systems)
	}
	if captured.Messages[0].Content != "A\n\nB" {
		t.Errorf("system content = %q, want joined instructions", captured.Messages[0].Content)
	}
}

func TestOpenAI_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	_, err := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", provErr.StatusCode)
	}
}

func TestOpenAI_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	p := newOpenAIAgainst(t, server.URL)
	_, err := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	var transErr *TransportError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestOpenAI_EmptyMessages(t *testing.T) {
	p := newOpenAIAgainst(t, "http://unused.invalid")
	if _, err := p.GenerateResponse(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestOpenAI_StreamResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"model":"gpt-4o-mini","choices":[{"delta":{"content":"hel"},"finish_reason":null}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	var deltas []string
	var final *Response
	for ev := range p.StreamResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}) {
		switch {
		case ev.Err != nil:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		case ev.Response != nil:
			final = ev.Response
		default:
			deltas = append(deltas, ev.Delta)
		}
	}

	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	if final == nil {
		t.Fatal("stream ended without terminal response")
	}
	if final.Content != "hello" {
		t.Errorf("assembled content = %q", final.Content)
	}
	if final.FinishReason != "stop" {
		t.Errorf("finish_reason = %q", final.FinishReason)
	}
}

func TestOpenAI_StreamAbruptEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n\n"))
		// no [DONE]
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	var sawErr bool
	for ev := range p.StreamResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}) {
		if ev.Err != nil {
			sawErr = true
		}
		if ev.Response != nil {
			t.Error("abrupt stream must not produce a terminal response")
		}
	}
	if !sawErr {
		t.Error("abrupt stream end should surface an error event")
	}
}

func TestOpenAI_Validate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newOpenAIAgainst(t, server.URL)
	if !p.Validate(context.Background()) {
		t.Error("expected valid key to validate")
	}
}
