package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOllama_Defaults(t *testing.T) {
	p, err := NewOllama(ProviderConfig{Provider: ProviderOllama})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	if p.config.BaseURL != "http://localhost:11434" {
		t.Errorf("base URL = %q", p.config.BaseURL)
	}
	if p.config.Model != DefaultModel(ProviderOllama) {
		t.Errorf("model = %q", p.config.Model)
	}
}

func TestOllama_GenerateResponse(t *testing.T) {
	var captured ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("local server should receive no auth header")
		}
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama2",
			Message:         ollamaMessage{Role: "assistant", Content: "hello"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	p, err := NewOllama(ProviderConfig{Provider: ProviderOllama, Model: "llama2", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	resp, err := p.GenerateResponse(context.Background(), []Message{
		{Role: RoleSystem, Content: "stay on topic"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	if captured.Stream {
		t.Error("non-streaming call should set stream=false")
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != RoleSystem {
		t.Errorf("expected leading system message, got %+v", captured.Messages)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 3 || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOllama_StreamResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("streaming call should set stream=true")
		}
		// newline-delimited JSON, not SSE
		w.Write([]byte(`{"model":"llama2","message":{"role":"assistant","content":"hel"},"done":false}` + "\n"))
		w.Write([]byte(`{"model":"llama2","message":{"role":"assistant","content":"lo"},"done":false}` + "\n"))
		w.Write([]byte(`{"model":"llama2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":9,"eval_count":2}` + "\n"))
	}))
	defer server.Close()

	p, err := NewOllama(ProviderConfig{Provider: ProviderOllama, Model: "llama2", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

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
		t.Fatalf("deltas = %d, want 2", len(deltas))
	}
	if final == nil {
		t.Fatal("stream ended without terminal response")
	}
	if final.Content != "hello" {
		t.Errorf("content = %q", final.Content)
	}
	if final.FinishReason != "stop" {
		t.Errorf("finish_reason = %q", final.FinishReason)
	}
	if final.Usage == nil || final.Usage.TotalTokens != 11 {
		t.Errorf("usage = %+v", final.Usage)
	}
}

func TestOllama_StreamWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"partial"},"done":false}` + "\n"))
	}))
	defer server.Close()

	p, err := NewOllama(ProviderConfig{Provider: ProviderOllama, BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	var sawErr bool
	for ev := range p.StreamResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}) {
		if ev.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Error("stream without a done message should surface an error")
	}
}

func TestOllama_Validate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, err := NewOllama(ProviderConfig{Provider: ProviderOllama, BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	if !p.Validate(context.Background()) {
		t.Error("expected reachable server to validate")
	}
}
