package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/homewright/homewright/llm"
	"github.com/homewright/homewright/stores"
)

// Defaults used when a (project, user) pair has no chat settings yet.
const (
	DefaultProvider              = llm.ProviderOpenAI
	DefaultChatModel             = "gpt-4o-mini"
	DefaultTemperature           = 0.7
	DefaultMaxTokens             = 1000
	DefaultMaxConversationLength = 50
)

// defaultSystemPrompt grounds the assistant in the app's purpose when the
// user has not set their own.
const defaultSystemPrompt = "You are a helpful assistant for a home-construction " +
	"documentation project. Answer questions using the project data provided in " +
	"the context when available."

// ProviderSource yields an adapter for a configuration. *llm.Factory
// satisfies it; tests substitute stubs.
type ProviderSource interface {
	GetProvider(cfg llm.ProviderConfig) (llm.Provider, error)
}

// Orchestrator runs one chat turn end to end: resolve settings, build
// context, load history, call the provider, persist both sides of the
// exchange.
//
// Concurrent turns against the same conversation are not serialized; the
// chat UI's single-flight send button is what prevents interleaved history.
type Orchestrator struct {
	store     stores.ChatStore
	contexts  *ContextBuilder
	providers ProviderSource
	logger    *zap.Logger

	// lookupAPIKey resolves the API key for a provider from process-wide
	// configuration. Overridable in tests.
	lookupAPIKey func(provider string) string
}

// NewOrchestrator wires an orchestrator over its collaborators.
func NewOrchestrator(store stores.ChatStore, contexts *ContextBuilder, providers ProviderSource, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:        store,
		contexts:     contexts,
		providers:    providers,
		logger:       logger,
		lookupAPIKey: apiKeyFromEnv,
	}
}

// TurnResult is what a completed turn hands back to the API layer.
type TurnResult struct {
	Message *stores.Message `json:"message"`
	Usage   *llm.Usage      `json:"usage,omitempty"`
}

// messageMetadata is the opaque blob stored alongside assistant messages.
type messageMetadata struct {
	Model        string     `json:"model"`
	Usage        *llm.Usage `json:"usage,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ProcessMessage runs one complete turn for a user message. The user's
// message is persisted before the provider is called so it survives a
// failed generation; a provider failure propagates as a typed error with no
// automatic retry.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userMessage, userID, projectID string) (*TurnResult, error) {
	settings, cfg, err := o.prepare(projectID, userID)
	if err != nil {
		return nil, err
	}

	outbound, err := o.assemble(settings, conversationID, userMessage, projectID)
	if err != nil {
		return nil, err
	}

	userMsg := &stores.Message{
		ConversationID: conversationID,
		Role:           llm.RoleUser,
		Content:        userMessage,
		TokenCount:     llm.CountTokens(cfg.Model, userMessage),
	}
	if err := o.store.SaveMessage(userMsg); err != nil {
		return nil, err
	}

	provider, err := o.providers.GetProvider(cfg)
	if err != nil {
		return nil, err
	}
	resp, err := provider.GenerateResponse(ctx, outbound)
	if err != nil {
		return nil, err
	}

	return o.persistAssistant(conversationID, resp), nil
}

// StreamMessage is the streaming variant of ProcessMessage. It performs the
// same preparation and user-message persistence up front, then returns the
// provider's event stream; the accumulated assistant message is persisted
// when the terminal response event arrives.
func (o *Orchestrator) StreamMessage(ctx context.Context, conversationID, userMessage, userID, projectID string) (<-chan llm.StreamEvent, error) {
	settings, cfg, err := o.prepare(projectID, userID)
	if err != nil {
		return nil, err
	}

	outbound, err := o.assemble(settings, conversationID, userMessage, projectID)
	if err != nil {
		return nil, err
	}

	userMsg := &stores.Message{
		ConversationID: conversationID,
		Role:           llm.RoleUser,
		Content:        userMessage,
		TokenCount:     llm.CountTokens(cfg.Model, userMessage),
	}
	if err := o.store.SaveMessage(userMsg); err != nil {
		return nil, err
	}

	provider, err := o.providers.GetProvider(cfg)
	if err != nil {
		return nil, err
	}

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		for ev := range provider.StreamResponse(ctx, outbound) {
			if ev.Response != nil {
				o.persistAssistant(conversationID, *ev.Response)
			}
			events <- ev
		}
	}()
	return events, nil
}

// ResolveSettings loads the chat settings for a (project, user) pair,
// creating a row with documented defaults when none exists. A creation
// failure is fatal: no turn can proceed without a configuration.
func (o *Orchestrator) ResolveSettings(projectID, userID string) (*stores.ChatSettings, error) {
	settings, err := o.store.GetSettings(projectID, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	settings = &stores.ChatSettings{
		ProjectID:             projectID,
		UserID:                userID,
		Provider:              DefaultProvider,
		ChatModel:             DefaultChatModel,
		Temperature:           DefaultTemperature,
		MaxTokens:             DefaultMaxTokens,
		RestrictToProjectData: true,
		MaxConversationLength: DefaultMaxConversationLength,
	}
	if err := o.store.CreateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// prepare resolves settings and builds the transient provider config,
// failing when the configured provider has no API key available.
func (o *Orchestrator) prepare(projectID, userID string) (*stores.ChatSettings, llm.ProviderConfig, error) {
	settings, err := o.ResolveSettings(projectID, userID)
	if err != nil {
		return nil, llm.ProviderConfig{}, err
	}

	apiKey := o.lookupAPIKey(settings.Provider)
	if apiKey == "" && settings.Provider != llm.ProviderOllama {
		return nil, llm.ProviderConfig{}, &llm.ConfigurationError{
			Provider: settings.Provider,
			Reason:   "provider not configured: no API key available",
		}
	}

	cfg := llm.ProviderConfig{
		Provider:    settings.Provider,
		Model:       settings.ChatModel,
		APIKey:      apiKey,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}
	if settings.Provider == llm.ProviderOllama {
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return settings, cfg, nil
}

// assemble builds the outbound message sequence: system prompt, project
// context (best-effort, when the settings restrict answers to project
// data), the bounded history tail, and the new user message.
func (o *Orchestrator) assemble(settings *stores.ChatSettings, conversationID, userMessage, projectID string) ([]llm.Message, error) {
	var outbound []llm.Message

	systemPrompt := settings.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	outbound = append(outbound, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	if settings.RestrictToProjectData {
		if projectContext := o.contexts.Build(projectID, userMessage); projectContext != "" {
			outbound = append(outbound, llm.Message{
				Role:    llm.RoleSystem,
				Content: "Project context:\n" + projectContext,
			})
		}
	}

	history, err := o.store.FetchHistory(conversationID, settings.MaxConversationLength)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	for _, m := range history {
		switch m.Role {
		case llm.RoleUser, llm.RoleAssistant:
			outbound = append(outbound, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	outbound = append(outbound, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return outbound, nil
}

// persistAssistant stores the assistant's reply with its metadata. When the
// write fails the generated content is still returned to the caller: the
// user should see the answer they paid for, durability loss is logged.
func (o *Orchestrator) persistAssistant(conversationID string, resp llm.Response) *TurnResult {
	usage := resp.Usage
	if usage == nil {
		completion := llm.EstimateTokens(resp.Content)
		usage = &llm.Usage{CompletionTokens: completion, TotalTokens: completion}
	}

	meta, err := json.Marshal(messageMetadata{
		Model:        resp.Model,
		Usage:        usage,
		FinishReason: resp.FinishReason,
	})
	if err != nil {
		o.logger.Warn("failed to marshal assistant metadata", zap.Error(err))
		meta = []byte("{}")
	}

	assistantMsg := &stores.Message{
		ConversationID: conversationID,
		Role:           llm.RoleAssistant,
		Content:        resp.Content,
		MetadataJSON:   string(meta),
		TokenCount:     usage.CompletionTokens,
	}
	if err := o.store.SaveMessage(assistantMsg); err != nil {
		o.logger.Error("assistant message generated but not persisted",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}

	return &TurnResult{Message: assistantMsg, Usage: usage}
}

// apiKeyFromEnv maps a provider name to its environment-held API key.
// Ollama runs locally and needs none.
func apiKeyFromEnv(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}
