package llm

import (
	"fmt"
	"sync"
)

// Default models per provider, used when chat settings carry no model.
var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderOllama:    "llama2",
}

// DefaultModel returns the default model for a provider, or "" for unknown
// providers.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// SupportedProviders lists the provider names the factory accepts.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama}
}

// Factory creates and caches provider adapters. Adapters hold no mutable
// per-call state beyond their configuration, so a cached instance is safe to
// share across concurrent requests. The factory is an owned value wired in
// by the composition root rather than a package-level singleton, so tests
// can construct isolated caches.
type Factory struct {
	mu    sync.RWMutex
	cache map[string]Provider
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{cache: make(map[string]Provider)}
}

// GetProvider returns a cached adapter for the configuration, constructing
// one on first use. Two calls with identical configuration return the same
// instance.
func (f *Factory) GetProvider(cfg ProviderConfig) (Provider, error) {
	key := cacheKey(cfg)

	f.mu.RLock()
	p, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := f.CreateProvider(cfg)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another request may have raced us here; prefer the instance already
	// cached so reference equality holds for callers.
	if existing, ok := f.cache[key]; ok {
		return existing, nil
	}
	f.cache[key] = p
	return p, nil
}

// CreateProvider constructs an uncached adapter. Used internally and by
// credential-validation paths that must not pollute the cache.
func (f *Factory) CreateProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderGemini:
		return NewGemini(cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider}
	}
}

// Clear drops all cached instances. Used in tests and after credential
// rotation.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]Provider)
}

// Evict removes the cached instance for one configuration.
func (f *Factory) Evict(cfg ProviderConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, cacheKey(cfg))
}

// cacheKey identifies an adapter configuration. Only a short non-reversible
// prefix of the API key participates, so keys never leak into logs or
// debugging output through the cache.
func cacheKey(cfg ProviderConfig) string {
	prefix := cfg.APIKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s|%s|%s|%s|%g|%d",
		cfg.Provider, cfg.Model, prefix, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens)
}
