package llm

import "fmt"

// ConfigurationError indicates missing or malformed credentials. It is
// raised before any network call is made and is never worth retrying; the
// user has to fix their settings.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Provider, e.Reason)
}

// UnsupportedProviderError is returned by the factory for provider names it
// does not recognize.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %q", e.Provider)
}

// ProviderError carries a non-2xx vendor response. The status code and raw
// body are kept for diagnostics.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// TransportError wraps a network-level failure (connection refused, timeout,
// interrupted stream). Safe to retry, though the orchestrator leaves that to
// the user.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
