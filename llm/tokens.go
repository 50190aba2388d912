package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder lookups are expensive (tiktoken loads vocabulary files), so keep
// one encoder per model for the life of the process.
var (
	encMu   sync.Mutex
	encoders = make(map[string]*tiktoken.Tiktoken)
)

// CountTokens counts the tokens in text using the tokenizer for model.
// Models tiktoken does not know (Anthropic, Gemini, local Ollama models)
// fall back to the cl100k_base encoding, and if even that fails to load the
// character heuristic is used.
func CountTokens(model, text string) int {
	enc := encoderFor(model)
	if enc == nil {
		return EstimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateTokens approximates a token count as ceil(len/4), the rule of
// thumb used when a vendor response carries no usage block.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func encoderFor(model string) *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()

	if enc, ok := encoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encoders[model] = nil
			return nil
		}
	}
	encoders[model] = enc
	return enc
}
