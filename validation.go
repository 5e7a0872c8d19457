package storygen

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrPromptTooLong   = errors.New("prompt exceeds maximum length")
	ErrNilSchema       = errors.New("schema cannot be nil")
	ErrSchemaNotObject = errors.New("structured output schema must be an object")
)

const (
	// MaxPromptRunes caps a single prompt; longer prompts are rejected
	// before reaching the network.
	MaxPromptRunes = 100_000

	// GeminiKeyPrefix is the fixed prefix of Google API keys.
	GeminiKeyPrefix = "AIza"
)

// ValidatePrompt validates a text prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	if n := len([]rune(prompt)); n > MaxPromptRunes {
		return fmt.Errorf("%w: %d runes (max %d)", ErrPromptTooLong, n, MaxPromptRunes)
	}
	return nil
}

// ValidateSchema validates a structured output schema.
func ValidateSchema(schema *Schema) error {
	if schema == nil {
		return ErrNilSchema
	}
	if schema.Type != TypeObject {
		return fmt.Errorf("%w: got %q", ErrSchemaNotObject, schema.Type)
	}
	return nil
}

// ValidateCredential checks the format of an API key for providers that
// have a known key format. Only the primary provider is checked; other
// providers accept any non-empty key.
func ValidateCredential(provider Provider, apiKey string) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredential, provider)
	}

	if provider != ProviderGemini {
		return nil
	}

	if !strings.HasPrefix(key, GeminiKeyPrefix) {
		return fmt.Errorf("%w: %s key must start with %q", ErrInvalidCredential, provider, GeminiKeyPrefix)
	}
	return nil
}
