package gemini

import "github.com/mhpenta/storygen"

// Model name constants - the actual API model names.
const (
	// APIModelText is used for text, chat and structured output.
	APIModelText = "gemini-2.5-flash"

	// APIModelImage is Gemini 2.5 Flash Image (nano-banana).
	APIModelImage = "gemini-2.5-flash-image"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/"

// Info describes the Gemini backend.
//
// Gemini is the only backend with native multi-turn contents and
// schema-constrained JSON; images come back inline and are rendered as
// data URIs.
var Info = storygen.ProviderInfo{
	Provider:       storygen.ProviderGemini,
	Namespace:      storygen.ProviderGemini.Namespace(),
	TextModel:      APIModelText,
	ImageModel:     APIModelImage,
	DefaultBaseURL: DefaultBaseURL,

	Capabilities: storygen.Capabilities{
		NativeChat:       true,
		NativeStructured: true,
		InlineImages:     true,
	},

	RateLimits: storygen.RateLimits{
		TokensPerMinute:   1000000,
		RequestsPerMinute: 1000,
	},
}
