package storygen

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Provider identifies a generation backend.
type Provider string

const (
	// ProviderGemini is the primary provider (Google Gemini API).
	ProviderGemini Provider = "gemini"

	// ProviderDoubao is the secondary provider (Volcengine Ark, "doubao" models).
	ProviderDoubao Provider = "doubao"

	// ProviderErnie is the tertiary provider (Baidu Wenxin workshop).
	ProviderErnie Provider = "ernie"

	// ProviderQwen is the quaternary provider (Alibaba DashScope).
	ProviderQwen Provider = "qwen"

	// ProviderOffline is bound when no backend could be constructed.
	ProviderOffline Provider = "offline"

	ProviderPrimary   = ProviderGemini
	ProviderSecondary = ProviderDoubao
)

// Providers lists the selectable providers in priority order.
var Providers = []Provider{ProviderGemini, ProviderDoubao, ProviderErnie, ProviderQwen}

var providerAliases = map[string]Provider{
	"gemini":     ProviderGemini,
	"google":     ProviderGemini,
	"primary":    ProviderGemini,
	"doubao":     ProviderDoubao,
	"ark":        ProviderDoubao,
	"secondary":  ProviderDoubao,
	"ernie":      ProviderErnie,
	"wenxin":     ProviderErnie,
	"tertiary":   ProviderErnie,
	"qwen":       ProviderQwen,
	"dashscope":  ProviderQwen,
	"quaternary": ProviderQwen,
}

// ParseProvider maps a configured identifier to a Provider.
// Empty or unrecognized identifiers resolve to ProviderPrimary; the second
// return value reports whether the identifier was recognized.
func ParseProvider(s string) (Provider, bool) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ProviderPrimary, false
	}
	return p, true
}

// String returns the provider identifier.
func (p Provider) String() string {
	return string(p)
}

// Namespace returns the logical endpoint namespace of the provider.
func (p Provider) Namespace() string {
	switch p {
	case ProviderDoubao:
		return "ark"
	case ProviderErnie:
		return "ernie"
	case ProviderQwen:
		return "qwen"
	case ProviderGemini:
		return "gemini"
	default:
		return string(p)
	}
}

// ProviderConfig configures a single backend. It is built once at startup
// and treated as immutable afterwards.
type ProviderConfig struct {
	// Provider type
	Provider Provider

	// APIKey for authentication
	APIKey string

	// BaseURL overrides the provider's default endpoint (optional)
	BaseURL string

	// TextModel overrides the default model used for text, chat and JSON
	TextModel string

	// ImageModel overrides the default image model
	ImageModel string

	// ImageSize is passed through to the image endpoint in its own format
	// (e.g. "2K" for Ark, "1024x1024" for Ernie and Qwen)
	ImageSize string

	// Timeout bounds a single HTTP exchange; zero uses the transport default
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// retryable transport failures (5xx, 429, connection errors)
	MaxRetries int

	// HTTPClient replaces the pooled default client (optional)
	HTTPClient *http.Client

	// Logger receives transport retry logs (optional)
	Logger *slog.Logger
}

// ModelOr returns model when set, otherwise fallback.
func ModelOr(model, fallback string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return fallback
}
