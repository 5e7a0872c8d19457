package storygen

// Capabilities describes which features a provider supports natively.
type Capabilities struct {
	// NativeChat is true when the provider keeps multi-turn structure in the
	// request itself rather than a flattened prompt.
	NativeChat bool

	// NativeStructured is true when the provider can be asked for
	// schema-constrained JSON output.
	NativeStructured bool

	// InlineImages is true when images come back as bytes (rendered as data
	// URIs) instead of hosted URLs.
	InlineImages bool
}

// RateLimits defines client-side rate limiting parameters for a provider.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// ProviderInfo contains metadata for a backend.
type ProviderInfo struct {
	// Identity
	Provider  Provider
	Namespace string // Logical endpoint namespace (e.g. "ark")

	// Models actually used on the wire
	TextModel  string
	ImageModel string

	// DefaultBaseURL is used when ProviderConfig.BaseURL is empty
	DefaultBaseURL string

	Capabilities Capabilities

	// RateLimits; zero values disable local limiting
	RateLimits RateLimits
}
