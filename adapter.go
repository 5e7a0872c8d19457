package storygen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mhpenta/storygen/ratelimiter"
)

// DefaultTimeout bounds a single capability call, including transport retries.
const DefaultTimeout = 90 * time.Second

// Capability names used in logs.
const (
	CapabilityText       = "text"
	CapabilityImage      = "image"
	CapabilityChat       = "chat"
	CapabilityStructured = "structured"
)

// Adapter implements Generator on top of exactly one Backend. It owns the
// failure policy: every backend error is logged and converted to the safe
// default of the capability, so callers never see an error.
type Adapter struct {
	backend Backend
	info    ProviderInfo

	// Logger for structured logging
	logger *slog.Logger

	// Storage for persisting inline images (optional)
	storage       Storage
	storagePrefix string

	// Rate limiting (optional)
	limiter        ratelimiter.Limiter
	tokenEstimator TokenEstimator
	maxWait        time.Duration

	timeout      time.Duration
	replayBudget int
}

// Ensure Adapter implements Generator.
var _ Generator = (*Adapter)(nil)

// NewAdapter wraps backend. A client-side rate limiter is created from the
// backend's advertised limits unless WithRateLimiter overrides it.
//
// Example:
//
//	backend, err := doubao.New(ctx, &cfg)
//	if err != nil {
//	    return err
//	}
//	gen := storygen.NewAdapter(backend,
//	    storygen.WithLogger(slog.Default()),
//	    storygen.WithTimeout(30*time.Second),
//	)
func NewAdapter(backend Backend, opts ...AdapterOption) *Adapter {
	info := backend.Info()
	a := &Adapter{
		backend:        backend,
		info:           info,
		logger:         slog.Default(),
		storagePrefix:  "images",
		tokenEstimator: NewSimpleTokenEstimator(),
		timeout:        DefaultTimeout,
		replayBudget:   DefaultReplayBudget,
	}

	if info.RateLimits.TokensPerMinute > 0 || info.RateLimits.RequestsPerMinute > 0 {
		a.limiter = ratelimiter.NewFromLimits(ratelimiter.RateLimits{
			TokensPerMinute:   info.RateLimits.TokensPerMinute,
			RequestsPerMinute: info.RateLimits.RequestsPerMinute,
		})
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Info returns the metadata of the wrapped backend.
func (a *Adapter) Info() ProviderInfo {
	return a.info
}

// Provider returns the provider of the wrapped backend.
func (a *Adapter) Provider() Provider {
	return a.info.Provider
}

// Close releases the wrapped backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

// GenerateText returns generated text, or "" on any failure.
func (a *Adapter) GenerateText(ctx context.Context, prompt string) string {
	text, err := a.call(ctx, CapabilityText, prompt, func(ctx context.Context) (string, error) {
		return a.backend.GenerateText(ctx, prompt)
	})
	if err != nil {
		return ""
	}
	return text
}

// GenerateImage returns an image reference. ok is false when the backend
// failed or produced no image.
func (a *Adapter) GenerateImage(ctx context.Context, prompt string) (string, bool) {
	ref, err := a.call(ctx, CapabilityImage, prompt, func(ctx context.Context) (string, error) {
		return a.backend.GenerateImage(ctx, prompt)
	})
	if err != nil || ref == "" {
		return "", false
	}

	if a.storage != nil {
		ref = a.persistImage(ctx, ref)
	}
	return ref, true
}

// CreateChat starts a new Session bound to systemInstruction.
func (a *Adapter) CreateChat(systemInstruction string) ChatSession {
	return newSession(a, systemInstruction, a.replayBudget)
}

// GenerateStructured returns a JSON object matching schema, or an empty map
// when the backend failed, the response held no JSON object, or the object
// did not validate against schema.
func (a *Adapter) GenerateStructured(ctx context.Context, prompt string, schema *Schema) map[string]any {
	if err := ValidateSchema(schema); err != nil {
		a.logger.Error("invalid schema",
			"provider", a.info.Provider.String(),
			"capability", CapabilityStructured,
			"error", err.Error(),
		)
		return map[string]any{}
	}

	raw, err := a.call(ctx, CapabilityStructured, prompt, func(ctx context.Context) (string, error) {
		return a.backend.GenerateJSON(ctx, prompt, schema)
	})
	if err != nil {
		return map[string]any{}
	}

	obj, err := ExtractJSON(raw)
	if err != nil {
		a.logger.Warn("unparsable structured response",
			"provider", a.info.Provider.String(),
			"error", err.Error(),
			"raw", raw,
		)
		return map[string]any{}
	}

	if err := schema.Validate(obj); err != nil {
		a.logger.Warn("structured response does not match schema",
			"provider", a.info.Provider.String(),
			"error", err.Error(),
			"raw", raw,
		)
		return map[string]any{}
	}

	return obj
}

// converse performs one chat exchange for a Session.
func (a *Adapter) converse(ctx context.Context, systemInstruction string, history []Turn, message string) string {
	reply, err := a.call(ctx, CapabilityChat, message, func(ctx context.Context) (string, error) {
		return a.backend.Converse(ctx, systemInstruction, history, message)
	})
	if err != nil {
		return ""
	}
	return reply
}

// call runs fn under the adapter's validation, rate limiting, timeout and
// logging. The returned error has already been logged.
func (a *Adapter) call(ctx context.Context, capability string, prompt string, fn func(context.Context) (string, error)) (string, error) {
	provider := a.info.Provider.String()

	if err := ValidatePrompt(prompt); err != nil {
		a.logger.Debug("skipping generation",
			"provider", provider,
			"capability", capability,
			"error", err.Error(),
		)
		return "", err
	}

	start := time.Now()
	a.logger.Debug("starting generation",
		"provider", provider,
		"capability", capability,
		"prompt_length", len(prompt),
	)

	if err := a.checkRateLimit(ctx, prompt); err != nil {
		a.logger.Warn("rate limit hit",
			"provider", provider,
			"capability", capability,
			"error", err.Error(),
		)
		return "", err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	out, err := fn(ctx)
	duration := time.Since(start)

	if err == nil && out == "" && capability != CapabilityImage {
		err = ErrEmptyResponse
	}

	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrNoImage) || IsRateLimitError(err) {
			level = slog.LevelWarn
		}
		a.logger.Log(ctx, level, "generation failed",
			"provider", provider,
			"capability", capability,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return "", err
	}

	a.logger.Info("generation completed",
		"provider", provider,
		"capability", capability,
		"duration_ms", duration.Milliseconds(),
		"response_length", len(out),
	)

	return out, nil
}

// checkRateLimit consumes the estimated cost of prompt from the limiter.
func (a *Adapter) checkRateLimit(ctx context.Context, prompt string) error {
	const (
		tokenBuffer = 100
	)

	if a.limiter == nil {
		return nil
	}

	estimatedTokens := a.tokenEstimator.EstimateTokens(prompt) + tokenBuffer

	if a.maxWait > 0 {
		if err := a.limiter.WaitAndConsume(ctx, estimatedTokens, a.maxWait); err != nil {
			return &RateLimitError{
				RetryAfter: a.limiter.TimeUntilAvailable(estimatedTokens),
				LimitType:  "tokens",
				Provider:   a.info.Provider,
				Err:        err,
			}
		}
		return nil
	}

	if !a.limiter.TryConsume(estimatedTokens) {
		return &RateLimitError{
			RetryAfter: a.limiter.TimeUntilAvailable(estimatedTokens),
			LimitType:  "tokens",
			Provider:   a.info.Provider,
		}
	}

	return nil
}

// persistImage replaces an inline data URI with a stored URL. On failure the
// original reference is kept so the image still renders.
func (a *Adapter) persistImage(ctx context.Context, ref string) string {
	if _, ok := ParseDataURI(ref); !ok {
		return ref
	}

	basePath := fmt.Sprintf("%s/%s/%s", a.storagePrefix, a.info.Namespace, uuid.NewString())
	res, err := SaveToStorage(ctx, a.storage, ref, basePath)
	if err != nil {
		a.logger.Warn("failed to persist image",
			"provider", a.info.Provider.String(),
			"path", basePath,
			"error", err.Error(),
		)
		return ref
	}

	a.logger.Debug("persisted image",
		"provider", a.info.Provider.String(),
		"path", res.Path,
		"size", res.Size,
	)
	return res.URL
}
