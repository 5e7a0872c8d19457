package storygen

import (
	"log/slog"
	"time"

	"github.com/mhpenta/storygen/ratelimiter"
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets a structured logger for the adapter.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStorage sets a storage backend for persisting inline images. Stored
// objects are placed under prefix (default "images").
func WithStorage(storage Storage, prefix string) AdapterOption {
	return func(a *Adapter) {
		a.storage = storage
		if prefix != "" {
			a.storagePrefix = prefix
		}
	}
}

// WithTimeout bounds every capability call. Zero disables the adapter's own
// timeout and relies on the transport.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// WithRateLimiter replaces the default in-memory limiter. Pass nil to
// disable client-side rate limiting.
func WithRateLimiter(limiter ratelimiter.Limiter) AdapterOption {
	return func(a *Adapter) {
		a.limiter = limiter
	}
}

// WithRateLimitWait makes rate-limited calls wait up to maxWait for capacity
// instead of failing immediately.
func WithRateLimitWait(maxWait time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.maxWait = maxWait
	}
}

// WithTokenEstimator sets the estimator used for rate limiting.
func WithTokenEstimator(e TokenEstimator) AdapterOption {
	return func(a *Adapter) {
		if e != nil {
			a.tokenEstimator = e
		}
	}
}

// WithReplayBudget sets how many runes of prior turns chat sessions replay.
// A value <= 0 replays the full history.
func WithReplayBudget(runes int) AdapterOption {
	return func(a *Adapter) {
		a.replayBudget = runes
	}
}
