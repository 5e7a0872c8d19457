package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter limits both estimated tokens and requests per minute.
type RateLimiter struct {
	mu             sync.Mutex
	TokensBucket   *TokenBucket
	RequestsBucket *TokenBucket
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a RateLimiter refilled every minute. A zero limit disables
// that dimension.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	return NewFromLimits(RateLimits{
		TokensPerMinute:   tokensPerMinute,
		RequestsPerMinute: requestsPerMinute,
	})
}

// RateLimits mirrors storygen.RateLimits to avoid circular imports.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int

	// Interval overrides the refill period; zero means one minute.
	Interval time.Duration
}

// NewFromLimits creates a RateLimiter from a RateLimits configuration.
func NewFromLimits(limits RateLimits) *RateLimiter {
	interval := limits.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &RateLimiter{
		TokensBucket:   NewTokenBucket(limits.TokensPerMinute, limits.TokensPerMinute, interval),
		RequestsBucket: NewTokenBucket(limits.RequestsPerMinute, limits.RequestsPerMinute, interval),
	}
}

// TryConsume atomically checks capacity and consumes tokens if available.
// Nothing is consumed when either bucket lacks capacity.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.TokensBucket.HasCapacity(numTokens) || !rl.RequestsBucket.HasCapacity(1) {
		return false
	}
	return rl.TokensBucket.TryConsume(numTokens) && rl.RequestsBucket.TryConsume(1)
}

// TimeUntilAvailable returns how long until the specified tokens would be available.
// This does not modify state - use for informational purposes.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	tokenWait := rl.TokensBucket.TimeUntilAvailable(tokens)
	requestWait := rl.RequestsBucket.TimeUntilAvailable(1)
	return max(tokenWait, requestWait)
}

// WaitAndConsume waits until tokens are available (up to maxWait), then consumes them.
// If maxWait is 0, there is no limit on how long to wait.
// Returns an error if the context is cancelled, maxWait is exceeded or the
// request is larger than a bucket can ever hold.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	if rl.TokensBucket.exceedsCapacity(tokens) || rl.RequestsBucket.exceedsCapacity(1) {
		return fmt.Errorf("request of %d tokens exceeds limiter capacity", tokens)
	}

	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if rl.TryConsume(tokens) {
			return nil
		}

		waitDuration := rl.TimeUntilAvailable(tokens)
		if waitDuration <= 0 {
			// Lost a race with another consumer; the refill is due now.
			waitDuration = time.Millisecond
		}
		if !deadline.IsZero() && time.Now().Add(waitDuration).After(deadline) {
			return fmt.Errorf("rate limit wait time %v exceeds max wait %v", waitDuration, maxWait)
		}

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucket implements a token bucket rate limit algorithm. A bucket with
// zero capacity never limits.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(capacity int, initialTokens int, refillInterval time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      initialTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

func (tb *TokenBucket) unlimited() bool {
	return tb.capacity <= 0
}

// refill must be called with tb.mu held.
func (tb *TokenBucket) refill(now time.Time) {
	if now.Sub(tb.lastRefill) >= tb.refillInterval {
		tb.remaining = tb.capacity
		tb.lastRefill = now
	}
}

// HasCapacity checks if tokens are available WITHOUT consuming them.
func (tb *TokenBucket) HasCapacity(tokens int) bool {
	if tb.unlimited() {
		return true
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(time.Now())
	return tokens <= tb.remaining
}

// TryConsume tries to consume a specified number of tokens from the bucket.
func (tb *TokenBucket) TryConsume(tokens int) bool {
	if tb.unlimited() {
		return true
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(time.Now())
	if tokens <= tb.remaining {
		tb.remaining -= tokens
		return true
	}
	return false
}

func (tb *TokenBucket) exceedsCapacity(tokens int) bool {
	return !tb.unlimited() && tokens > tb.capacity
}

// TimeUntilAvailable returns how long until tokens would be available (read-only).
// The bucket refills all at once, so the answer is either zero or the time
// left until the next refill.
func (tb *TokenBucket) TimeUntilAvailable(tokens int) time.Duration {
	if tb.unlimited() {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	untilRefill := tb.refillInterval - time.Since(tb.lastRefill)
	if untilRefill <= 0 || tokens <= tb.remaining {
		return 0
	}
	return untilRefill
}
