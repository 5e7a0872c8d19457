package storygen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/storygen/ratelimiter"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapter_GenerateText(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		reply  string
		err    error
		want   string
		called bool
	}{
		{name: "success", prompt: "tell a story", reply: "once upon a time", want: "once upon a time", called: true},
		{name: "backend error", prompt: "tell a story", err: errors.New("connection refused"), want: "", called: true},
		{name: "status error", prompt: "tell a story", err: &StatusError{Provider: "mock", StatusCode: 500}, want: "", called: true},
		{name: "empty reply", prompt: "tell a story", reply: "", want: "", called: true},
		{name: "empty prompt", prompt: "  ", reply: "unused", want: "", called: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			backend := &MockBackend{
				GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
					called = true
					return tt.reply, tt.err
				},
			}
			a := NewAdapter(backend, WithLogger(quietLogger()))

			got := a.GenerateText(context.Background(), tt.prompt)
			if got != tt.want {
				t.Errorf("GenerateText() = %q, want %q", got, tt.want)
			}
			if called != tt.called {
				t.Errorf("backend called = %v, want %v", called, tt.called)
			}
		})
	}
}

func TestAdapter_GenerateImage(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		backend := &MockBackend{
			GenerateImageFunc: func(ctx context.Context, prompt string) (string, error) {
				return "https://img.example.com/1.png", nil
			},
		}
		ref, ok := NewAdapter(backend, WithLogger(quietLogger())).GenerateImage(context.Background(), "a castle")
		assert.True(t, ok)
		assert.Equal(t, "https://img.example.com/1.png", ref)
	})

	t.Run("no image is not an error", func(t *testing.T) {
		backend := &MockBackend{
			GenerateImageFunc: func(ctx context.Context, prompt string) (string, error) {
				return "", ErrNoImage
			},
		}
		ref, ok := NewAdapter(backend, WithLogger(quietLogger())).GenerateImage(context.Background(), "a castle")
		assert.False(t, ok)
		assert.Empty(t, ref)
	})

	t.Run("transport failure", func(t *testing.T) {
		backend := &MockBackend{
			GenerateImageFunc: func(ctx context.Context, prompt string) (string, error) {
				return "", errors.New("dial tcp: no route to host")
			},
		}
		_, ok := NewAdapter(backend, WithLogger(quietLogger())).GenerateImage(context.Background(), "a castle")
		assert.False(t, ok)
	})

	t.Run("data uri persisted to storage", func(t *testing.T) {
		backend := &MockBackend{
			InfoFunc: func() ProviderInfo {
				return ProviderInfo{Provider: ProviderGemini, Namespace: "gemini"}
			},
			GenerateImageFunc: func(ctx context.Context, prompt string) (string, error) {
				return EncodeDataURI("image/jpeg", []byte("jpeg-bytes")), nil
			},
		}
		storage := &MockStorage{}
		a := NewAdapter(backend, WithLogger(quietLogger()), WithStorage(storage, "levels"))

		ref, ok := a.GenerateImage(context.Background(), "a castle")
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(ref, "https://cdn.example.com/levels/gemini/"), ref)
		assert.True(t, strings.HasSuffix(ref, ".jpg"), ref)
		require.Len(t, storage.Saved, 1)
		for _, data := range storage.Saved {
			assert.Equal(t, []byte("jpeg-bytes"), data)
		}
	})

	t.Run("storage failure keeps data uri", func(t *testing.T) {
		dataURI := EncodeDataURI("image/png", []byte("png-bytes"))
		backend := &MockBackend{
			GenerateImageFunc: func(ctx context.Context, prompt string) (string, error) {
				return dataURI, nil
			},
		}
		storage := &MockStorage{
			SaveFileFunc: func(ctx context.Context, data []byte, path string, contentType string) (string, error) {
				return "", errors.New("bucket unavailable")
			},
		}
		ref, ok := NewAdapter(backend, WithLogger(quietLogger()), WithStorage(storage, "")).
			GenerateImage(context.Background(), "a castle")
		assert.True(t, ok)
		assert.Equal(t, dataURI, ref)
	})
}

func TestAdapter_GenerateStructured(t *testing.T) {
	schema := Object(map[string]*Schema{
		"a": Integer(),
	}, "a")

	tests := []struct {
		name string
		raw  string
		err  error
		want map[string]any
	}{
		{name: "clean json", raw: `{"a":1}`, want: map[string]any{"a": float64(1)}},
		{name: "fenced json", raw: "```json\n{\"a\":1}\n```", want: map[string]any{"a": float64(1)}},
		{name: "prose around json", raw: "Here you go:\n{\"a\": 1}\nEnjoy!", want: map[string]any{"a": float64(1)}},
		{name: "not json", raw: "I cannot help with that.", want: map[string]any{}},
		{name: "truncated json", raw: `{"a": 1`, want: map[string]any{}},
		{name: "missing required field", raw: `{"b": 2}`, want: map[string]any{}},
		{name: "wrong type", raw: `{"a": "one"}`, want: map[string]any{}},
		{name: "backend error", err: errors.New("boom"), want: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MockBackend{
				GenerateJSONFunc: func(ctx context.Context, prompt string, s *Schema) (string, error) {
					return tt.raw, tt.err
				},
			}
			got := NewAdapter(backend, WithLogger(quietLogger())).
				GenerateStructured(context.Background(), "give me a", schema)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapter_GenerateStructured_InvalidSchema(t *testing.T) {
	called := false
	backend := &MockBackend{
		GenerateJSONFunc: func(ctx context.Context, prompt string, s *Schema) (string, error) {
			called = true
			return `{"a":1}`, nil
		},
	}
	a := NewAdapter(backend, WithLogger(quietLogger()))

	assert.Equal(t, map[string]any{}, a.GenerateStructured(context.Background(), "p", nil))
	assert.Equal(t, map[string]any{}, a.GenerateStructured(context.Background(), "p", ArrayOf(String())))
	assert.False(t, called)
}

func TestAdapter_RateLimit(t *testing.T) {
	calls := 0
	backend := &MockBackend{
		InfoFunc: func() ProviderInfo {
			return ProviderInfo{
				Provider: "mock",
				RateLimits: RateLimits{
					TokensPerMinute:   100, // Small limit for testing
					RequestsPerMinute: 10,
				},
			}
		},
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			return "ok", nil
		},
	}

	a := NewAdapter(backend, WithLogger(quietLogger()))

	// "test prompt" estimates to 7 tokens, plus 100 overhead, which exceeds 100.
	if got := a.GenerateText(context.Background(), "test prompt"); got != "" {
		t.Errorf("expected rate limited empty reply, got %q", got)
	}
	if calls != 0 {
		t.Errorf("backend should not be called when rate limited, got %d calls", calls)
	}

	a = NewAdapter(backend, WithLogger(quietLogger()), WithRateLimiter(ratelimiter.New(200, 10)))
	if got := a.GenerateText(context.Background(), "test prompt"); got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
}

func TestAdapter_RateLimitWait(t *testing.T) {
	calls := 0
	backend := &MockBackend{
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			return "ok", nil
		},
	}
	newLimiter := func() ratelimiter.Limiter {
		// One "test prompt" call (107 estimated tokens) per refill.
		return ratelimiter.NewFromLimits(ratelimiter.RateLimits{
			TokensPerMinute:   120,
			RequestsPerMinute: 10,
			Interval:          150 * time.Millisecond,
		})
	}

	noWait := NewAdapter(backend, WithLogger(quietLogger()), WithRateLimiter(newLimiter()))
	assert.Equal(t, "ok", noWait.GenerateText(context.Background(), "test prompt"))
	assert.Empty(t, noWait.GenerateText(context.Background(), "test prompt"))
	assert.Equal(t, 1, calls)

	calls = 0
	waiting := NewAdapter(backend,
		WithLogger(quietLogger()),
		WithRateLimiter(newLimiter()),
		WithRateLimitWait(time.Second),
	)
	start := time.Now()
	assert.Equal(t, "ok", waiting.GenerateText(context.Background(), "test prompt"))
	assert.Equal(t, "ok", waiting.GenerateText(context.Background(), "test prompt"))
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	short := NewAdapter(backend,
		WithLogger(quietLogger()),
		WithRateLimiter(newLimiter()),
		WithRateLimitWait(10*time.Millisecond),
	)
	calls = 0
	assert.Equal(t, "ok", short.GenerateText(context.Background(), "test prompt"))
	assert.Empty(t, short.GenerateText(context.Background(), "test prompt"))
	assert.Equal(t, 1, calls)
}

func TestAdapter_Timeout(t *testing.T) {
	backend := &MockBackend{
		GenerateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	a := NewAdapter(backend, WithLogger(quietLogger()), WithTimeout(20*time.Millisecond))

	done := make(chan string, 1)
	go func() { done <- a.GenerateText(context.Background(), "hang") }()

	select {
	case got := <-done:
		assert.Empty(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not apply its timeout")
	}
}

func TestAdapter_Close(t *testing.T) {
	closed := false
	backend := &MockBackend{CloseFunc: func() error { closed = true; return nil }}

	svc := NewService(NewAdapter(backend), "mock")
	require.NoError(t, svc.Close())
	assert.True(t, closed)
}
