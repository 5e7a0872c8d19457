package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/config"
)

var validGeminiKey = "AIza" + strings.Repeat("k", 35)

// stubBackend answers every text call with its provider name.
type stubBackend struct {
	provider storygen.Provider
}

func (s stubBackend) Info() storygen.ProviderInfo {
	return storygen.ProviderInfo{Provider: s.provider, Namespace: s.provider.Namespace()}
}
func (s stubBackend) GenerateText(context.Context, string) (string, error) {
	return "from " + s.provider.String(), nil
}
func (s stubBackend) GenerateImage(context.Context, string) (string, error) {
	return "", storygen.ErrNoImage
}
func (s stubBackend) Converse(context.Context, string, []storygen.Turn, string) (string, error) {
	return "chat from " + s.provider.String(), nil
}
func (s stubBackend) GenerateJSON(context.Context, string, *storygen.Schema) (string, error) {
	return `{"provider":"` + s.provider.String() + `"}`, nil
}
func (s stubBackend) Close() error { return nil }

type buildLog struct {
	built []storygen.Provider
	keys  map[storygen.Provider]string
}

func stubBuilders(log *buildLog, failing ...storygen.Provider) []Option {
	fails := make(map[storygen.Provider]bool)
	for _, p := range failing {
		fails[p] = true
	}
	log.keys = make(map[storygen.Provider]string)

	var opts []Option
	for _, p := range storygen.Providers {
		opts = append(opts, WithBuilder(p, func(ctx context.Context, cfg storygen.ProviderConfig) (storygen.Backend, error) {
			log.built = append(log.built, p)
			log.keys[p] = cfg.APIKey
			if fails[p] {
				return nil, errors.New("missing required config")
			}
			return stubBackend{provider: p}, nil
		}))
	}
	return append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func testConfig(provider, geminiKey string) *config.Config {
	cfg := config.Default()
	cfg.Provider = provider
	cfg.Gemini.APIKey = geminiKey
	cfg.Doubao.APIKey = "ark-key"
	cfg.Ernie.APIKey = "ernie-key"
	cfg.Qwen.APIKey = "qwen-key"
	return cfg
}

func TestCreateService_Selection(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		failing  []storygen.Provider
		want     storygen.Provider
		built    []storygen.Provider
	}{
		{
			name:     "unrecognized provider selects primary",
			provider: "some-unknown-provider",
			key:      validGeminiKey,
			want:     storygen.ProviderGemini,
			built:    []storygen.Provider{storygen.ProviderGemini},
		},
		{
			name:     "empty provider selects primary",
			provider: "",
			key:      validGeminiKey,
			want:     storygen.ProviderGemini,
			built:    []storygen.Provider{storygen.ProviderGemini},
		},
		{
			name:     "invalid primary key selects secondary",
			provider: "gemini",
			key:      "not-a-real-key",
			want:     storygen.ProviderDoubao,
			built:    []storygen.Provider{storygen.ProviderDoubao},
		},
		{
			name:     "missing primary key selects secondary",
			provider: "primary",
			key:      "",
			want:     storygen.ProviderDoubao,
			built:    []storygen.Provider{storygen.ProviderDoubao},
		},
		{
			name:     "explicit tertiary",
			provider: "tertiary",
			key:      "",
			want:     storygen.ProviderErnie,
			built:    []storygen.Provider{storygen.ProviderErnie},
		},
		{
			name:     "quaternary by namespace",
			provider: "qwen",
			want:     storygen.ProviderQwen,
			built:    []storygen.Provider{storygen.ProviderQwen},
		},
		{
			name:     "build failure falls back to secondary",
			provider: "qwen",
			failing:  []storygen.Provider{storygen.ProviderQwen},
			want:     storygen.ProviderDoubao,
			built:    []storygen.Provider{storygen.ProviderQwen, storygen.ProviderDoubao},
		},
		{
			name:     "primary build failure falls back to secondary",
			provider: "gemini",
			key:      validGeminiKey,
			failing:  []storygen.Provider{storygen.ProviderGemini},
			want:     storygen.ProviderDoubao,
			built:    []storygen.Provider{storygen.ProviderGemini, storygen.ProviderDoubao},
		},
		{
			name:     "secondary failure runs offline",
			provider: "ark",
			failing:  []storygen.Provider{storygen.ProviderDoubao},
			want:     storygen.ProviderOffline,
			built:    []storygen.Provider{storygen.ProviderDoubao},
		},
		{
			name:     "everything fails runs offline",
			provider: "ernie",
			failing:  []storygen.Provider{storygen.ProviderErnie, storygen.ProviderDoubao},
			want:     storygen.ProviderOffline,
			built:    []storygen.Provider{storygen.ProviderErnie, storygen.ProviderDoubao},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &buildLog{}
			svc := CreateService(context.Background(), testConfig(tt.provider, tt.key), stubBuilders(log, tt.failing...)...)
			require.NotNil(t, svc)

			assert.Equal(t, tt.want, svc.Provider())
			assert.Equal(t, tt.built, log.built)
		})
	}
}

func TestCreateService_DistinguishingResponses(t *testing.T) {
	ctx := context.Background()

	log := &buildLog{}
	svc := CreateService(ctx, testConfig("unrecognized", validGeminiKey), stubBuilders(log)...)
	assert.Equal(t, "from gemini", svc.GenerateText(ctx, "hello"))
	assert.Equal(t, validGeminiKey, log.keys[storygen.ProviderGemini])

	log = &buildLog{}
	svc = CreateService(ctx, testConfig("gemini", "not-a-real-key"), stubBuilders(log)...)
	assert.Equal(t, "from doubao", svc.GenerateText(ctx, "hello"))
	assert.Equal(t, "chat from doubao", svc.CreateChat("sys").SendMessage(ctx, "hi"))
	assert.Equal(t, map[string]any{"provider": "doubao"}, svc.GenerateStructured(ctx, "p", storygen.Object(nil)))
	assert.Equal(t, "ark-key", log.keys[storygen.ProviderDoubao])
}

func TestCreateService_OfflineSafeDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("ark", "")
	cfg.Doubao.APIKey = ""

	// Real builders: no doubao key, so the secondary cannot be built.
	svc := CreateService(ctx, cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, storygen.ProviderOffline, svc.Provider())
	assert.Equal(t, "", svc.GenerateText(ctx, "hello"))
	_, ok := svc.GenerateImage(ctx, "hello")
	assert.False(t, ok)
	assert.Equal(t, map[string]any{}, svc.GenerateStructured(ctx, "p", storygen.Object(nil)))
}

func TestCreateService_RealSecondaryBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ark/chat/completions", r.URL.Path)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ark says hi"}}]}`)
	}))
	defer srv.Close()

	cfg := testConfig("gemini", "not-a-real-key")
	cfg.Doubao.BaseURL = srv.URL + "/api/ark"

	svc := CreateService(context.Background(), cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer svc.Close()

	assert.Equal(t, storygen.ProviderDoubao, svc.Provider())
	assert.Equal(t, "ark says hi", svc.GenerateText(context.Background(), "hello"))
}

func TestCreateService_NilConfig(t *testing.T) {
	log := &buildLog{}
	svc := CreateService(context.Background(), nil, stubBuilders(log)...)
	// Default config has no keys: primary is rejected, secondary stub builds.
	assert.Equal(t, storygen.ProviderDoubao, svc.Provider())
}

func TestCreateService_ImageDir(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig("gemini", validGeminiKey)
	cfg.ImageDir = dir

	opts := append(stubBuilders(&buildLog{}),
		WithBuilder(storygen.ProviderGemini, func(ctx context.Context, pc storygen.ProviderConfig) (storygen.Backend, error) {
			return inlineImageBackend{}, nil
		}),
	)
	svc := CreateService(context.Background(), cfg, opts...)

	ref, ok := svc.GenerateImage(context.Background(), "a bank at dawn")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ref, "file://"), ref)
	assert.Contains(t, ref, "/images/gemini/")
}

type inlineImageBackend struct{ stubBackend }

func (inlineImageBackend) Info() storygen.ProviderInfo {
	return storygen.ProviderInfo{Provider: storygen.ProviderGemini, Namespace: "gemini"}
}

func (inlineImageBackend) GenerateImage(context.Context, string) (string, error) {
	return storygen.EncodeDataURI("image/png", []byte("png")), nil
}
