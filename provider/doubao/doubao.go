// Package doubao provides a storygen Backend for Volcengine Ark ("doubao"
// models), the secondary provider.
//
// Ark exposes OpenAI-style chat/completions and images/generations
// endpoints. It has no native multi-turn memory or schema mode: chat history
// is replayed into the prompt and structured output is requested through
// prompt instructions.
package doubao

import (
	"context"
	"fmt"
	"strings"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/internal/transport"
)

const (
	// APIModelText is the Ark text model.
	APIModelText = "doubao-seed-1-6-251015"

	// APIModelImage is the Ark image model.
	APIModelImage = "doubao-seedream-4-0-250828"

	// DefaultBaseURL is the public Ark v3 endpoint.
	DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

	// DefaultImageSize is Ark's size preset for generated images.
	DefaultImageSize = "2K"

	maxCompletionTokens = 65535
	reasoningEffort     = "medium"
)

// Info describes the Ark backend.
var Info = storygen.ProviderInfo{
	Provider:       storygen.ProviderDoubao,
	Namespace:      storygen.ProviderDoubao.Namespace(),
	TextModel:      APIModelText,
	ImageModel:     APIModelImage,
	DefaultBaseURL: DefaultBaseURL,
	RateLimits: storygen.RateLimits{
		TokensPerMinute:   500000,
		RequestsPerMinute: 300,
	},
}

// Generator implements storygen.Backend against Ark.
type Generator struct {
	client     *transport.Client
	info       storygen.ProviderInfo
	textModel  string
	imageModel string
	imageSize  string
}

// Ensure Generator implements the interface.
var _ storygen.Backend = (*Generator)(nil)

// New creates a Generator from a ProviderConfig.
func New(ctx context.Context, config *storygen.ProviderConfig) (*Generator, error) {
	if config == nil {
		config = &storygen.ProviderConfig{}
	}
	if err := storygen.ValidateCredential(storygen.ProviderDoubao, config.APIKey); err != nil {
		return nil, err
	}

	client, err := transport.New(transport.Options{
		Provider:   storygen.ProviderDoubao,
		BaseURL:    storygen.ModelOr(config.BaseURL, DefaultBaseURL),
		APIKey:     config.APIKey,
		Timeout:    config.Timeout,
		MaxRetries: config.MaxRetries,
		HTTPClient: config.HTTPClient,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, err
	}

	info := Info
	info.TextModel = storygen.ModelOr(config.TextModel, APIModelText)
	info.ImageModel = storygen.ModelOr(config.ImageModel, APIModelImage)

	return &Generator{
		client:     client,
		info:       info,
		textModel:  info.TextModel,
		imageModel: info.ImageModel,
		imageSize:  storygen.ModelOr(config.ImageSize, DefaultImageSize),
	}, nil
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model               string    `json:"model"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
	Messages            []message `json:"messages"`
	ReasoningEffort     string    `json:"reasoning_effort"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model                     string `json:"model"`
	Prompt                    string `json:"prompt"`
	SequentialImageGeneration string `json:"sequential_image_generation"`
	ResponseFormat            string `json:"response_format"`
	Size                      string `json:"size"`
	Stream                    bool   `json:"stream"`
	Watermark                 bool   `json:"watermark"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Info describes this backend.
func (g *Generator) Info() storygen.ProviderInfo {
	return g.info
}

// GenerateText performs a single-turn completion.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:               g.textModel,
		MaxCompletionTokens: maxCompletionTokens,
		Messages: []message{{
			Role:    "user",
			Content: []contentPart{{Type: "text", Text: prompt}},
		}},
		ReasoningEffort: reasoningEffort,
	}

	var resp chatResponse
	if err := g.client.PostJSON(ctx, "chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", storygen.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage returns the URL of the first generated image.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := imageRequest{
		Model:                     g.imageModel,
		Prompt:                    prompt,
		SequentialImageGeneration: "disabled",
		ResponseFormat:            "url",
		Size:                      g.imageSize,
		Stream:                    false,
		Watermark:                 true,
	}

	var resp imageResponse
	if err := g.client.PostJSON(ctx, "images/generations", req, &resp); err != nil {
		return "", err
	}
	for _, d := range resp.Data {
		if d.URL != "" {
			return d.URL, nil
		}
	}
	return "", fmt.Errorf("%w: %s returned %d results", storygen.ErrNoImage, g.imageModel, len(resp.Data))
}

// Converse replays the system instruction and history as one prompt.
func (g *Generator) Converse(ctx context.Context, systemInstruction string, history []storygen.Turn, msg string) (string, error) {
	return g.GenerateText(ctx, storygen.ReplayPrompt(systemInstruction, history, msg))
}

// GenerateJSON asks for JSON through prompt instructions.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string, schema *storygen.Schema) (string, error) {
	return g.GenerateText(ctx, storygen.StructuredPrompt(prompt, schema))
}

// Close releases any resources held by the generator.
func (g *Generator) Close() error {
	return nil
}
