// Package ernie provides a storygen Backend for Baidu's Wenxin workshop
// (ERNIE models), the tertiary provider.
package ernie

import (
	"context"
	"fmt"
	"strings"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/internal/transport"
)

const (
	APIModelText  = "ernie-4.0"
	APIModelImage = "ernie-vilg-v2"

	// DefaultBaseURL is the Wenxin workshop endpoint.
	DefaultBaseURL = "https://aip.baidubce.com/rpc/2.0/ai_custom/v1/wenxinworkshop"

	DefaultImageSize = "1024x1024"
)

// Info describes the Ernie backend. Structured output is requested with
// response_format json_object, but the schema itself only travels in the
// prompt, so it is not counted as native.
var Info = storygen.ProviderInfo{
	Provider:       storygen.ProviderErnie,
	Namespace:      storygen.ProviderErnie.Namespace(),
	TextModel:      APIModelText,
	ImageModel:     APIModelImage,
	DefaultBaseURL: DefaultBaseURL,
	RateLimits: storygen.RateLimits{
		TokensPerMinute:   300000,
		RequestsPerMinute: 300,
	},
}

// Generator implements storygen.Backend against the Wenxin workshop API.
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
	if err := storygen.ValidateCredential(storygen.ProviderErnie, config.APIKey); err != nil {
		return nil, err
	}

	client, err := transport.New(transport.Options{
		Provider:   storygen.ProviderErnie,
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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Result string `json:"result"`

	// Wenxin reports some failures with a 200 status.
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
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
	return g.complete(ctx, prompt, nil)
}

// GenerateImage returns the URL of the first generated image.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := imageRequest{
		Model:  g.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   g.imageSize,
	}

	var resp imageResponse
	if err := g.client.PostJSON(ctx, "images/generations", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", storygen.ErrNoImage
	}
	return resp.Data[0].URL, nil
}

// Converse replays the system instruction and history as one prompt.
func (g *Generator) Converse(ctx context.Context, systemInstruction string, history []storygen.Turn, msg string) (string, error) {
	return g.complete(ctx, storygen.ReplayPrompt(systemInstruction, history, msg), nil)
}

// GenerateJSON asks for a JSON object, embedding the schema in the prompt.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string, schema *storygen.Schema) (string, error) {
	return g.complete(ctx, storygen.StructuredPrompt(prompt, schema), &responseFormat{Type: "json_object"})
}

// Close releases any resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

func (g *Generator) complete(ctx context.Context, prompt string, format *responseFormat) (string, error) {
	req := chatRequest{
		Model:          g.textModel,
		Messages:       []message{{Role: "user", Content: prompt}},
		ResponseFormat: format,
	}

	var resp chatResponse
	if err := g.client.PostJSON(ctx, "chat/completions_pro", req, &resp); err != nil {
		return "", err
	}
	if resp.ErrorCode != 0 {
		return "", fmt.Errorf("ernie error %d: %s", resp.ErrorCode, resp.ErrorMsg)
	}
	if strings.TrimSpace(resp.Result) == "" {
		return "", storygen.ErrEmptyResponse
	}
	return resp.Result, nil
}
