// Package qwen provides a storygen Backend for Alibaba DashScope (Qwen and
// Wanx models), the quaternary provider.
package qwen

import (
	"context"
	"fmt"
	"strings"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/internal/transport"
)

const (
	APIModelText  = "qwen-plus"
	APIModelImage = "wanx-v1"

	// DefaultBaseURL is the DashScope services endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1/services"

	DefaultImageSize = "1024x1024"
)

// Info describes the DashScope backend.
var Info = storygen.ProviderInfo{
	Provider:       storygen.ProviderQwen,
	Namespace:      storygen.ProviderQwen.Namespace(),
	TextModel:      APIModelText,
	ImageModel:     APIModelImage,
	DefaultBaseURL: DefaultBaseURL,
	RateLimits: storygen.RateLimits{
		TokensPerMinute:   1000000,
		RequestsPerMinute: 600,
	},
}

// Generator implements storygen.Backend against DashScope.
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
	if err := storygen.ValidateCredential(storygen.ProviderQwen, config.APIKey); err != nil {
		return nil, err
	}

	client, err := transport.New(transport.Options{
		Provider:   storygen.ProviderQwen,
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

type input struct {
	Prompt string `json:"prompt"`
}

type textParameters struct {
	ResultFormat string `json:"result_format"`
}

type imageParameters struct {
	Size string `json:"size"`
	N    int    `json:"n"`
}

type generationRequest struct {
	Model      string `json:"model"`
	Input      input  `json:"input"`
	Parameters any    `json:"parameters"`
}

type textResponse struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`

	// DashScope error envelope
	Code    string `json:"code"`
	Message string `json:"message"`
}

type imageResponse struct {
	Output struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
}

// Info describes this backend.
func (g *Generator) Info() storygen.ProviderInfo {
	return g.info
}

// GenerateText performs a single-turn completion.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := generationRequest{
		Model:      g.textModel,
		Input:      input{Prompt: prompt},
		Parameters: textParameters{ResultFormat: "text"},
	}

	var resp textResponse
	if err := g.client.PostJSON(ctx, "aigc/text-generation/generation", req, &resp); err != nil {
		return "", err
	}
	if resp.Code != "" {
		return "", fmt.Errorf("dashscope error %s: %s", resp.Code, resp.Message)
	}
	if strings.TrimSpace(resp.Output.Text) == "" {
		return "", storygen.ErrEmptyResponse
	}
	return resp.Output.Text, nil
}

// GenerateImage returns the URL of the first generated image.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := generationRequest{
		Model:      g.imageModel,
		Input:      input{Prompt: prompt},
		Parameters: imageParameters{Size: g.imageSize, N: 1},
	}

	var resp imageResponse
	if err := g.client.PostJSON(ctx, "aigc/image-generation/generation", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Output.Results) == 0 || resp.Output.Results[0].URL == "" {
		return "", storygen.ErrNoImage
	}
	return resp.Output.Results[0].URL, nil
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
