// Package gemini provides a storygen Backend using Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/internal/transport"
)

// Generator implements storygen.Backend using Google's Gemini API.
type Generator struct {
	client     *genai.Client
	info       storygen.ProviderInfo
	textModel  string
	imageModel string
}

// Ensure Generator implements the interface.
var _ storygen.Backend = (*Generator)(nil)

// New creates a Generator from a ProviderConfig. The API key must have the
// Google key format.
func New(ctx context.Context, config *storygen.ProviderConfig) (*Generator, error) {
	if config == nil {
		config = &storygen.ProviderConfig{}
	}

	if err := storygen.ValidateCredential(storygen.ProviderGemini, config.APIKey); err != nil {
		return nil, err
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(config.APIKey),
		Backend: genai.BackendGeminiAPI,
		HTTPClient: transport.StandardClient(transport.Options{
			Provider:   storygen.ProviderGemini,
			Timeout:    config.Timeout,
			MaxRetries: config.MaxRetries,
			HTTPClient: config.HTTPClient,
			Logger:     config.Logger,
		}),
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	info := Info
	info.TextModel = storygen.ModelOr(config.TextModel, APIModelText)
	info.ImageModel = storygen.ModelOr(config.ImageModel, APIModelImage)

	return &Generator{
		client:     client,
		info:       info,
		textModel:  info.TextModel,
		imageModel: info.ImageModel,
	}, nil
}

// NewWithAPIKey creates a generator with an API key for Gemini API.
func NewWithAPIKey(ctx context.Context, apiKey string) (*Generator, error) {
	return New(ctx, &storygen.ProviderConfig{
		Provider: storygen.ProviderGemini,
		APIKey:   apiKey,
	})
}

// Info describes this backend.
func (g *Generator) Info() storygen.ProviderInfo {
	return g.info
}

// GenerateText performs a single-turn completion.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{userContent(prompt)}

	result, err := g.client.Models.GenerateContent(ctx, g.textModel, contents, nil)
	if err != nil {
		return "", wrapError(err, g.textModel, "generation failed")
	}
	return responseText(result)
}

// GenerateImage returns the first inline image as a data URI.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{userContent(prompt)}
	genConfig := &genai.GenerateContentConfig{
		// Enable image output
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	result, err := g.client.Models.GenerateContent(ctx, g.imageModel, contents, genConfig)
	if err != nil {
		return "", wrapError(err, g.imageModel, "image generation failed")
	}

	if result == nil {
		return "", storygen.ErrNoImage
	}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return storygen.EncodeDataURI(part.InlineData.MIMEType, part.InlineData.Data), nil
			}
		}
	}
	return "", storygen.ErrNoImage
}

// Converse sends the full history as native multi-turn contents with the
// system instruction attached to the request config.
func (g *Generator) Converse(ctx context.Context, systemInstruction string, history []storygen.Turn, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == storygen.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, userContent(message))

	var genConfig *genai.GenerateContentConfig
	if strings.TrimSpace(systemInstruction) != "" {
		genConfig = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction}},
			},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.textModel, contents, genConfig)
	if err != nil {
		return "", wrapError(err, g.textModel, "conversation send failed")
	}
	return responseText(result)
}

// GenerateJSON requests schema-constrained JSON output.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string, schema *storygen.Schema) (string, error) {
	contents := []*genai.Content{userContent(prompt)}
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   convertSchema(schema),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.textModel, contents, genConfig)
	if err != nil {
		return "", wrapError(err, g.textModel, "structured generation failed")
	}
	return responseText(result)
}

// Close releases any resources held by the generator.
func (g *Generator) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

func userContent(text string) *genai.Content {
	return &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	}
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", storygen.ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return "", storygen.ErrEmptyResponse
	}
	return b.String(), nil
}

// convertSchema converts a storygen Schema to Gemini's schema format.
func convertSchema(s *storygen.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        schemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       convertSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}

func schemaType(t storygen.SchemaType) genai.Type {
	switch t {
	case storygen.TypeObject:
		return genai.TypeObject
	case storygen.TypeArray:
		return genai.TypeArray
	case storygen.TypeInteger:
		return genai.TypeInteger
	case storygen.TypeNumber:
		return genai.TypeNumber
	case storygen.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// wrapError converts Gemini rate limit errors into a RateLimitError and
// wraps everything else with op.
func wrapError(err error, model string, op string) error {
	if rlErr := checkRateLimitError(err, model); rlErr != nil {
		return rlErr
	}
	return fmt.Errorf("%s (%s): %w", op, model, err)
}

// checkRateLimitError returns a RateLimitError when err is a Gemini quota
// error, and nil otherwise.
func checkRateLimitError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return nil
		}
		apiErr = *apiErrPtr
	}

	if apiErr.Code != http.StatusTooManyRequests && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}

	return &storygen.RateLimitError{
		RetryAfter: 60 * time.Second, // Default; API doesn't reliably provide Retry-After
		LimitType:  "requests",
		Provider:   storygen.ProviderGemini,
		Err:        fmt.Errorf("%s: %w", model, err),
	}
}
