package storygen

import (
	"context"
	"io"
)

// Service is the single entry point the game calls. It delegates every
// capability to the Generator chosen at startup and adds no logic of its own.
type Service struct {
	gen      Generator
	provider Provider
}

// Ensure Service implements Generator.
var _ Generator = (*Service)(nil)

// NewService binds gen for the lifetime of the process.
func NewService(gen Generator, provider Provider) *Service {
	return &Service{gen: gen, provider: provider}
}

// Provider reports which backend the service is bound to.
func (s *Service) Provider() Provider {
	return s.provider
}

// Info describes the bound backend. Generators that do not describe
// themselves report only the provider.
func (s *Service) Info() ProviderInfo {
	if d, ok := s.gen.(interface{ Info() ProviderInfo }); ok {
		return d.Info()
	}
	return ProviderInfo{Provider: s.provider, Namespace: s.provider.Namespace()}
}

func (s *Service) GenerateText(ctx context.Context, prompt string) string {
	return s.gen.GenerateText(ctx, prompt)
}

func (s *Service) GenerateImage(ctx context.Context, prompt string) (string, bool) {
	return s.gen.GenerateImage(ctx, prompt)
}

func (s *Service) CreateChat(systemInstruction string) ChatSession {
	return s.gen.CreateChat(systemInstruction)
}

func (s *Service) GenerateStructured(ctx context.Context, prompt string, schema *Schema) map[string]any {
	return s.gen.GenerateStructured(ctx, prompt, schema)
}

// Close releases the bound generator if it holds resources.
func (s *Service) Close() error {
	if c, ok := s.gen.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
