package storygen

import (
	"context"
)

// MockBackend is a mock implementation of Backend.
type MockBackend struct {
	InfoFunc          func() ProviderInfo
	GenerateTextFunc  func(ctx context.Context, prompt string) (string, error)
	GenerateImageFunc func(ctx context.Context, prompt string) (string, error)
	ConverseFunc      func(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error)
	GenerateJSONFunc  func(ctx context.Context, prompt string, schema *Schema) (string, error)
	CloseFunc         func() error
}

func (m *MockBackend) Info() ProviderInfo {
	if m.InfoFunc != nil {
		return m.InfoFunc()
	}
	return ProviderInfo{Provider: "mock", Namespace: "mock"}
}

func (m *MockBackend) GenerateText(ctx context.Context, prompt string) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockBackend) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, prompt)
	}
	return "", ErrNoImage
}

func (m *MockBackend) Converse(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error) {
	if m.ConverseFunc != nil {
		return m.ConverseFunc(ctx, systemInstruction, history, message)
	}
	return "", nil
}

func (m *MockBackend) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, schema)
	}
	return "{}", nil
}

func (m *MockBackend) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockStorage records saved files in memory.
type MockStorage struct {
	SaveFileFunc func(ctx context.Context, data []byte, path string, contentType string) (string, error)
	Saved        map[string][]byte
}

func (m *MockStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if m.SaveFileFunc != nil {
		return m.SaveFileFunc(ctx, data, path, contentType)
	}
	if m.Saved == nil {
		m.Saved = make(map[string][]byte)
	}
	m.Saved[path] = data
	return "https://cdn.example.com/" + path, nil
}
