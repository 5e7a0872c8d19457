package storygen

import "context"

// OfflineBackend fails every call with ErrOffline. It is bound when no real
// backend could be constructed, so every capability resolves to its safe
// default and call sites use their fallback content.
type OfflineBackend struct{}

// Ensure OfflineBackend implements Backend.
var _ Backend = OfflineBackend{}

func (OfflineBackend) Info() ProviderInfo {
	return ProviderInfo{
		Provider:  ProviderOffline,
		Namespace: ProviderOffline.Namespace(),
	}
}

func (OfflineBackend) GenerateText(context.Context, string) (string, error) {
	return "", ErrOffline
}

func (OfflineBackend) GenerateImage(context.Context, string) (string, error) {
	return "", ErrOffline
}

func (OfflineBackend) Converse(context.Context, string, []Turn, string) (string, error) {
	return "", ErrOffline
}

func (OfflineBackend) GenerateJSON(context.Context, string, *Schema) (string, error) {
	return "", ErrOffline
}

func (OfflineBackend) Close() error {
	return nil
}
