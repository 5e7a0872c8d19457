package storygen

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Storage is an interface for persisting generated images so that inline
// image data can be replaced by a short URL. Implementations can wrap
// existing storage clients (GCS, S3, etc.).
type Storage interface {
	// SaveFile saves image data to storage and returns the public URL.
	// The path should include the full object path (e.g., "images/level-1.png").
	// The contentType is typically the image's MIME type (e.g., "image/png").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult contains information about a saved image.
type StorageResult struct {
	// URL is the public URL where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// DataURI is a decoded "data:<mime>;base64,<payload>" reference.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// EncodeDataURI renders image bytes as a data URI.
func EncodeDataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI. ok is false when ref is not a
// base64 data URI.
func ParseDataURI(ref string) (DataURI, bool) {
	rest, found := strings.CutPrefix(ref, "data:")
	if !found {
		return DataURI{}, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return DataURI{}, false
	}
	mimeType, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return DataURI{}, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, false
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return DataURI{MIMEType: mimeType, Data: data}, true
}

// SaveToStorage persists an inline image reference under basePath and
// returns where it was stored. References that are already URLs are
// returned unchanged with a zero Size.
func SaveToStorage(
	ctx context.Context,
	storage Storage,
	ref string,
	basePath string) (StorageResult, error) {

	if storage == nil {
		return StorageResult{}, ErrStorageNotConfigured
	}

	img, ok := ParseDataURI(ref)
	if !ok {
		return StorageResult{URL: ref}, nil
	}

	path := basePath + "." + extensionFromMIME(img.MIMEType)
	u, err := storage.SaveFile(ctx, img.Data, path, img.MIMEType)
	if err != nil {
		return StorageResult{}, err
	}

	return StorageResult{
		URL:  u,
		Path: path,
		Size: len(img.Data),
	}, nil
}

// DirStorage stores images on the local filesystem and returns file:// URLs.
type DirStorage struct {
	Root string
}

// NewDirStorage returns a DirStorage rooted at dir, creating it if needed.
func NewDirStorage(dir string) (*DirStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &DirStorage{Root: abs}, nil
}

// SaveFile implements Storage.
func (s *DirStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full := filepath.Join(s.Root, filepath.FromSlash(filepath.Clean("/"+path)))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", full, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

// extensionFromMIME returns a file extension for common image MIME types.
func extensionFromMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
