// Package storage persists donation proof media and returns public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

var ErrInvalidKey = errors.New("storage: invalid key")

// Provider stores media objects.
type Provider interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error)
	Delete(ctx context.Context, key string) error
}

type UploadRequest struct {
	Key         string
	Reader      io.Reader
	ContentType string
	Size        int64
	Metadata    map[string]string
}

type UploadResponse struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	LocalDir      string
	LocalBaseURL  string
	S3Bucket      string
	S3Region      string
	PublicBaseURL string
}

// New builds the provider named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalStorage(cfg.LocalDir, cfg.LocalBaseURL)
	case BackendS3:
		return NewS3Storage(ctx, cfg.S3Region, cfg.S3Bucket, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

// allowedContentTypes maps accepted media types to file extensions.
var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

// ExtensionFor returns the file extension for an accepted media type.
func ExtensionFor(contentType string) (string, bool) {
	ext, ok := allowedContentTypes[contentType]
	return ext, ok
}
