// Package storage provides a Supabase Storage implementation of the
// generation.ImageStore interface. Generated images are uploaded to an
// object-storage bucket and served through their public URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/ophelia-ai/ophelia-api/internal/config"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
)

// SupabaseImageStore implements generation.ImageStore using the Supabase
// Storage HTTP API.
type SupabaseImageStore struct {
	client *storage_go.Client
	bucket string
	logger *slog.Logger
}

// Ensure SupabaseImageStore implements generation.ImageStore
var _ generation.ImageStore = (*SupabaseImageStore)(nil)

// NewSupabaseImageStore creates a new Supabase-backed image store from the
// given storage configuration.
// If logger is nil, a default logger will be used.
func NewSupabaseImageStore(cfg config.StorageConfig, logger *slog.Logger) (*SupabaseImageStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("storage URL cannot be empty")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("storage service key cannot be empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket cannot be empty")
	}

	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/") + "/storage/v1"
	client := storage_go.NewClient(baseURL, cfg.ServiceKey, nil)

	return &SupabaseImageStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "image_store")),
	}, nil
}

// Upload implements generation.ImageStore.Upload
// It stores the image bytes under the given key and returns the public URL.
func (s *SupabaseImageStore) Upload(
	ctx context.Context,
	data []byte,
	contentType string,
	key string,
) (string, error) {
	if len(data) == 0 {
		return "", errors.New("image data cannot be empty")
	}
	if key == "" {
		return "", errors.New("object key cannot be empty")
	}

	if contentType == "" {
		contentType = "image/png"
	}

	s.logger.InfoContext(ctx, "uploading generated image",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("size_bytes", len(data)))

	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "image upload failed",
			slog.String("bucket", s.bucket),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to upload image to storage: %w", err)
	}

	publicURL := s.client.GetPublicUrl(s.bucket, key).SignedURL

	s.logger.InfoContext(ctx, "generated image uploaded",
		slog.String("bucket", s.bucket),
		slog.String("key", key))

	return publicURL, nil
}

// ObjectKey builds a collision-resistant object key for a user's generated
// image, namespaced per user so access policies can scope by prefix.
func ObjectKey(userID string, mimeType string) string {
	ext := extensionFor(mimeType)
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("generated-images/user-%s/generated_%d_%06d%s",
		userID, timestamp, rand.Intn(999999), ext)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
