package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
	"github.com/ophelia-ai/ophelia-api/internal/platform/storage"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// Warning codes attached to a GenerationResult when a non-fatal step of
// the pipeline failed. The generated content is still returned.
const (
	// WarningImageFailed indicates the optional image generation step
	// failed; the content carries no image URL.
	WarningImageFailed = "image_generation_failed"

	// WarningPersistenceFailed indicates the generated content could not
	// be saved; it is returned but will not appear in history.
	WarningPersistenceFailed = "persistence_failed"
)

// GenerationResult is the outcome of one content-generation request:
// the validated content record plus warnings for any non-fatal failures.
type GenerationResult struct {
	Content  *domain.ContentRecord
	Warnings []string
}

// ContentService provides the content-generation pipeline and access to
// persisted content records.
type ContentService interface {
	// Generate runs the full pipeline for one request: build the prompt,
	// call the text model, parse and validate the reply, optionally
	// generate and upload a product image, and persist the result.
	// Image and persistence failures are reported as warnings, not errors.
	Generate(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*GenerationResult, error)

	// History returns the user's persisted content records, newest first.
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ContentRecord, error)

	// GetContent retrieves a single content record owned by the user.
	// Returns ErrNotOwned when the record belongs to another user.
	GetContent(ctx context.Context, userID, contentID uuid.UUID) (*domain.ContentRecord, error)

	// DeleteContent removes a content record owned by the user.
	// Returns ErrNotOwned when the record belongs to another user.
	DeleteContent(ctx context.Context, userID, contentID uuid.UUID) error

	// ListAllContent returns content records across all users, newest
	// first. Callers must enforce admin access before invoking it.
	ListAllContent(ctx context.Context, limit, offset int) ([]*domain.ContentRecord, error)
}

// ContentServiceImpl implements the ContentService interface.
type ContentServiceImpl struct {
	textGenerator  generation.TextGenerator
	imageGenerator generation.ImageGenerator
	imageStore     generation.ImageStore
	contentStore   store.ContentStore
	logger         *slog.Logger
}

// Ensure ContentServiceImpl implements ContentService
var _ ContentService = (*ContentServiceImpl)(nil)

// NewContentService creates a new ContentService.
// imageGenerator and imageStore may be nil; image generation is then
// reported as a warning whenever a request asks for it.
func NewContentService(
	textGenerator generation.TextGenerator,
	imageGenerator generation.ImageGenerator,
	imageStore generation.ImageStore,
	contentStore store.ContentStore,
	logger *slog.Logger,
) *ContentServiceImpl {
	if textGenerator == nil {
		panic("textGenerator cannot be nil")
	}
	if contentStore == nil {
		panic("contentStore cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ContentServiceImpl{
		textGenerator:  textGenerator,
		imageGenerator: imageGenerator,
		imageStore:     imageStore,
		contentStore:   contentStore,
		logger:         logger.With("component", "content_service"),
	}
}

// Generate implements ContentService.Generate
func (s *ContentServiceImpl) Generate(
	ctx context.Context,
	userID uuid.UUID,
	req domain.GenerationRequest,
) (*GenerationResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.logger.Debug("generation request validation failed",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.logger.Info("starting content generation",
		"user_id", userID,
		"artisan_name", req.ArtisanName,
		"generate_image", req.GenerateImage)

	prompt := generation.BuildContentPrompt(req.ArtisanName, req.CraftDescription)

	raw, err := s.textGenerator.GenerateText(ctx, prompt)
	if err != nil {
		s.logger.Error("text generation failed",
			"error", err,
			"user_id", userID)
		return nil, err
	}

	content, err := generation.ParseContent(raw)
	if err != nil {
		s.logger.Error("model response failed validation",
			"error", err,
			"user_id", userID,
			"response_length", len(raw))
		return nil, err
	}

	var warnings []string

	if req.GenerateImage {
		imageURL, err := s.generateImage(ctx, userID, req)
		if err != nil {
			// Image generation is optional: the text content is still
			// valuable without it.
			s.logger.Warn("image generation failed, continuing without image",
				"error", err,
				"user_id", userID)
			warnings = append(warnings, WarningImageFailed)
		} else {
			content.ImageURL = &imageURL
		}
	}

	record, err := domain.NewContentRecord(userID, req, *content)
	if err != nil {
		return nil, fmt.Errorf("failed to build content record: %w", err)
	}

	if err := s.contentStore.Create(ctx, record); err != nil {
		// The content was generated and validated; losing durability is
		// not a reason to discard it.
		s.logger.Warn("failed to persist generated content, returning it anyway",
			"error", err,
			"user_id", userID,
			"content_id", record.ID)
		warnings = append(warnings, WarningPersistenceFailed)
	}

	s.logger.Info("content generation completed",
		"user_id", userID,
		"content_id", record.ID,
		"has_image", record.ImageURL != nil,
		"warnings", len(warnings))

	return &GenerationResult{Content: record, Warnings: warnings}, nil
}

// generateImage runs the optional image step: generate the image from the
// craft description (using the uploaded source image as context when
// present), upload it, and return the public URL.
func (s *ContentServiceImpl) generateImage(
	ctx context.Context,
	userID uuid.UUID,
	req domain.GenerationRequest,
) (string, error) {
	if s.imageGenerator == nil || s.imageStore == nil {
		return "", fmt.Errorf("%w: image generation not configured", generation.ErrImageGenerationFailed)
	}

	prompt := generation.BuildImagePrompt(req.CraftDescription)

	image, err := s.imageGenerator.GenerateImage(ctx, prompt, req.SourceImage)
	if err != nil {
		return "", err
	}

	key := storage.ObjectKey(userID.String(), image.MIMEType)
	url, err := s.imageStore.Upload(ctx, image.Data, image.MIMEType, key)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", generation.ErrImageGenerationFailed, err)
	}

	return url, nil
}

// History implements ContentService.History
func (s *ContentServiceImpl) History(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.ContentRecord, error) {
	records, err := s.contentStore.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list content history",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("failed to retrieve content history: %w", err)
	}

	return records, nil
}

// GetContent implements ContentService.GetContent
func (s *ContentServiceImpl) GetContent(
	ctx context.Context,
	userID, contentID uuid.UUID,
) (*domain.ContentRecord, error) {
	record, err := s.contentStore.GetByID(ctx, contentID)
	if err != nil {
		if !errors.Is(err, store.ErrContentNotFound) {
			s.logger.Error("failed to retrieve content record",
				"error", err,
				"content_id", contentID)
		}
		return nil, err
	}

	if record.UserID != userID {
		s.logger.Warn("user attempted to access content owned by another user",
			"user_id", userID,
			"content_id", contentID)
		return nil, ErrNotOwned
	}

	return record, nil
}

// DeleteContent implements ContentService.DeleteContent
func (s *ContentServiceImpl) DeleteContent(
	ctx context.Context,
	userID, contentID uuid.UUID,
) error {
	// Ownership check before delete
	if _, err := s.GetContent(ctx, userID, contentID); err != nil {
		return err
	}

	if err := s.contentStore.Delete(ctx, contentID); err != nil {
		s.logger.Error("failed to delete content record",
			"error", err,
			"content_id", contentID)
		return err
	}

	return nil
}

// ListAllContent implements ContentService.ListAllContent
func (s *ContentServiceImpl) ListAllContent(
	ctx context.Context,
	limit, offset int,
) ([]*domain.ContentRecord, error) {
	records, err := s.contentStore.ListAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list all content", "error", err)
		return nil, fmt.Errorf("failed to retrieve content records: %w", err)
	}

	return records, nil
}
