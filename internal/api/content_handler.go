package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/ophelia-ai/ophelia-api/internal/api/shared"
	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/quota"
	"github.com/ophelia-ai/ophelia-api/internal/service"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// Pagination bounds for listing endpoints.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// GenerateContentRequest represents the request body for content generation.
// SourceImage, when present, is a base64-encoded product photo used as
// context for image generation.
type GenerateContentRequest struct {
	ArtisanName      string `json:"artisanName"      validate:"required,min=1,max=200"`
	CraftDescription string `json:"craftDescription" validate:"required,min=1,max=4000"`
	GenerateImage    bool   `json:"generateImage"`
	SourceImage      string `json:"sourceImage,omitempty"`
}

// GenerateContentResponse is the success payload for content generation:
// the persisted record fields plus warnings for any non-fatal failures.
type GenerateContentResponse struct {
	*domain.ContentRecord
	Warnings []string `json:"warnings,omitempty"`
}

// ContentListResponse wraps a page of content records.
type ContentListResponse struct {
	Items  []*domain.ContentRecord `json:"items"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// ContentHandler handles content-generation HTTP requests.
type ContentHandler struct {
	contentService service.ContentService
	userStore      store.UserStore
	limiter        quota.Limiter
	validator      *validator.Validate
}

// NewContentHandler creates a new ContentHandler.
// limiter may be nil, in which case no quota is enforced.
func NewContentHandler(
	contentService service.ContentService,
	userStore store.UserStore,
	limiter quota.Limiter,
) *ContentHandler {
	if limiter == nil {
		limiter = quota.NoopLimiter{}
	}
	return &ContentHandler{
		contentService: contentService,
		userStore:      userStore,
		limiter:        limiter,
		validator:      validator.New(),
	}
}

// GenerateContent handles POST /api/content/generate requests.
func (h *ContentHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req GenerateContentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	var sourceImage []byte
	if req.SourceImage != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.SourceImage)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "sourceImage must be base64 encoded")
			return
		}
		sourceImage = decoded
	}

	if err := h.limiter.Allow(r.Context(), userID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.contentService.Generate(r.Context(), userID, domain.GenerationRequest{
		ArtisanName:      req.ArtisanName,
		CraftDescription: req.CraftDescription,
		GenerateImage:    req.GenerateImage,
		SourceImage:      sourceImage,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GenerateContentResponse{
		ContentRecord: result.Content,
		Warnings:      result.Warnings,
	})
}

// ListHistory handles GET /api/content requests.
// It returns the authenticated user's generation history, newest first.
func (h *ContentHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	limit, offset := parsePagination(r)

	records, err := h.contentService.History(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve content history")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ContentListResponse{
		Items:  records,
		Limit:  limit,
		Offset: offset,
	})
}

// GetContent handles GET /api/content/{id} requests.
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	userID, contentID, ok := handleUserIDAndPathUUID(w, r, "id", nil)
	if !ok {
		return
	}

	record, err := h.contentService.GetContent(r.Context(), userID, contentID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, record)
}

// DeleteContent handles DELETE /api/content/{id} requests.
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	userID, contentID, ok := handleUserIDAndPathUUID(w, r, "id", nil)
	if !ok {
		return
	}

	if err := h.contentService.DeleteContent(r.Context(), userID, contentID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminListContent handles GET /api/admin/content requests.
// Only users with the admin role may list content across all users.
func (h *ContentHandler) AdminListContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	user, err := h.userStore.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load user for admin check", "error", err, "user_id", userID)
		HandleAPIError(w, r, err, "")
		return
	}

	if !user.IsAdmin() {
		HandleAPIError(w, r, service.ErrAdminRequired, "")
		return
	}

	limit, offset := parsePagination(r)

	records, err := h.contentService.ListAllContent(r.Context(), limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve content records")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ContentListResponse{
		Items:  records,
		Limit:  limit,
		Offset: offset,
	})
}

// parsePagination reads limit and offset query parameters, applying
// defaults and the maximum page size.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	offset = 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
