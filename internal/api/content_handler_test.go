package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophelia-ai/ophelia-api/internal/api/shared"
	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
	"github.com/ophelia-ai/ophelia-api/internal/quota"
	"github.com/ophelia-ai/ophelia-api/internal/service"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// stubContentService implements service.ContentService with function fields.
type stubContentService struct {
	generateFunc func(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*service.GenerationResult, error)
	historyFunc  func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ContentRecord, error)
	getFunc      func(ctx context.Context, userID, contentID uuid.UUID) (*domain.ContentRecord, error)
	deleteFunc   func(ctx context.Context, userID, contentID uuid.UUID) error
	listAllFunc  func(ctx context.Context, limit, offset int) ([]*domain.ContentRecord, error)
}

func (s *stubContentService) Generate(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*service.GenerationResult, error) {
	return s.generateFunc(ctx, userID, req)
}

func (s *stubContentService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ContentRecord, error) {
	return s.historyFunc(ctx, userID, limit, offset)
}

func (s *stubContentService) GetContent(ctx context.Context, userID, contentID uuid.UUID) (*domain.ContentRecord, error) {
	return s.getFunc(ctx, userID, contentID)
}

func (s *stubContentService) DeleteContent(ctx context.Context, userID, contentID uuid.UUID) error {
	return s.deleteFunc(ctx, userID, contentID)
}

func (s *stubContentService) ListAllContent(ctx context.Context, limit, offset int) ([]*domain.ContentRecord, error) {
	return s.listAllFunc(ctx, limit, offset)
}

// stubUserStore implements store.UserStore returning a fixed user.
type stubUserStore struct {
	user *domain.User
	err  error
}

func (s *stubUserStore) Create(context.Context, *domain.User) error { return nil }

func (s *stubUserStore) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return s.user, s.err
}

func (s *stubUserStore) GetByEmail(context.Context, string) (*domain.User, error) {
	return s.user, s.err
}

func (s *stubUserStore) Update(context.Context, *domain.User) error { return nil }
func (s *stubUserStore) Delete(context.Context, uuid.UUID) error    { return nil }
func (s *stubUserStore) WithTx(*sql.Tx) store.UserStore             { return s }

// rejectingLimiter always reports quota exhaustion.
type rejectingLimiter struct{}

func (rejectingLimiter) Allow(context.Context, uuid.UUID) error {
	return quota.ErrQuotaExceeded
}

func sampleRecord(userID uuid.UUID) *domain.ContentRecord {
	return &domain.ContentRecord{
		ID:               uuid.New(),
		UserID:           userID,
		ArtisanName:      "Priya Sharma",
		CraftDescription: "hand-thrown terracotta pots",
		GeneratedContent: domain.GeneratedContent{
			BrandStory:       "Three generations of potters.",
			InstagramCaption: "From our wheel to your home.",
			FacebookCaption:  "Discover handcrafted pottery.",
			TwitterCaption:   "Handmade. Heartfelt.",
			ReelScript:       "Open on a spinning wheel.",
			SuggestedPrice:   1450,
			Tags:             []string{"terracotta", "handmade"},
		},
		CreatedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

// authedRequest builds a request carrying the user ID the auth middleware
// would have set.
func authedRequest(t *testing.T, method, target string, body []byte, userID uuid.UUID) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
	return req.WithContext(ctx)
}

func newContentRouter(h *ContentHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/content/generate", h.GenerateContent)
	r.Get("/api/content", h.ListHistory)
	r.Get("/api/content/{id}", h.GetContent)
	r.Delete("/api/content/{id}", h.DeleteContent)
	r.Get("/api/admin/content", h.AdminListContent)
	return r
}

func TestGenerateContentEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	validBody := []byte(`{"artisanName":"Priya Sharma","craftDescription":"hand-thrown terracotta pots"}`)

	t.Run("success returns content with camelCase keys", func(t *testing.T) {
		t.Parallel()

		record := sampleRecord(userID)
		svc := &stubContentService{
			generateFunc: func(_ context.Context, uid uuid.UUID, req domain.GenerationRequest) (*service.GenerationResult, error) {
				assert.Equal(t, userID, uid)
				assert.Equal(t, "Priya Sharma", req.ArtisanName)
				return &service.GenerationResult{Content: record}, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", validBody, userID))

		require.Equal(t, http.StatusOK, recorder.Code)

		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		for _, key := range []string{
			"brandStory", "instagramCaption", "facebookCaption",
			"twitterCaption", "reelScript", "suggestedPrice", "tags",
		} {
			assert.Contains(t, payload, key)
		}
		assert.NotContains(t, payload, "warnings")
	})

	t.Run("warnings are surfaced", func(t *testing.T) {
		t.Parallel()

		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				return &service.GenerationResult{
					Content:  sampleRecord(userID),
					Warnings: []string{service.WarningPersistenceFailed},
				}, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", validBody, userID))

		require.Equal(t, http.StatusOK, recorder.Code)

		var payload struct {
			Warnings []string `json:"warnings"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		assert.Equal(t, []string{service.WarningPersistenceFailed}, payload.Warnings)
	})

	t.Run("missing fields rejected before the service is called", func(t *testing.T) {
		t.Parallel()

		called := false
		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				called = true
				return nil, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		body := []byte(`{"artisanName":"Priya Sharma"}`)
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", body, userID))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.False(t, called)
	})

	t.Run("unauthenticated request rejected before the service is called", func(t *testing.T) {
		t.Parallel()

		called := false
		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				called = true
				return nil, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/content/generate", bytes.NewReader(validBody))
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.False(t, called)
	})

	t.Run("quota exhaustion returns 429", func(t *testing.T) {
		t.Parallel()

		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				t.Fatal("service must not be called when quota is exhausted")
				return nil, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, rejectingLimiter{})
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", validBody, userID))

		assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	})

	t.Run("upstream model failure returns 502", func(t *testing.T) {
		t.Parallel()

		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				return nil, generation.ErrMalformedResponse
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", validBody, userID))

		assert.Equal(t, http.StatusBadGateway, recorder.Code)
	})

	t.Run("invalid base64 source image rejected", func(t *testing.T) {
		t.Parallel()

		svc := &stubContentService{
			generateFunc: func(_ context.Context, _ uuid.UUID, _ domain.GenerationRequest) (*service.GenerationResult, error) {
				t.Fatal("service must not be called for invalid input")
				return nil, nil
			},
		}
		handler := NewContentHandler(svc, &stubUserStore{}, nil)
		router := newContentRouter(handler)

		body := []byte(`{"artisanName":"P","craftDescription":"pots","generateImage":true,"sourceImage":"%%%not-base64%%%"}`)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, authedRequest(t, "POST", "/api/content/generate", body, userID))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestGetContentEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	record := sampleRecord(userID)

	newHandler := func(getErr error) *chi.Mux {
		svc := &stubContentService{
			getFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.ContentRecord, error) {
				if getErr != nil {
					return nil, getErr
				}
				return record, nil
			},
		}
		return newContentRouter(NewContentHandler(svc, &stubUserStore{}, nil))
	}

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newHandler(nil).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/content/"+record.ID.String(), nil, userID))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("not owned", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newHandler(service.ErrNotOwned).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/content/"+record.ID.String(), nil, userID))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newHandler(store.ErrContentNotFound).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/content/"+record.ID.String(), nil, userID))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newHandler(nil).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/content/not-a-uuid", nil, userID))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestDeleteContentEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contentID := uuid.New()

	svc := &stubContentService{
		deleteFunc: func(_ context.Context, uid, cid uuid.UUID) error {
			assert.Equal(t, userID, uid)
			assert.Equal(t, contentID, cid)
			return nil
		},
	}
	router := newContentRouter(NewContentHandler(svc, &stubUserStore{}, nil))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder,
		authedRequest(t, "DELETE", "/api/content/"+contentID.String(), nil, userID))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestListHistoryEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	svc := &stubContentService{
		historyFunc: func(_ context.Context, uid uuid.UUID, limit, offset int) ([]*domain.ContentRecord, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return []*domain.ContentRecord{sampleRecord(userID)}, nil
		},
	}
	router := newContentRouter(NewContentHandler(svc, &stubUserStore{}, nil))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder,
		authedRequest(t, "GET", "/api/content?limit=10&offset=20", nil, userID))

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload ContentListResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload.Items, 1)
	assert.Equal(t, 10, payload.Limit)
	assert.Equal(t, 20, payload.Offset)
}

func TestAdminListContentEndpoint(t *testing.T) {
	t.Parallel()

	adminID := uuid.New()
	artisanID := uuid.New()

	newRouter := func(role domain.UserRole) *chi.Mux {
		svc := &stubContentService{
			listAllFunc: func(_ context.Context, _, _ int) ([]*domain.ContentRecord, error) {
				return []*domain.ContentRecord{sampleRecord(artisanID)}, nil
			},
		}
		users := &stubUserStore{user: &domain.User{ID: adminID, Role: role}}
		return newContentRouter(NewContentHandler(svc, users, nil))
	}

	t.Run("admin can list all", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newRouter(domain.RoleAdmin).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/admin/content", nil, adminID))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("artisan is rejected", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		newRouter(domain.RoleArtisan).ServeHTTP(recorder,
			authedRequest(t, "GET", "/api/admin/content", nil, adminID))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"defaults", "", defaultPageSize, 0},
		{"explicit values", "?limit=10&offset=5", 10, 5},
		{"limit capped", "?limit=5000", maxPageSize, 0},
		{"garbage ignored", "?limit=abc&offset=-3", defaultPageSize, 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/api/content"+tc.query, nil)
			limit, offset := parsePagination(req)
			assert.Equal(t, tc.expectedLimit, limit)
			assert.Equal(t, tc.expectedOffset, offset)
		})
	}
}
