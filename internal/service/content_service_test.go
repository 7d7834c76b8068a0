package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// modelReply is a well-formed model response wrapped in a markdown fence,
// the shape the hosted model is instructed to produce.
const modelReply = "```json\n" + `{
	"brandStory": "Three generations of potters shaped this clay.",
	"instagramCaption": "From our wheel to your home.",
	"facebookCaption": "Discover handcrafted terracotta pottery.",
	"twitterCaption": "Handmade. Heartfelt. Terracotta.",
	"reelScript": "Open on spinning wheel, hands shaping wet clay.",
	"suggestedPrice": 1450,
	"tags": ["terracotta", "handmade", "pottery"]
}` + "\n```"

// fakeTextGenerator records prompts and returns a canned reply.
type fakeTextGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeTextGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeImageGenerator returns canned image bytes or an error.
type fakeImageGenerator struct {
	image *generation.ImageData
	err   error
	calls int
}

func (f *fakeImageGenerator) GenerateImage(_ context.Context, _ string, _ []byte) (*generation.ImageData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.image, nil
}

// fakeImageStore returns a fixed URL for any upload.
type fakeImageStore struct {
	url   string
	err   error
	keys  []string
	calls int
}

func (f *fakeImageStore) Upload(_ context.Context, _ []byte, _ string, key string) (string, error) {
	f.calls++
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// fakeContentStore is an in-memory ContentStore.
type fakeContentStore struct {
	records   map[uuid.UUID]*domain.ContentRecord
	createErr error
	creates   int
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{records: make(map[uuid.UUID]*domain.ContentRecord)}
}

func (f *fakeContentStore) Create(_ context.Context, record *domain.ContentRecord) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeContentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ContentRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, store.ErrContentNotFound
	}
	return record, nil
}

func (f *fakeContentStore) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]*domain.ContentRecord, error) {
	result := make([]*domain.ContentRecord, 0)
	for _, record := range f.records {
		if record.UserID == userID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (f *fakeContentStore) ListAll(_ context.Context, _, _ int) ([]*domain.ContentRecord, error) {
	result := make([]*domain.ContentRecord, 0, len(f.records))
	for _, record := range f.records {
		result = append(result, record)
	}
	return result, nil
}

func (f *fakeContentStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return store.ErrContentNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeContentStore) WithTx(*sql.Tx) store.ContentStore {
	return f
}

// newTestService wires fakes into a service. The image collaborators are
// interface-typed so a nil argument means "not configured" rather than a
// non-nil interface wrapping a nil pointer.
func newTestService(
	text generation.TextGenerator,
	image generation.ImageGenerator,
	imageStore generation.ImageStore,
	contentStore *fakeContentStore,
) *ContentServiceImpl {
	return NewContentService(text, image, imageStore, contentStore, slog.Default())
}

func validRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		ArtisanName:      "Priya Sharma",
		CraftDescription: "hand-thrown terracotta pots with traditional Rajasthani patterns",
	}
}

func TestGenerateFullPipeline(t *testing.T) {
	t.Parallel()

	text := &fakeTextGenerator{reply: modelReply}
	contentStore := newFakeContentStore()
	svc := newTestService(text, nil, nil, contentStore)

	userID := uuid.New()
	result, err := svc.Generate(context.Background(), userID, validRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Content)

	// prompt embeds both request fields
	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], "Priya Sharma")
	assert.Contains(t, text.prompts[0], "hand-thrown terracotta pots")

	content := result.Content
	assert.Equal(t, userID, content.UserID)
	assert.Equal(t, "Priya Sharma", content.ArtisanName)
	assert.Equal(t, "Three generations of potters shaped this clay.", content.BrandStory)
	assert.Equal(t, domain.Price(1450), content.SuggestedPrice)
	assert.Equal(t, []string{"terracotta", "handmade", "pottery"}, content.Tags)
	assert.Nil(t, content.ImageURL)
	assert.Empty(t, result.Warnings)

	// persisted
	assert.Equal(t, 1, contentStore.creates)
	stored, err := contentStore.GetByID(context.Background(), content.ID)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  domain.GenerationRequest
	}{
		{"empty artisan name", domain.GenerationRequest{CraftDescription: "pots"}},
		{"empty craft description", domain.GenerationRequest{ArtisanName: "Priya"}},
		{"whitespace only", domain.GenerationRequest{ArtisanName: "   ", CraftDescription: "\t"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			text := &fakeTextGenerator{reply: modelReply}
			svc := newTestService(text, nil, nil, newFakeContentStore())

			_, err := svc.Generate(context.Background(), uuid.New(), tc.req)
			assert.ErrorIs(t, err, domain.ErrValidation)

			// the model is never called for an invalid request
			assert.Empty(t, text.prompts)
		})
	}
}

func TestGenerateImageSuccessSetsURL(t *testing.T) {
	t.Parallel()

	text := &fakeTextGenerator{reply: modelReply}
	image := &fakeImageGenerator{image: &generation.ImageData{
		Data:     []byte{0x89, 0x50},
		MIMEType: "image/png",
	}}
	imageStore := &fakeImageStore{url: "https://cdn.example.com/generated.png"}
	svc := newTestService(text, image, imageStore, newFakeContentStore())

	req := validRequest()
	req.GenerateImage = true

	result, err := svc.Generate(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	require.NotNil(t, result.Content.ImageURL)
	assert.Equal(t, "https://cdn.example.com/generated.png", *result.Content.ImageURL)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 1, image.calls)
	assert.Equal(t, 1, imageStore.calls)
	require.Len(t, imageStore.keys, 1)
	assert.True(t, strings.HasPrefix(imageStore.keys[0], "generated-images/user-"))
}

func TestGenerateImageFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	text := &fakeTextGenerator{reply: modelReply}
	image := &fakeImageGenerator{err: generation.ErrImageGenerationFailed}
	imageStore := &fakeImageStore{url: "unused"}
	contentStore := newFakeContentStore()
	svc := newTestService(text, image, imageStore, contentStore)

	req := validRequest()
	req.GenerateImage = true

	result, err := svc.Generate(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	assert.Nil(t, result.Content.ImageURL)
	assert.Equal(t, []string{WarningImageFailed}, result.Warnings)

	// the record is persisted without the image
	assert.Equal(t, 1, contentStore.creates)
}

func TestGenerateImageNotConfigured(t *testing.T) {
	t.Parallel()

	text := &fakeTextGenerator{reply: modelReply}
	svc := newTestService(text, nil, nil, newFakeContentStore())

	req := validRequest()
	req.GenerateImage = true

	result, err := svc.Generate(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Nil(t, result.Content.ImageURL)
	assert.Equal(t, []string{WarningImageFailed}, result.Warnings)
}

func TestGeneratePersistenceFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	text := &fakeTextGenerator{reply: modelReply}
	contentStore := newFakeContentStore()
	contentStore.createErr = errors.New("connection refused")
	svc := newTestService(text, nil, nil, contentStore)

	result, err := svc.Generate(context.Background(), uuid.New(), validRequest())
	require.NoError(t, err)

	// content is returned even though it was not saved
	assert.Equal(t, "Three generations of potters shaped this clay.", result.Content.BrandStory)
	assert.Equal(t, []string{WarningPersistenceFailed}, result.Warnings)
}

func TestGeneratePropagatesModelErrors(t *testing.T) {
	t.Parallel()

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		text := &fakeTextGenerator{err: generation.ErrGenerationFailed}
		contentStore := newFakeContentStore()
		svc := newTestService(text, nil, nil, contentStore)

		_, err := svc.Generate(context.Background(), uuid.New(), validRequest())
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
		assert.Zero(t, contentStore.creates)
	})

	t.Run("malformed reply", func(t *testing.T) {
		t.Parallel()
		text := &fakeTextGenerator{reply: "I could not produce JSON today."}
		svc := newTestService(text, nil, nil, newFakeContentStore())

		_, err := svc.Generate(context.Background(), uuid.New(), validRequest())
		assert.ErrorIs(t, err, generation.ErrMalformedResponse)
	})

	t.Run("incomplete reply", func(t *testing.T) {
		t.Parallel()
		text := &fakeTextGenerator{reply: "```json\n{\"brandStory\": \"only one field\"}\n```"}
		svc := newTestService(text, nil, nil, newFakeContentStore())

		_, err := svc.Generate(context.Background(), uuid.New(), validRequest())
		assert.ErrorIs(t, err, generation.ErrIncompleteResponse)
	})
}

func TestGetContentOwnership(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	stranger := uuid.New()

	contentStore := newFakeContentStore()
	text := &fakeTextGenerator{reply: modelReply}
	svc := newTestService(text, nil, nil, contentStore)

	result, err := svc.Generate(context.Background(), owner, validRequest())
	require.NoError(t, err)
	contentID := result.Content.ID

	t.Run("owner can read", func(t *testing.T) {
		record, err := svc.GetContent(context.Background(), owner, contentID)
		require.NoError(t, err)
		assert.Equal(t, contentID, record.ID)
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		_, err := svc.GetContent(context.Background(), stranger, contentID)
		assert.ErrorIs(t, err, ErrNotOwned)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := svc.GetContent(context.Background(), owner, uuid.New())
		assert.ErrorIs(t, err, store.ErrContentNotFound)
	})
}

func TestDeleteContent(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	stranger := uuid.New()

	contentStore := newFakeContentStore()
	text := &fakeTextGenerator{reply: modelReply}
	svc := newTestService(text, nil, nil, contentStore)

	result, err := svc.Generate(context.Background(), owner, validRequest())
	require.NoError(t, err)
	contentID := result.Content.ID

	// stranger cannot delete, and the record survives
	err = svc.DeleteContent(context.Background(), stranger, contentID)
	assert.ErrorIs(t, err, ErrNotOwned)
	_, err = contentStore.GetByID(context.Background(), contentID)
	assert.NoError(t, err)

	// owner deletes
	require.NoError(t, svc.DeleteContent(context.Background(), owner, contentID))
	_, err = contentStore.GetByID(context.Background(), contentID)
	assert.ErrorIs(t, err, store.ErrContentNotFound)
}

func TestHistoryReturnsOnlyOwnRecords(t *testing.T) {
	t.Parallel()

	alice := uuid.New()
	bob := uuid.New()

	contentStore := newFakeContentStore()
	text := &fakeTextGenerator{reply: modelReply}
	svc := newTestService(text, nil, nil, contentStore)

	_, err := svc.Generate(context.Background(), alice, validRequest())
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), alice, validRequest())
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), bob, validRequest())
	require.NoError(t, err)

	aliceHistory, err := svc.History(context.Background(), alice, 50, 0)
	require.NoError(t, err)
	assert.Len(t, aliceHistory, 2)

	all, err := svc.ListAllContent(context.Background(), 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
