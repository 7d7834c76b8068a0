package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for generation requests and content records
var (
	ErrEmptyArtisanName      = errors.New("artisan name cannot be empty")
	ErrEmptyCraftDescription = errors.New("craft description cannot be empty")
	ErrEmptyContentID        = errors.New("content ID cannot be empty")
	ErrEmptyContentUserID    = errors.New("content user ID cannot be empty")
	ErrEmptyTags             = errors.New("tags must contain at least one entry")
	ErrInvalidPrice          = errors.New("suggested price must be numeric")
)

// GenerationRequest carries the caller-supplied inputs for one content
// generation call. SourceImage, when present, is the raw bytes of an
// uploaded craft photo used as context for image generation.
type GenerationRequest struct {
	ArtisanName      string `json:"artisanName"`
	CraftDescription string `json:"craftDescription"`
	GenerateImage    bool   `json:"generateImage"`
	SourceImage      []byte `json:"-"`
}

// Normalize trims surrounding whitespace from the free-text fields.
// It is called before validation so that whitespace-only input is
// rejected rather than stored.
func (r *GenerationRequest) Normalize() {
	r.ArtisanName = strings.TrimSpace(r.ArtisanName)
	r.CraftDescription = strings.TrimSpace(r.CraftDescription)
}

// Validate checks that the request carries the two mandatory inputs.
// Returns an error if either is empty after normalization.
func (r *GenerationRequest) Validate() error {
	if r.ArtisanName == "" {
		return ErrEmptyArtisanName
	}
	if r.CraftDescription == "" {
		return ErrEmptyCraftDescription
	}
	return nil
}

// Price is a currency-agnostic numeric amount. The model sometimes emits
// the suggested price as a quoted string ("45.00") rather than a JSON
// number, so unmarshalling accepts both forms.
type Price float64

// UnmarshalJSON implements json.Unmarshaler, accepting either a JSON
// number or a numeric string.
func (p *Price) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Price(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, string(data))
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	*p = Price(n)
	return nil
}

// GeneratedContent is the structured marketing bundle produced by one
// generation call. The field names mirror the JSON keys the model is
// instructed to emit.
type GeneratedContent struct {
	BrandStory       string   `json:"brandStory"`
	InstagramCaption string   `json:"instagramCaption"`
	FacebookCaption  string   `json:"facebookCaption"`
	TwitterCaption   string   `json:"twitterCaption"`
	ReelScript       string   `json:"reelScript"`
	SuggestedPrice   Price    `json:"suggestedPrice"`
	Tags             []string `json:"tags"`

	// ImageURL is set only when image generation was requested and
	// succeeded. Stored tags never carry the '#' prefix; presentation
	// layers add it.
	ImageURL *string `json:"imageUrl"`
}

// Validate checks the shape invariants of generated content: tags must
// have at least one entry when present and must not carry a '#' prefix.
// Content quality is never judged here.
func (c *GeneratedContent) Validate() error {
	if c.Tags != nil && len(c.Tags) == 0 {
		return ErrEmptyTags
	}
	for _, tag := range c.Tags {
		if strings.HasPrefix(tag, "#") {
			return fmt.Errorf("tag %q must not include the '#' prefix", tag)
		}
	}
	return nil
}

// NormalizeTags strips a leading '#' from each tag. The prompt asks the
// model for hashtags without the prefix, but models do not always comply,
// and the stored form must be prefix-free.
func (c *GeneratedContent) NormalizeTags() {
	for i, tag := range c.Tags {
		c.Tags[i] = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	}
}

// ContentRecord is a persisted generation result. It denormalizes the
// request fields so history views can render without a join. Records are
// created exactly once per successful generation and never mutated.
type ContentRecord struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	ArtisanName      string    `json:"artisanName"`
	CraftDescription string    `json:"craftDescription"`
	GeneratedContent
	CreatedAt time.Time `json:"createdAt"`
}

// NewContentRecord creates a ContentRecord from a validated request and
// generated content, generating a new ID and setting the creation
// timestamp. Returns an error if validation fails.
func NewContentRecord(
	userID uuid.UUID,
	req GenerationRequest,
	content GeneratedContent,
) (*ContentRecord, error) {
	record := &ContentRecord{
		ID:               uuid.New(),
		UserID:           userID,
		ArtisanName:      req.ArtisanName,
		CraftDescription: req.CraftDescription,
		GeneratedContent: content,
		CreatedAt:        time.Now().UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the ContentRecord has valid data.
// Returns an error if any field fails validation.
func (r *ContentRecord) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyContentID
	}

	if r.UserID == uuid.Nil {
		return ErrEmptyContentUserID
	}

	if r.ArtisanName == "" {
		return ErrEmptyArtisanName
	}

	if r.CraftDescription == "" {
		return ErrEmptyCraftDescription
	}

	return r.GeneratedContent.Validate()
}
