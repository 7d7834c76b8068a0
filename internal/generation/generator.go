package generation

import (
	"context"
)

// TextGenerator defines the interface for the hosted text-generation model.
// This interface serves as a boundary between the application core and
// external AI/LLM services: implementations receive a fully built prompt
// and return the model's raw completion text, which may wrap JSON in
// markdown fences or explanatory prose.
type TextGenerator interface {
	// GenerateText sends the prompt to the model and returns the raw
	// completion text. It returns an error wrapping ErrGenerationFailed
	// (or ErrTransientFailure / ErrContentBlocked) if the call fails.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageData is a generated image as returned by the image model, before
// it has been uploaded anywhere.
type ImageData struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator defines the interface for the hosted image-generation
// model. A source image, when provided, is used as generation context.
type ImageGenerator interface {
	// GenerateImage produces a product image for the given prompt.
	// Returns an error wrapping ErrImageGenerationFailed if the model
	// call fails or yields no image.
	GenerateImage(ctx context.Context, prompt string, source []byte) (*ImageData, error)
}

// ImageStore uploads generated image bytes to durable object storage and
// returns a publicly resolvable URL.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string, key string) (string, error)
}
