package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when the text-generation call fails
	// at the transport or API level. The model never produced usable text.
	ErrGenerationFailed = errors.New("text generation request failed")

	// ErrMalformedResponse is returned when the model's reply could not be
	// parsed into the required JSON structure (bad fence, invalid JSON).
	// Distinct from ErrGenerationFailed: the transport succeeded but the
	// content contract was violated.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrIncompleteResponse is returned when the model's reply parsed as
	// JSON but is missing one or more required fields. The wrapped message
	// names the missing keys.
	ErrIncompleteResponse = errors.New("incomplete model response")

	// ErrContentBlocked is returned when the model blocks the request due
	// to safety filters.
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrTransientFailure is returned for temporary upstream errors that
	// might resolve on retry.
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrImageGenerationFailed is returned when the optional image
	// generation step fails. Callers treat this as non-fatal.
	ErrImageGenerationFailed = errors.New("image generation failed")

	// ErrInvalidConfig is returned when a generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
