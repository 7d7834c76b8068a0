package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ophelia-ai/ophelia-api/internal/config"
	"github.com/ophelia-ai/ophelia-api/internal/generation"
)

// Generator implements the generation.TextGenerator and
// generation.ImageGenerator interfaces using Google's Gemini API.
type Generator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// generate performs a single model call. It wraps the client so tests
	// can observe call counts without the network.
	generate func(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// Ensure Generator implements both generation interfaces
var (
	_ generation.TextGenerator  = (*Generator)(nil)
	_ generation.ImageGenerator = (*Generator)(nil)
)

// NewGenerator creates a new Generator with the provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - config: LLM configuration containing API key, model names, and retry settings
//
// Returns:
//   - A properly initialized Generator or an error if initialization fails
func NewGenerator(ctx context.Context, logger *slog.Logger, config config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if config.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	g := &Generator{
		logger: logger.With(slog.String("component", "gemini_generator")),
		config: config,
		client: client,
	}
	g.generate = func(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
		return g.client.Models.GenerateContent(ctx, model, contents, nil)
	}

	return g, nil
}

// GenerateText implements generation.TextGenerator.
// It sends the prompt to the configured text model and returns the raw
// completion text, which may wrap JSON in markdown fences.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	contents := []*genai.Content{
		{Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}

	resp, err := g.callWithRetry(ctx, g.config.ModelName, contents)
	if err != nil {
		return "", err
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: no text in model response", generation.ErrGenerationFailed)
	}

	return text, nil
}

// GenerateImage implements generation.ImageGenerator.
// It sends the prompt (and optional source image bytes) to the configured
// image model and returns the first inline image from the response.
// The call is made exactly once, with no retries; a failure surfaces to
// the caller as a non-fatal warning.
func (g *Generator) GenerateImage(
	ctx context.Context,
	prompt string,
	source []byte,
) (*generation.ImageData, error) {
	if g.config.ImageModelName == "" {
		return nil, fmt.Errorf("%w: image model not configured", generation.ErrImageGenerationFailed)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(source) > 0 {
		parts = append(parts, genai.NewPartFromBytes(source, "image/png"))
	}

	contents := []*genai.Content{{Parts: parts}}

	g.logger.InfoContext(ctx, "making Gemini image API call",
		slog.String("model", g.config.ImageModelName))

	resp, err := g.generate(ctx, g.config.ImageModelName, contents)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrImageGenerationFailed, err)
	}

	image := extractImage(resp)
	if image == nil {
		return nil, fmt.Errorf("%w: no image data in model response",
			generation.ErrImageGenerationFailed)
	}

	return image, nil
}

// callWithRetry makes a call to the Gemini API with exponential backoff retry logic.
//
// It attempts the call up to config.MaxRetries+1 times, using exponential
// backoff with jitter between retries for transient errors. Permanent errors
// (like content blocked by safety filters) are returned immediately.
func (g *Generator) callWithRetry(
	ctx context.Context,
	model string,
	contents []*genai.Content,
) (*genai.GenerateContentResponse, error) {
	maxRetries := g.config.MaxRetries
	baseDelaySeconds := g.config.RetryDelaySeconds
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default",
			slog.Int("max_retries", 3))
		maxRetries = 3
	}

	if baseDelaySeconds < 1 {
		g.logger.WarnContext(ctx, "invalid retry delay value, using default",
			slog.Int("base_delay_seconds", 2))
		baseDelaySeconds = 2
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making Gemini API call",
			slog.String("model", model),
			slog.Int("attempt", attemptNum),
			slog.Int("max_attempts", maxRetries+1))

		resp, err := g.generate(ctx, model, contents)
		if err == nil {
			err = checkResponse(resp)
			if err == nil {
				g.logger.InfoContext(ctx, "Gemini API call successful",
					slog.Int("attempt", attemptNum))
				return resp, nil
			}
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			slog.Int("attempt", attemptNum),
			slog.String("error", err.Error()))

		// Permanent errors never resolve on retry
		if errors.Is(err, generation.ErrContentBlocked) ||
			errors.Is(err, generation.ErrGenerationFailed) {
			return nil, err
		}

		if !isTransientError(err) {
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}

		lastErr = err

		if attempt >= maxRetries {
			break
		}

		delay := backoffDelay(baseDelaySeconds, attempt, rng)
		g.logger.InfoContext(ctx, "retrying after delay",
			slog.Int("attempt", attemptNum),
			slog.Float64("delay_seconds", delay.Seconds()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.logger.WarnContext(ctx, "API call cancelled during retry delay",
				slog.Int("attempt", attemptNum))
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
		generation.ErrTransientFailure, maxRetries, lastErr)
}

// checkResponse validates the structural integrity of a model response.
// It distinguishes safety blocks from structurally empty responses.
func checkResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", generation.ErrGenerationFailed)
	}

	if len(resp.Candidates) == 0 {
		return fmt.Errorf("%w: no content generated", generation.ErrGenerationFailed)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return fmt.Errorf("%w: request rejected by safety filters", generation.ErrContentBlocked)
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return fmt.Errorf("%w: empty content in response", generation.ErrGenerationFailed)
	}

	return nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// extractImage returns the first inline image found in any candidate,
// or nil when the response carries no image data.
func extractImage(resp *genai.GenerateContentResponse) *generation.ImageData {
	if resp == nil {
		return nil
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return &generation.ImageData{
					Data:     part.InlineData.Data,
					MIMEType: mimeType,
				}
			}
		}
	}

	return nil
}

// isTransientError reports whether an API error is worth retrying.
// Rate limits, quota exhaustion, and upstream availability problems are
// transient; everything else is treated as permanent.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, generation.ErrTransientFailure) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429",
		"rate limit",
		"quota",
		"unavailable",
		"503",
		"500",
		"deadline exceeded",
		"connection reset",
		"timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// backoffDelay computes the retry delay for the given attempt:
// baseDelay * 2^attempt, scaled by a jitter factor between 0.5 and 1.0.
func backoffDelay(baseDelaySeconds, attempt int, rng *rand.Rand) time.Duration {
	backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
	jitterFactor := 0.5 + rng.Float64()*0.5
	return time.Duration(backoffSeconds * jitterFactor * float64(time.Second))
}
