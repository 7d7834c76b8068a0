package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ophelia-ai/ophelia-api/internal/domain"
)

const fence = "```"

// ExtractJSONBlock unwraps the first markdown code fence from the model's
// raw reply. Models frequently wrap the requested JSON in a fenced block,
// optionally annotated with a language tag ("```json"), and surround it
// with explanatory prose.
//
// Behavior:
//   - A fenced block is present: returns exactly the content between the
//     first opening fence and its matching closing fence.
//   - No fence: returns the whole reply trimmed, to be parsed as-is.
//   - An opening fence with no closing fence: returns an error wrapping
//     ErrMalformedResponse.
func ExtractJSONBlock(raw string) (string, error) {
	start := strings.Index(raw, fence)
	if start < 0 {
		return strings.TrimSpace(raw), nil
	}

	// Skip the opening fence and its optional language annotation, which
	// runs to the end of the opening line.
	rest := raw[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		// The reply ends on the opening fence line.
		return "", fmt.Errorf("%w: unterminated code fence", ErrMalformedResponse)
	}

	end := strings.Index(rest, fence)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated code fence", ErrMalformedResponse)
	}

	return strings.TrimSpace(rest[:end]), nil
}

// ParseContent runs the full unwrap-then-parse pipeline on the model's raw
// reply: fence extraction, JSON parsing, and required-key validation.
//
// Each stage fails with its own sentinel so callers and monitoring can
// tell "the model is down" from "the model's output format drifted":
//   - unusable fence or invalid JSON -> ErrMalformedResponse
//   - valid JSON missing required keys -> ErrIncompleteResponse, with the
//     missing key names in the message
//
// Validation is shape-only. Empty strings pass; content quality is never
// judged here.
func ParseContent(raw string) (*domain.GeneratedContent, error) {
	candidate, err := ExtractJSONBlock(raw)
	if err != nil {
		return nil, err
	}

	// First pass: raw key map, to report missing keys precisely before
	// any type coercion can fail.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var missing []string
	for _, field := range RequiredFields {
		value, ok := keys[field]
		if !ok || isJSONNull(value) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys: %s",
			ErrIncompleteResponse, strings.Join(missing, ", "))
	}

	var content domain.GeneratedContent
	if err := json.Unmarshal([]byte(candidate), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	content.NormalizeTags()

	if len(content.Tags) == 0 {
		return nil, fmt.Errorf("%w: tags must contain at least one entry", ErrIncompleteResponse)
	}

	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &content, nil
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
