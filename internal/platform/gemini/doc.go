// Package gemini provides implementations of the generation.TextGenerator
// and generation.ImageGenerator interfaces that use Google's Gemini API.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's content pipeline to Google's external genai
// service. It translates between the application's domain models and the
// Gemini API without exposing the details of the external service to the
// core application.
//
// Responsibilities:
//
//   - Sending fully built prompts to the configured text and image models
//   - Retry logic with exponential backoff and jitter for transient errors
//   - Categorizing API errors into the generation package's error taxonomy
//   - Extracting text and inline image bytes from model responses
//
// The package depends on the google.golang.org/genai client library for
// communicating with the Gemini API.
package gemini
