// Package service provides application-level services for content
// generation, history, and user management.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped with context via fmt.Errorf("%w", ...)
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// This is typically returned when a user attempts to access or delete content they don't own.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrAdminRequired indicates a non-admin user attempted an admin operation.
	// API layer should map this to HTTP 403 Forbidden.
	ErrAdminRequired = errors.New("administrator role required")
)
