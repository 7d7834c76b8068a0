package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/ophelia-ai/ophelia-api/internal/domain"
)

// ContentStore defines the interface for generated-content persistence.
// Records are insert-once: there is no update operation at this layer.
type ContentStore interface {
	// Create saves a new content record to the store.
	// It handles domain validation internally.
	// Returns store.ErrInvalidEntity if the owning user does not exist.
	Create(ctx context.Context, record *domain.ContentRecord) error

	// GetByID retrieves a content record by its unique ID.
	// Returns ErrContentNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ContentRecord, error)

	// ListByUser retrieves a user's content records, newest first.
	// Returns an empty slice if the user has no records.
	// Can limit the number of results and paginate through offset.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ContentRecord, error)

	// ListAll retrieves content records across all users, newest first.
	// Used by the admin surface.
	ListAll(ctx context.Context, limit, offset int) ([]*domain.ContentRecord, error)

	// Delete removes a content record by its ID.
	// Returns ErrContentNotFound if the record does not exist.
	// This operation is permanent and cannot be undone.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new ContentStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) ContentStore
}
