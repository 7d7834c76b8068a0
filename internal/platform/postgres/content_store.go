package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/platform/logger"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// PostgresContentStore implements the store.ContentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a new PostgreSQL implementation of the ContentStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

// Ensure PostgresContentStore implements store.ContentStore interface
var _ store.ContentStore = (*PostgresContentStore)(nil)

// WithTx implements store.ContentStore.WithTx
// It returns a new ContentStore that executes all operations within the given transaction.
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentStore {
	return &PostgresContentStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ContentStore.Create
// It saves a new content record to the database, handling domain validation.
// Tags are stored as a JSONB array.
// Returns store.ErrInvalidEntity if the owning user doesn't exist (foreign key violation).
func (s *PostgresContentStore) Create(ctx context.Context, record *domain.ContentRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("content record validation failed during create",
			slog.String("error", err.Error()),
			slog.String("content_id", record.ID.String()))
		return err
	}

	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO artisan_content (
			id, user_id, artisan_name, craft_description,
			brand_story, instagram_caption, facebook_caption, twitter_caption,
			reel_script, suggested_price, tags, image_url, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.UserID,
		record.ArtisanName,
		record.CraftDescription,
		record.BrandStory,
		record.InstagramCaption,
		record.FacebookCaption,
		record.TwitterCaption,
		record.ReelScript,
		float64(record.SuggestedPrice),
		tagsJSON,
		record.ImageURL,
		record.CreatedAt,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during content creation",
				slog.String("content_id", record.ID.String()),
				slog.String("user_id", record.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, record.UserID)
		}

		log.Error("failed to create content record",
			slog.String("error", err.Error()),
			slog.String("content_id", record.ID.String()),
			slog.String("user_id", record.UserID.String()))
		return err
	}

	log.Info("content record created successfully",
		slog.String("content_id", record.ID.String()),
		slog.String("user_id", record.UserID.String()))
	return nil
}

// GetByID implements store.ContentStore.GetByID
// It retrieves a content record by its unique ID.
// Returns store.ErrContentNotFound if the record does not exist.
func (s *PostgresContentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContentRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving content record by ID", slog.String("content_id", id.String()))

	query := `
		SELECT id, user_id, artisan_name, craft_description,
			brand_story, instagram_caption, facebook_caption, twitter_caption,
			reel_script, suggested_price, tags, image_url, created_at
		FROM artisan_content
		WHERE id = $1
	`

	record, err := scanContentRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("content record not found", slog.String("content_id", id.String()))
			return nil, store.ErrContentNotFound
		}
		log.Error("failed to get content record by ID",
			slog.String("error", err.Error()),
			slog.String("content_id", id.String()))
		return nil, err
	}

	return record, nil
}

// ListByUser implements store.ContentStore.ListByUser
// It retrieves a user's content records ordered newest first.
// Returns an empty slice (never nil) if the user has no records.
func (s *PostgresContentStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.ContentRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, artisan_name, craft_description,
			brand_story, instagram_caption, facebook_caption, twitter_caption,
			reel_script, suggested_price, tags, image_url, created_at
		FROM artisan_content
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list content records by user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectContentRecords(rows)
}

// ListAll implements store.ContentStore.ListAll
// It retrieves content records across all users ordered newest first.
// Returns an empty slice (never nil) if there are no records.
func (s *PostgresContentStore) ListAll(
	ctx context.Context,
	limit, offset int,
) ([]*domain.ContentRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, artisan_name, craft_description,
			brand_story, instagram_caption, facebook_caption, twitter_caption,
			reel_script, suggested_price, tags, image_url, created_at
		FROM artisan_content
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list all content records",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectContentRecords(rows)
}

// Delete implements store.ContentStore.Delete
// It removes a content record from the database by its ID.
// Returns store.ErrContentNotFound if the record does not exist.
func (s *PostgresContentStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM artisan_content
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to delete content record",
			slog.String("error", err.Error()),
			slog.String("content_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("content_id", id.String()))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("content record not found for delete", slog.String("content_id", id.String()))
		return store.ErrContentNotFound
	}

	log.Info("content record deleted successfully", slog.String("content_id", id.String()))
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanContentRecord scans one artisan_content row into a domain record,
// decoding the JSONB tags column.
func scanContentRecord(row rowScanner) (*domain.ContentRecord, error) {
	var record domain.ContentRecord
	var price float64
	var tagsJSON []byte

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ArtisanName,
		&record.CraftDescription,
		&record.BrandStory,
		&record.InstagramCaption,
		&record.FacebookCaption,
		&record.TwitterCaption,
		&record.ReelScript,
		&price,
		&tagsJSON,
		&record.ImageURL,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.SuggestedPrice = domain.Price(price)

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &record.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return &record, nil
}

// collectContentRecords drains rows into a slice, returning an empty
// slice rather than nil when there are no records.
func collectContentRecords(rows *sql.Rows) ([]*domain.ContentRecord, error) {
	records := make([]*domain.ContentRecord, 0)

	for rows.Next() {
		record, err := scanContentRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
