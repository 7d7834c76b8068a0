package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ophelia-ai/ophelia-api/internal/domain"
	"github.com/ophelia-ai/ophelia-api/internal/store"
)

// UserService provides account management operations on top of the user
// store. Mutations run inside a transaction and follow a read-modify-write
// of the whole user record, since the store persists complete entities.
type UserService interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser creates a new account with the given credentials.
	CreateUser(ctx context.Context, email, password string) (*domain.User, error)

	// UpdateUserEmail changes the account email.
	// Returns store.ErrEmailExists if the new email is already taken.
	UpdateUserEmail(ctx context.Context, userID uuid.UUID, newEmail string) error

	// UpdateUserPassword changes the account password. Hashing happens in
	// the store layer.
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, newPassword string) error

	// DeleteUser removes the account. Content records owned by it are
	// removed by the database's cascading delete.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// UserServiceImpl implements UserService.
type UserServiceImpl struct {
	userStore store.UserStore
	logger    *slog.Logger
	db        *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(userStore store.UserStore, db *sql.DB, logger *slog.Logger) UserService {
	return &UserServiceImpl{
		userStore: userStore,
		db:        db,
		logger:    logger.With("component", "user_service"),
	}
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			s.logger.Error("user lookup failed", "error", err, "user_id", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

func (s *UserServiceImpl) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			s.logger.Error("user lookup by email failed", "error", err)
		}
		return nil, fmt.Errorf("failed to retrieve user by email: %w", err)
	}
	return user, nil
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.userStore.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if !errors.Is(err, store.ErrEmailExists) {
			s.logger.Error("user creation failed", "error", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	return user, nil
}

func (s *UserServiceImpl) UpdateUserEmail(ctx context.Context, userID uuid.UUID, newEmail string) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		user, err := txStore.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for update: %w", err)
		}

		user.Email = newEmail
		if err := txStore.Update(ctx, user); err != nil {
			if !errors.Is(err, store.ErrEmailExists) {
				s.logger.Error("email update failed", "error", err, "user_id", userID)
			}
			return fmt.Errorf("failed to update user email: %w", err)
		}

		s.logger.Info("user email updated", "user_id", userID)
		return nil
	})
}

func (s *UserServiceImpl) UpdateUserPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		user, err := txStore.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for update: %w", err)
		}

		// The store hashes a set plaintext password on update.
		user.Password = newPassword
		if err := txStore.Update(ctx, user); err != nil {
			s.logger.Error("password update failed", "error", err, "user_id", userID)
			return fmt.Errorf("failed to update user password: %w", err)
		}

		s.logger.Info("user password updated", "user_id", userID)
		return nil
	})
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.userStore.WithTx(tx).Delete(ctx, userID); err != nil {
			if !errors.Is(err, store.ErrUserNotFound) {
				s.logger.Error("user deletion failed", "error", err, "user_id", userID)
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}

		s.logger.Info("user deleted", "user_id", userID)
		return nil
	})
}
