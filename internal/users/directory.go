// internal/users/directory.go
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/validation"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// Directory authenticates portal users. It is consulted only during portal
// login, before a session is created.
type Directory struct {
	repo   storage.UserRepository
	clock  clock.Clock
	logger logger.Logger
}

func NewDirectory(repo storage.UserRepository, clk clock.Clock, log logger.Logger) *Directory {
	if clk == nil {
		clk = clock.New()
	}
	return &Directory{
		repo:   repo,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "user-directory"}),
	}
}

// Authenticate checks username and password. Unknown users and wrong
// passwords yield the same AUTHENTICATION_FAILED error.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := d.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewAuthenticationError("unknown user")
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("user_find", err)
	}

	ok, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		d.logger.Error("Stored password hash is unreadable", map[string]interface{}{
			"userId": user.ID,
			"error":  err.Error(),
		})
		return nil, apperrors.NewAuthenticationError("unreadable password hash")
	}
	if !ok {
		return nil, apperrors.NewAuthenticationError("wrong password")
	}
	if !user.IsActive {
		return nil, apperrors.NewUserInactiveError(user.ID)
	}

	now := d.clock.Now().UTC()
	if err := d.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		d.logger.Warn("Failed to update last login", map[string]interface{}{
			"userId": user.ID,
			"error":  err.Error(),
		})
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

// IsActive reports whether userID exists and is enabled.
func (d *Directory) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := d.repo.FindByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageUnavailableError("user_find", err)
	}
	return user.IsActive, nil
}

// Register creates an active account.
func (d *Directory) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewInvalidRequestError("username is required")
	}
	if email != "" && !validation.ValidateEmail(email) {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid email %q", email))
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    d.clock.Now().UTC(),
	}
	if err := d.repo.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("username %q is taken", username))
		}
		return nil, apperrors.NewStorageUnavailableError("user_create", err)
	}

	d.logger.Info("User registered", map[string]interface{}{"userId": user.ID, "username": username})
	return user, nil
}

// SetActive enables or disables the account named username.
func (d *Directory) SetActive(ctx context.Context, username string, active bool) error {
	user, err := d.repo.FindByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("unknown user %q", username))
	}
	if err != nil {
		return apperrors.NewStorageUnavailableError("user_find", err)
	}
	if err := d.repo.SetActive(ctx, user.ID, active); err != nil {
		return apperrors.NewStorageUnavailableError("user_set_active", err)
	}

	d.logger.Info("User activation changed", map[string]interface{}{"userId": user.ID, "active": active})
	return nil
}
