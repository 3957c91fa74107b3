package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/remindly/internal/model"
)

// EnsureUser makes email the single active user. A new row is created on
// first sign-in; a soft-deleted row from an earlier sign-in is revived.
// Any other active row is soft-deleted.
func (s *SQLiteStore) EnsureUser(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &model.ValidationError{Field: "email", Message: "must not be empty"}
	}

	var user model.User
	err := s.WithTx(ctx, func(ctx context.Context) error {
		now := s.nowMillis()
		conn := s.conn(ctx)

		if _, err := conn.ExecContext(ctx,
			"UPDATE users SET is_deleted = 1, updated_at = ? WHERE email != ? AND is_deleted = 0",
			now, email,
		); err != nil {
			return fmt.Errorf("deactivating other users: %w", err)
		}

		err := sqlx.GetContext(ctx, conn, &user, "SELECT * FROM users WHERE email = ?", email)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			user = model.User{
				ID:        uuid.New().String(),
				Email:     email,
				Name:      model.DisplayNameFromEmail(email),
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, err = conn.ExecContext(ctx, `
				INSERT INTO users (id, email, name, created_at, updated_at, is_deleted)
				VALUES (?, ?, ?, ?, ?, 0)`,
				user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("getting user %s: %w", email, err)
		case user.IsDeleted:
			if _, err := conn.ExecContext(ctx,
				"UPDATE users SET is_deleted = 0, updated_at = ? WHERE id = ?",
				now, user.ID,
			); err != nil {
				return fmt.Errorf("reviving user %s: %w", email, err)
			}
			user.IsDeleted = false
			user.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser returns the active user, or ErrNotFound when nobody is signed in.
func (s *SQLiteStore) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, s.conn(ctx), &user,
		"SELECT * FROM users WHERE is_deleted = 0 ORDER BY updated_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}
	return &user, nil
}

// DeactivateUser soft-deletes the user row for email. It is not an error
// when the user is already inactive.
func (s *SQLiteStore) DeactivateUser(ctx context.Context, email string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE users SET is_deleted = 1, updated_at = ? WHERE email = ? AND is_deleted = 0",
		s.nowMillis(), email,
	)
	if err != nil {
		return fmt.Errorf("deactivating user %s: %w", email, err)
	}
	return nil
}
