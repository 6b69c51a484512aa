package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TheManchineel/titilda-music/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// SetSessionInvalidation moves the user's watermark forward to at.
	// A watermark already at or past at is left alone.
	SetSessionInvalidation(ctx context.Context, username string, at time.Time) error
}

// mysqlUserRepository implements UserRepository on database/sql.
type mysqlUserRepository struct {
	db DBTX
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db DBTX) UserRepository {
	return &mysqlUserRepository{db: db}
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := "INSERT INTO users (username, password_hash, full_name, last_session_invalidation) VALUES (?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.FullName, user.LastSessionInvalidation.Unix())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to execute create user statement: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by their username. It returns nil, nil
// if no such user exists.
func (r *mysqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := "SELECT username, password_hash, full_name, last_session_invalidation FROM users WHERE username = ?"
	user := &model.User{}
	var watermark int64
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.PasswordHash, &user.FullName, &watermark)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row for username %s: %w", username, err)
	}
	user.LastSessionInvalidation = time.Unix(watermark, 0).UTC()
	return user, nil
}

func (r *mysqlUserRepository) SetSessionInvalidation(ctx context.Context, username string, at time.Time) error {
	query := "UPDATE users SET last_session_invalidation = ? WHERE username = ? AND last_session_invalidation < ?"
	ts := at.Unix()
	if _, err := r.db.ExecContext(ctx, query, ts, username, ts); err != nil {
		return fmt.Errorf("failed to update session invalidation for %s: %w", username, err)
	}
	return nil
}
