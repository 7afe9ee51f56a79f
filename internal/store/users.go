// Package store persists the development API's accounts, item reports and
// session revocations in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/lofoph/internal/model"
)

// ErrDuplicateEmail is returned when an account with the email already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// Account is a user together with its credentials.
type Account struct {
	model.User
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser creates a new account.
func CreateUser(ctx context.Context, db *sql.DB, name, email, passwordHash, role string) (*Account, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, strings.TrimSpace(email), passwordHash, role, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns an account by ID.
func GetUser(ctx context.Context, db *sql.DB, id string) (*Account, error) {
	return getUser(ctx, db, `WHERE id = ?`, id)
}

// GetUserByEmail returns an account by email, ignoring case.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*Account, error) {
	return getUser(ctx, db, `WHERE email = ?`, strings.TrimSpace(email))
}

func getUser(ctx context.Context, db *sql.DB, where string, arg any) (*Account, error) {
	a := &Account{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users `+where, arg,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
