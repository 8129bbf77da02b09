package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
)

var (
	// ErrUserNotFound reports a lookup for an id with no user row.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken reports a create with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, name, email string) (event.User, error) {
	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)`,
		name, email, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return event.User{}, fmt.Errorf("create user %q: %w", email, ErrEmailTaken)
		}
		return event.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event.User{}, fmt.Errorf("create user: %w", err)
	}
	return event.User{ID: id, Name: name, Email: email, CreatedAt: createdAt}, nil
}

// UserExists reports whether a user with the given id exists.
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// GetUser fetches a user by id. Returns ErrUserNotFound when absent.
func (s *Store) GetUser(ctx context.Context, id int64) (event.User, error) {
	var (
		u         event.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return event.User{}, fmt.Errorf("get user %d: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return event.User{}, fmt.Errorf("get user: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return event.User{}, fmt.Errorf("get user created_at %q: %w", createdAt, err)
	}
	u.CreatedAt = t
	return u, nil
}
