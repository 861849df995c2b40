package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
)

// HashPassword returns the base64-encoded SHA-256 digest of s.
func HashPassword(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Verify reports whether password matches the stored hash.
func (u *User) Verify(password string) bool {
	sum := sha256.Sum256([]byte(password))
	stored, err := base64.StdEncoding.DecodeString(u.PasswordHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(stored, sum[:]) == 1
}

func (s *SQLStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	id, err := s.insertReturningID(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return &User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		s.db.Rebind("SELECT id, username, password_hash FROM users WHERE username = ?"),
		username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &u, nil
}

// EnsureAdminUser seeds the admin account on first startup. A missing
// password leaves the users table alone.
func (s *SQLStore) EnsureAdminUser(ctx context.Context, password string) error {
	if password == "" {
		return nil
	}
	_, err := s.GetUserByUsername(ctx, "admin")
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.CreateUser(ctx, "admin", HashPassword(password)); err != nil {
		return err
	}
	log.Printf("store: created admin user")
	return nil
}
