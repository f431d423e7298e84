package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sahityolsav/stage-tracker/internal/utils"
)

// Roles assignable to user accounts. Every stage and unit has exactly one
// account; each sector is administered by one admin account.
const (
	RoleAdmin = "admin"
	RoleStage = "stage"
	RoleUnit  = "unit"
)

// User mirrors the users table.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    string
}

// ErrEmailExists is returned when an email is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound indicates that no user matched the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepo manages persistence for user accounts.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo constructs a UserRepo with the given DB handle.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// isUniqueViolation matches the duplicate-key errors of both supported
// drivers (MySQL error 1062, SQLite "UNIQUE constraint failed").
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique")
}

// CreateTx hashes the password and inserts a user inside the caller's
// transaction, returning the generated id. Returns ErrEmailExists when the
// normalized email is taken.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, email, password, role string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, hash, role, nowStamp())
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// UpdateTx changes a user's email and/or password inside the caller's
// transaction. Empty arguments leave the corresponding field unchanged.
// Returns ErrEmailExists when the new email is taken by another account.
func (r *UserRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id, email, password string, cost int) error {
	if email != "" {
		email = strings.ToLower(strings.TrimSpace(email))
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET email = ? WHERE id = ?`, email, id); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailExists
			}
			return err
		}
	}
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id); err != nil {
			return err
		}
	}
	return nil
}
