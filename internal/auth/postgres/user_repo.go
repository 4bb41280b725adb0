// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package postgres implements the auth repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
)

// DB is the subset of pgxpool.Pool the repositories use. pgxmock satisfies
// it for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new identity.
func (r *UserRepository) Create(ctx context.Context, identity *auth.Identity) error {
	capsJSON, err := json.Marshal(identity.Capabilities.Names())
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "marshal capabilities").
			Wrap(err)
	}

	prefsJSON, err := json.Marshal(identity.Preferences)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "marshal preferences").
			Wrap(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, capabilities, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		identity.ID.String(),
		identity.Username,
		identity.PasswordHash,
		capsJSON,
		prefsJSON,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_ALREADY_EXISTS").
				With("username", identity.Username).
				Errorf("username already registered")
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", identity.Username).
			Wrap(err)
	}
	return nil
}

// FindByUsername retrieves an identity by exact username match.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, capabilities, preferences, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("operation", "find user by username").
			With("username", username).
			Wrap(err)
	}
	return identity, nil
}

// UpdatePassword replaces only the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePreferences replaces the account preferences.
func (r *UserRepository) UpdatePreferences(ctx context.Context, id ulid.ULID, prefs auth.Preferences) error {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return oops.Code("USER_UPDATE_PREFERENCES_FAILED").
			With("operation", "marshal preferences").
			Wrap(err)
	}

	result, err := r.db.Exec(ctx, `
		UPDATE users SET preferences = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), prefsJSON, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PREFERENCES_FAILED").
			With("operation", "update preferences").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr     string
		username  string
		hash      string
		capsJSON  []byte
		prefsJSON []byte
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &username, &hash, &capsJSON, &prefsJSON, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to classify.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	var capNames []string
	if len(capsJSON) > 0 {
		if err := json.Unmarshal(capsJSON, &capNames); err != nil {
			return nil, oops.Code("USER_INVALID_CAPABILITIES").
				With("username", username).
				Wrap(err)
		}
	}

	var prefs auth.Preferences
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
			return nil, oops.Code("USER_INVALID_PREFERENCES").
				With("username", username).
				Wrap(err)
		}
	}

	return &auth.Identity{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Capabilities: auth.NewCapabilitySet(capNames...),
		Preferences:  prefs,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
