// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, username, token_hash, csrf_hash, user_agent, ip_address, created_at, last_seen_at, expires_at, not_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		session.ID.String(),
		session.Username,
		session.TokenHash,
		session.CSRFHash,
		session.UserAgent,
		session.IPAddress,
		session.CreatedAt,
		session.LastSeenAt,
		session.ExpiresAt,
		session.NotAfter,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("username", session.Username).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, token_hash, csrf_hash, user_agent, ip_address, created_at, last_seen_at, expires_at, not_after
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// Touch updates the last-seen timestamp and sliding deadline.
func (r *SessionRepository) Touch(ctx context.Context, tokenHash string, lastSeen, expiresAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2, expires_at = $3
		WHERE token_hash = $1
	`, tokenHash, lastSeen, expiresAt)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "update last_seen_at").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by token hash.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all sessions past either deadline and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	result, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1 OR not_after < $1
	`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr      string
		username   string
		tokenHash  string
		csrfHash   string
		userAgent  string
		ipAddress  string
		createdAt  time.Time
		lastSeenAt time.Time
		expiresAt  time.Time
		notAfter   time.Time
	)

	err := row.Scan(&idStr, &username, &tokenHash, &csrfHash, &userAgent, &ipAddress,
		&createdAt, &lastSeenAt, &expiresAt, &notAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:         id,
		Username:   username,
		TokenHash:  tokenHash,
		CSRFHash:   csrfHash,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		CreatedAt:  createdAt,
		LastSeenAt: lastSeenAt,
		ExpiresAt:  expiresAt,
		NotAfter:   notAfter,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
