// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	// DefaultIdleTimeout is the sliding-expiry window: a session dies this
	// long after its last resolved request.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultMaxLifetime caps a session's total age regardless of activity.
	DefaultMaxLifetime = 24 * time.Hour
)

// Session is a server-side record binding an opaque token to an
// authenticated identity for a bounded period. Only the SHA-256 hash of the
// token (and of the session's CSRF token) is stored; the plaintext values
// are returned once at login and never persisted.
type Session struct {
	ID         ulid.ULID
	Username   string
	TokenHash  string
	CSRFHash   string
	UserAgent  string
	IPAddress  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time // sliding deadline, refreshed on resolve
	NotAfter   time.Time // absolute deadline, fixed at creation
}

// NewSession creates a validated Session bound to a username. UserAgent and
// IPAddress are optional audit fields and may be empty.
func NewSession(username, tokenHash, csrfHash, userAgent, ipAddress string, expiresAt, notAfter time.Time) (*Session, error) {
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("username cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if csrfHash == "" {
		return nil, oops.Code("SESSION_INVALID_CSRF").Errorf("csrf hash cannot be empty")
	}
	if expiresAt.IsZero() || notAfter.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry times cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:         ulid.Make(),
		Username:   username,
		TokenHash:  tokenHash,
		CSRFHash:   csrfHash,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  expiresAt,
		NotAfter:   notAfter,
	}, nil
}

// IsExpired returns true if the session has passed either its sliding or
// absolute deadline.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given
// time. Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt) || t.After(s.NotAfter)
}

// GenerateToken creates a secure random opaque token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext goes to the
// client; the hash is what gets stored.
func GenerateToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(buf)
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken computes the SHA-256 hash of an opaque token, hex encoded.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks if the plaintext token matches the stored hash using
// constant-time comparison.
func VerifyToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashToken(token)
	// Both are hex-encoded SHA-256 digests (64 chars).
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}

// SessionRepository manages session persistence. Implementations must be
// safe for concurrent use; two requests on the same session may race.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns ErrNotFound (wrapped) if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Touch updates the last-seen timestamp and sliding deadline.
	Touch(ctx context.Context, tokenHash string, lastSeen, expiresAt time.Time) error

	// Delete removes a session by token hash.
	// Returns ErrNotFound (wrapped) if absent.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes all sessions past either deadline and returns
	// the count of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
