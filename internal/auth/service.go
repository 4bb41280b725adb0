// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Credentials carries the plaintext token pair handed to the client exactly
// once at login: the session token for the cookie and the CSRF token for
// form embedding. Neither is retained server-side.
type Credentials struct {
	Token     string
	CSRFToken string
}

// Service provides the session lifecycle: login, resolve, logout.
type Service struct {
	users       UserRepository
	sessions    SessionRepository
	hasher      PasswordHasher
	logger      *slog.Logger
	idleTimeout time.Duration
	maxLifetime time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger for best-effort failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithExpiry overrides the sliding idle timeout and absolute lifetime cap.
func WithExpiry(idle, max time.Duration) Option {
	return func(s *Service) {
		if idle > 0 {
			s.idleTimeout = idle
		}
		if max > 0 {
			s.maxLifetime = max
		}
	}
}

// NewService creates a Service. All three dependencies are required.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}

	s := &Service{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		logger:      slog.Default(),
		idleTimeout: DefaultIdleTimeout,
		maxLifetime: DefaultMaxLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// dummyPasswordHash is verified when the username does not exist, so the
// unknown-user path costs the same as a wrong-password attempt. It is a fake
// hash that will never match any password, not a credential.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates a user and creates a session with a fresh CSRF token.
// Wrong username and wrong password produce the same AUTH_INVALID_CREDENTIALS
// classification, and both paths run a full argon2 verification so the
// latency does not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, username, password, userAgent, ipAddress string) (*Session, Credentials, error) {
	identity, lookupErr := s.users.FindByUsername(ctx, username)

	targetHash := dummyPasswordHash
	userExists := false

	switch {
	case lookupErr == nil:
		targetHash = identity.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Keep the dummy hash; verification still runs below.
	default:
		return nil, Credentials{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find user by username").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, Credentials{}, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		return nil, Credentials{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, Credentials{}, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	// Transparent work-factor upgrade. Login succeeds regardless.
	if s.hasher.NeedsRehash(identity.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if err := s.users.UpdatePassword(ctx, identity.ID, newHash); err != nil {
				s.logger.Warn("password rehash not persisted", "username", identity.Username, "error", err)
			}
		}
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, Credentials{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	csrfToken, csrfHash, err := GenerateCSRFToken()
	if err != nil {
		return nil, Credentials{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate csrf token").
			Wrap(err)
	}

	now := time.Now()
	session, err := NewSession(identity.Username, tokenHash, csrfHash, userAgent, ipAddress,
		now.Add(s.idleTimeout), now.Add(s.maxLifetime))
	if err != nil {
		return nil, Credentials{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, Credentials{}, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, Credentials{Token: token, CSRFToken: csrfToken}, nil
}

// Resolve maps an opaque token to its identity and session. Absent and
// expired sessions return SESSION_NOT_FOUND and SESSION_EXPIRED; callers
// treat both as anonymous. A resolvable session refreshes its sliding
// deadline (best effort).
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, *Session, error) {
	if token == "" {
		return nil, nil, oops.Code("SESSION_NOT_FOUND").Errorf("session token is empty")
	}

	tokenHash := HashToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy expiry: drop the record now that we've seen it dead.
		if delErr := s.sessions.Delete(ctx, tokenHash); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			s.logger.Warn("expired session not removed", "session_id", session.ID.String(), "error", delErr)
		}
		return nil, nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	identity, err := s.users.FindByUsername(ctx, session.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Account removed out from under the session; revoke it.
			_ = s.sessions.Delete(ctx, tokenHash) //nolint:errcheck // Best effort
			return nil, nil, oops.Code("SESSION_NOT_FOUND").Errorf("session identity no longer exists")
		}
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "find session identity").
			Wrap(err)
	}

	now := time.Now()
	session.LastSeenAt = now
	session.ExpiresAt = now.Add(s.idleTimeout)
	if err := s.sessions.Touch(ctx, tokenHash, now, session.ExpiresAt); err != nil {
		// Resolution succeeds regardless; the old deadline still stands.
		s.logger.Warn("session touch failed", "session_id", session.ID.String(), "error", err)
	}

	return identity, session, nil
}

// Logout revokes a session and its CSRF token. Logging out an unknown or
// already-revoked token is a no-op, not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	err := s.sessions.Delete(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// PurgeExpired removes all expired sessions. Lazy expiry in Resolve already
// keeps dead sessions out of the gate; this sweep just reclaims storage.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
