// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/auth/postgres"
)

const sessionColumns = "id, username, token_hash, csrf_hash, user_agent, ip_address, created_at, last_seen_at, expires_at, not_after"

func newStoredSession(t *testing.T) *auth.Session {
	t.Helper()
	_, tokenHash, err := auth.GenerateToken()
	require.NoError(t, err)
	_, csrfHash, err := auth.GenerateCSRFToken()
	require.NoError(t, err)

	now := time.Now()
	session, err := auth.NewSession("alice@example.com", tokenHash, csrfHash,
		"Mozilla/5.0", "10.0.0.1", now.Add(30*time.Minute), now.Add(24*time.Hour))
	require.NoError(t, err)
	return session
}

func TestSessionRepository_Create(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	session := newStoredSession(t)
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(session.ID.String(), session.Username, session.TokenHash, session.CSRFHash,
			session.UserAgent, session.IPAddress, session.CreatedAt, session.LastSeenAt,
			session.ExpiresAt, session.NotAfter).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := postgres.NewSessionRepository(mock)
	require.NoError(t, repo.Create(ctx, session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		session := newStoredSession(t)
		rows := pgxmock.NewRows([]string{"id", "username", "token_hash", "csrf_hash", "user_agent", "ip_address", "created_at", "last_seen_at", "expires_at", "not_after"}).
			AddRow(session.ID.String(), session.Username, session.TokenHash, session.CSRFHash,
				session.UserAgent, session.IPAddress, session.CreatedAt, session.LastSeenAt,
				session.ExpiresAt, session.NotAfter)

		mock.ExpectQuery(`SELECT ` + sessionColumns + ` FROM sessions`).
			WithArgs(session.TokenHash).
			WillReturnRows(rows)

		repo := postgres.NewSessionRepository(mock)
		got, err := repo.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.Username, got.Username)
		assert.Equal(t, session.CSRFHash, got.CSRFHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent session maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT ` + sessionColumns + ` FROM sessions`).
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "token_hash", "csrf_hash", "user_agent", "ip_address", "created_at", "last_seen_at", "expires_at", "not_after"}))

		repo := postgres.NewSessionRepository(mock)
		got, err := repo.GetByTokenHash(ctx, "missing")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_Touch(t *testing.T) {
	ctx := context.Background()

	t.Run("updates deadlines", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		lastSeen := time.Now()
		expires := lastSeen.Add(30 * time.Minute)
		mock.ExpectExec(`UPDATE sessions SET last_seen_at`).
			WithArgs("tokenhash", lastSeen, expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewSessionRepository(mock)
		require.NoError(t, repo.Touch(ctx, "tokenhash", lastSeen, expires))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown session maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		lastSeen := time.Now()
		mock.ExpectExec(`UPDATE sessions SET last_seen_at`).
			WithArgs("missing", lastSeen, lastSeen).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewSessionRepository(mock)
		assert.ErrorIs(t, repo.Touch(ctx, "missing", lastSeen, lastSeen), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes session", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
			WithArgs("tokenhash").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := postgres.NewSessionRepository(mock)
		require.NoError(t, repo.Delete(ctx, "tokenhash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown session maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
			WithArgs("missing").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := postgres.NewSessionRepository(mock)
		assert.ErrorIs(t, repo.Delete(ctx, "missing"), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("returns removed count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 7))

		repo := postgres.NewSessionRepository(mock)
		removed, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), removed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error surfaces", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		repo := postgres.NewSessionRepository(mock)
		_, err = repo.DeleteExpired(ctx)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
