// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/auth/postgres"
)

const userColumns = "id, username, password_hash, capabilities, preferences, created_at, updated_at"

func newTestIdentity(t *testing.T) *auth.Identity {
	t.Helper()
	identity, err := auth.NewIdentity("user@example.com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash")
	require.NoError(t, err)
	return identity
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		identity := newTestIdentity(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(identity.ID.String(), identity.Username, identity.PasswordHash,
				pgxmock.AnyArg(), pgxmock.AnyArg(), identity.CreatedAt, identity.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.Create(ctx, identity))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username maps to already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		identity := newTestIdentity(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(identity.ID.String(), identity.Username, identity.PasswordHash,
				pgxmock.AnyArg(), pgxmock.AnyArg(), identity.CreatedAt, identity.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		repo := postgres.NewUserRepository(mock)
		err = repo.Create(ctx, identity)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_FindByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		now := time.Now()
		rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "capabilities", "preferences", "created_at", "updated_at"}).
			AddRow(id.String(), "user@example.com", "$argon2id$hash", []byte(`["USER"]`), []byte(`{"theme":"dark"}`), now, now)

		mock.ExpectQuery(`SELECT ` + userColumns + ` FROM users`).
			WithArgs("user@example.com").
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		identity, err := repo.FindByUsername(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, identity.ID)
		assert.Equal(t, "user@example.com", identity.Username)
		assert.True(t, identity.Can(auth.CapabilityUser))
		assert.Equal(t, "dark", identity.Preferences.Theme)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT ` + userColumns + ` FROM users`).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "capabilities", "preferences", "created_at", "updated_at"}))

		repo := postgres.NewUserRepository(mock)
		identity, err := repo.FindByUsername(ctx, "ghost@example.com")
		require.Error(t, err)
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error surfaces", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT ` + userColumns + ` FROM users`).
			WithArgs("user@example.com").
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.FindByUsername(ctx, "user@example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates hash", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.UpdatePassword(ctx, id, "newhash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewUserRepository(mock)
		assert.ErrorIs(t, repo.UpdatePassword(ctx, id, "newhash"), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_UpdatePreferences(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := ulid.Make()
	mock.ExpectExec(`UPDATE users SET preferences`).
		WithArgs(id.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := postgres.NewUserRepository(mock)
	require.NoError(t, repo.UpdatePreferences(ctx, id, auth.Preferences{Theme: "dark"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
