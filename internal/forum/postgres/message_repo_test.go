// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillboard/quillboard/internal/forum"
	"github.com/quillboard/quillboard/internal/forum/postgres"
)

func TestMessageRepository_Create(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	msg, err := forum.NewMessage(ulid.Make(), "alice@example.com", "hello")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(msg.ID.String(), msg.ThreadID.String(), msg.Author, msg.Body, msg.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := postgres.NewMessageRepository(mock)
	require.NoError(t, repo.Create(ctx, msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_ListByThread(t *testing.T) {
	ctx := context.Background()

	t.Run("returns messages oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		threadID := ulid.Make()
		first := ulid.Make()
		second := ulid.Make()
		now := time.Now()

		rows := pgxmock.NewRows([]string{"id", "thread_id", "author", "body", "created_at"}).
			AddRow(first.String(), threadID.String(), "alice@example.com", "first post", now.Add(-time.Hour)).
			AddRow(second.String(), threadID.String(), "bob@example.com", "reply", now)

		mock.ExpectQuery(`SELECT id, thread_id, author, body, created_at`).
			WithArgs(threadID.String(), 50).
			WillReturnRows(rows)

		repo := postgres.NewMessageRepository(mock)
		messages, err := repo.ListByThread(ctx, threadID, 50)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, first, messages[0].ID)
		assert.Equal(t, "alice@example.com", messages[0].Author)
		assert.Equal(t, second, messages[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty thread returns no messages", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		threadID := ulid.Make()
		mock.ExpectQuery(`SELECT id, thread_id, author, body, created_at`).
			WithArgs(threadID.String(), 50).
			WillReturnRows(pgxmock.NewRows([]string{"id", "thread_id", "author", "body", "created_at"}))

		repo := postgres.NewMessageRepository(mock)
		messages, err := repo.ListByThread(ctx, threadID, 50)
		require.NoError(t, err)
		assert.Empty(t, messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error surfaces", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		threadID := ulid.Make()
		mock.ExpectQuery(`SELECT id, thread_id, author, body, created_at`).
			WithArgs(threadID.String(), 50).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewMessageRepository(mock)
		_, err = repo.ListByThread(ctx, threadID, 50)
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
