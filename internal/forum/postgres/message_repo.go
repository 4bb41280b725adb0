// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package postgres implements the forum repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/forum"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessageRepository implements forum.MessageRepository using PostgreSQL.
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message.
func (r *MessageRepository) Create(ctx context.Context, msg *forum.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, thread_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		msg.ID.String(),
		msg.ThreadID.String(),
		msg.Author,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		return oops.Code("MESSAGE_CREATE_FAILED").
			With("operation", "insert message").
			With("thread_id", msg.ThreadID.String()).
			Wrap(err)
	}
	return nil
}

// ListByThread returns messages in a thread, oldest first.
func (r *MessageRepository) ListByThread(ctx context.Context, threadID ulid.ULID, limit int) ([]*forum.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, thread_id, author, body, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, threadID.String(), limit)
	if err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("operation", "list messages by thread").
			With("thread_id", threadID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var messages []*forum.Message
	for rows.Next() {
		var (
			idStr       string
			threadIDStr string
			author      string
			body        string
			createdAt   time.Time
		)
		if err := rows.Scan(&idStr, &threadIDStr, &author, &body, &createdAt); err != nil {
			return nil, oops.Code("MESSAGE_SCAN_FAILED").
				With("operation", "scan message").
				Wrap(err)
		}

		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("MESSAGE_INVALID_ID").
				With("id", idStr).
				Wrap(err)
		}
		tid, err := ulid.Parse(threadIDStr)
		if err != nil {
			return nil, oops.Code("MESSAGE_INVALID_ID").
				With("thread_id", threadIDStr).
				Wrap(err)
		}

		messages = append(messages, &forum.Message{
			ID:        id,
			ThreadID:  tid,
			Author:    author,
			Body:      body,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("operation", "iterate messages").
			Wrap(err)
	}
	return messages, nil
}

// Compile-time interface check.
var _ forum.MessageRepository = (*MessageRepository)(nil)
