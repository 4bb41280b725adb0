// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package forum holds the discussion domain model. Authentication decides
// who a request belongs to; this package owns what they post.
package forum

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxMessageBytes caps a single message body.
const MaxMessageBytes = 64 * 1024

// Message is one post in a thread, attributed to the verified account
// that submitted it.
type Message struct {
	ID        ulid.ULID `json:"id"`
	ThreadID  ulid.ULID `json:"thread_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh ULID. Author must be the
// username from the resolved session, never client-supplied.
func NewMessage(threadID ulid.ULID, author, body string) (*Message, error) {
	if author == "" {
		return nil, oops.Code("MESSAGE_INVALID").Errorf("author cannot be empty")
	}
	if strings.TrimSpace(body) == "" {
		return nil, oops.Code("MESSAGE_INVALID").Errorf("body cannot be empty")
	}
	if len(body) > MaxMessageBytes {
		return nil, oops.Code("MESSAGE_INVALID").
			With("bytes", len(body)).
			Errorf("body exceeds %d bytes", MaxMessageBytes)
	}
	return &Message{
		ID:        ulid.Make(),
		ThreadID:  threadID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now(),
	}, nil
}

// MessageRepository persists messages.
type MessageRepository interface {
	// Create stores a new message.
	Create(ctx context.Context, msg *Message) error

	// ListByThread returns messages in a thread, oldest first, up to limit.
	ListByThread(ctx context.Context, threadID ulid.ULID, limit int) ([]*Message, error)
}
