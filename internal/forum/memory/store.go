// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package memory provides an in-process MessageRepository for development
// deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/forum"
)

// MessageStore implements forum.MessageRepository in process.
type MessageStore struct {
	mu       sync.RWMutex
	byThread map[ulid.ULID][]*forum.Message
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{byThread: make(map[ulid.ULID][]*forum.Message)}
}

// Create stores a new message.
func (s *MessageStore) Create(_ context.Context, msg *forum.Message) error {
	if msg == nil {
		return oops.Code("MESSAGE_CREATE_FAILED").Errorf("message is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.byThread[msg.ThreadID] = append(s.byThread[msg.ThreadID], &cp)
	return nil
}

// ListByThread returns messages in a thread, oldest first, up to limit.
func (s *MessageStore) ListByThread(_ context.Context, threadID ulid.ULID, limit int) ([]*forum.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byThread[threadID]
	out := make([]*forum.Message, 0, len(stored))
	for _, msg := range stored {
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Compile-time interface check.
var _ forum.MessageRepository = (*MessageStore)(nil)
