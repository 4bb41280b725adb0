// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package memory provides an in-process SessionRepository. It is the
// default store for single-node deployments and tests; the postgres
// implementation is a drop-in swap behind the same interface.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
)

// shardCount spreads sessions across independent locks so two requests on
// unrelated sessions never serialize on each other. Must be a power of two.
const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*auth.Session // keyed by token hash
}

// SessionStore implements auth.SessionRepository with sharded maps.
type SessionStore struct {
	shards [shardCount]*shard
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*auth.Session)}
	}
	return s
}

func (s *SessionStore) shardFor(tokenHash string) *shard {
	h := fnv.New32a()
	h.Write([]byte(tokenHash)) //nolint:errcheck // fnv Write never fails
	return s.shards[h.Sum32()&(shardCount-1)]
}

// Create stores a new session.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	sh := s.shardFor(session.TokenHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.sessions[session.TokenHash]; exists {
		return oops.Code("SESSION_CREATE_FAILED").Errorf("duplicate token hash")
	}

	cp := *session
	sh.sessions[session.TokenHash] = &cp
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	sh := s.shardFor(tokenHash)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	session, ok := sh.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	// Return a copy; callers must not see concurrent Touch writes.
	cp := *session
	return &cp, nil
}

// Touch updates the last-seen timestamp and sliding deadline.
func (s *SessionStore) Touch(_ context.Context, tokenHash string, lastSeen, expiresAt time.Time) error {
	sh := s.shardFor(tokenHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	session, ok := sh.sessions[tokenHash]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	session.LastSeenAt = lastSeen
	session.ExpiresAt = expiresAt
	return nil
}

// Delete removes a session by token hash.
func (s *SessionStore) Delete(_ context.Context, tokenHash string) error {
	sh := s.shardFor(tokenHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.sessions[tokenHash]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	delete(sh.sessions, tokenHash)
	return nil
}

// DeleteExpired removes all sessions past either deadline.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var removed int64

	for _, sh := range s.shards {
		sh.mu.Lock()
		for hash, session := range sh.sessions {
			if session.IsExpiredAt(now) {
				delete(sh.sessions, hash)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed, nil
}

// Len returns the number of live records across all shards.
func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionStore)(nil)
