// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
)

// UserStore implements auth.UserRepository in process. Used for
// development deployments without a database; accounts are loaded from a
// seed file at startup. A plain map with one RWMutex is enough here since
// the user set is small and mostly read.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*auth.Identity // keyed by username
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*auth.Identity)}
}

// Create stores a new identity.
func (s *UserStore) Create(_ context.Context, identity *auth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[identity.Username]; exists {
		return oops.Code("USER_ALREADY_EXISTS").
			With("username", identity.Username).
			Errorf("username already registered")
	}

	cp := *identity
	s.users[identity.Username] = &cp
	return nil
}

// FindByUsername retrieves an identity by exact username match.
func (s *UserStore) FindByUsername(_ context.Context, username string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.users[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}

	cp := *identity
	return &cp, nil
}

// UpdatePassword replaces only the stored password hash.
func (s *UserStore) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, identity := range s.users {
		if identity.ID == id {
			identity.PasswordHash = passwordHash
			return nil
		}
	}
	return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// UpdatePreferences replaces the account preferences.
func (s *UserStore) UpdatePreferences(_ context.Context, id ulid.ULID, prefs auth.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, identity := range s.users {
		if identity.ID == id {
			identity.Preferences = prefs
			return nil
		}
	}
	return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserStore)(nil)
