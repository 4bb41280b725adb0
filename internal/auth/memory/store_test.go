// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/auth/memory"
)

func newTestSession(t *testing.T, username string) *auth.Session {
	t.Helper()
	_, tokenHash, err := auth.GenerateToken()
	require.NoError(t, err)
	_, csrfHash, err := auth.GenerateCSRFToken()
	require.NoError(t, err)

	now := time.Now()
	s, err := auth.NewSession(username, tokenHash, csrfHash, "Mozilla/5.0", "10.0.0.1",
		now.Add(30*time.Minute), now.Add(24*time.Hour))
	require.NoError(t, err)
	return s
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	session := newTestSession(t, "alice@example.com")
	require.NoError(t, store.Create(ctx, session))

	got, err := store.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Username, got.Username)
	assert.Equal(t, session.CSRFHash, got.CSRFHash)

	t.Run("returned session is a copy", func(t *testing.T) {
		got.Username = "mallory@example.com"
		again, err := store.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", again.Username)
	})

	t.Run("duplicate token hash rejected", func(t *testing.T) {
		dup := *session
		assert.Error(t, store.Create(ctx, &dup))
	})

	t.Run("unknown hash is not found", func(t *testing.T) {
		_, err := store.GetByTokenHash(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionStore_Touch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	session := newTestSession(t, "alice@example.com")
	require.NoError(t, store.Create(ctx, session))

	lastSeen := time.Now().Add(5 * time.Minute)
	expires := lastSeen.Add(30 * time.Minute)
	require.NoError(t, store.Touch(ctx, session.TokenHash, lastSeen, expires))

	got, err := store.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(lastSeen))
	assert.True(t, got.ExpiresAt.Equal(expires))

	t.Run("touch of unknown session is not found", func(t *testing.T) {
		err := store.Touch(ctx, "missing", lastSeen, expires)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	session := newTestSession(t, "alice@example.com")
	require.NoError(t, store.Create(ctx, session))

	require.NoError(t, store.Delete(ctx, session.TokenHash))

	_, err := store.GetByTokenHash(ctx, session.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	t.Run("second delete is not found", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, session.TokenHash), auth.ErrNotFound)
	})
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	live := newTestSession(t, "alice@example.com")
	require.NoError(t, store.Create(ctx, live))

	for i := 0; i < 5; i++ {
		stale := newTestSession(t, fmt.Sprintf("stale%d@example.com", i))
		stale.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, store.Create(ctx, stale))
	}

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)
	assert.Equal(t, 1, store.Len())

	_, err = store.GetByTokenHash(ctx, live.TokenHash)
	assert.NoError(t, err)
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	session := newTestSession(t, "alice@example.com")
	require.NoError(t, store.Create(ctx, session))

	// Two requests on the same session plus unrelated traffic, all at once.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.GetByTokenHash(ctx, session.TokenHash)
		}()
		go func(i int) {
			defer wg.Done()
			now := time.Now()
			_ = store.Touch(ctx, session.TokenHash, now, now.Add(30*time.Minute))
			other := newTestSession(t, fmt.Sprintf("user%d@example.com", i))
			if err := store.Create(ctx, other); err == nil {
				_ = store.Delete(ctx, other.TokenHash)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
}
