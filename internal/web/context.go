// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package web is the public HTTP surface: security headers, session
// resolution, CSRF guard, authorization gate, and the forum handlers.
package web

import (
	"context"

	"github.com/quillboard/quillboard/internal/auth"
)

// Principal is the authenticated caller attached to a request context by
// the session resolver. Anonymous requests carry no principal.
type Principal struct {
	Identity *auth.Identity
	Session  *auth.Session
}

type contextKey struct{ name string }

var principalKey = &contextKey{"principal"}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the principal, or nil for anonymous requests.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
