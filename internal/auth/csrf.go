// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package auth

import "github.com/samber/oops"

// CSRF tokens are scoped to a session: one token per session, issued at
// login, destroyed with the session at logout. Rotation on login prevents
// fixation across an authentication boundary.
//
// The token itself is the same shape as a session token (32 random bytes,
// hex); only its SHA-256 hash is stored on the session record.

// ErrCSRFInvalid is the hard-reject classification for a missing or
// mismatched anti-forgery token. It never carries the expected value.
var ErrCSRFInvalid = oops.Code("CSRF_VALIDATION_FAILED").Errorf("csrf token missing or invalid")

// GenerateCSRFToken creates a session-scoped anti-forgery token and its
// stored hash. Returns (plaintext_token, sha256_hash, error).
func GenerateCSRFToken() (token, hash string, err error) {
	token, hash, err = GenerateToken()
	if err != nil {
		return "", "", oops.Code("CSRF_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return token, hash, nil
}

// ValidateCSRF checks a submitted token against the session's stored hash
// using constant-time comparison. A nil session, empty submission, or
// mismatch all fail closed.
func ValidateCSRF(session *Session, submitted string) bool {
	if session == nil || submitted == "" || session.CSRFHash == "" {
		return false
	}
	ok, err := VerifyToken(submitted, session.CSRFHash)
	return err == nil && ok
}
