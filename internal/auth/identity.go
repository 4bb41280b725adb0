// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CapabilityUser is the capability every registered account carries. The
// capability set is checked by membership only; richer roles slot in here
// without a hierarchy.
const CapabilityUser = "USER"

// Username validation constraints. Usernames are email addresses in this
// domain and are compared exactly, the same way accounts were created.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 254
)

// usernameRegex is a pragmatic email shape check: one @, a non-empty local
// part, and a dotted domain. Deliverability is not this package's problem.
var usernameRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CapabilitySet is a set of named permissions granted to an identity.
type CapabilitySet map[string]struct{}

// NewCapabilitySet builds a set from capability names.
func NewCapabilitySet(caps ...string) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the capability is in the set.
func (s CapabilitySet) Has(capability string) bool {
	_, ok := s[capability]
	return ok
}

// Names returns the capability names in the set.
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, c)
	}
	return names
}

// Identity is a registered account: the login username (an email address),
// the stored password hash, and the capability set. It is created at
// registration and read-only to the rest of the system.
type Identity struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	Capabilities CapabilitySet
	Preferences  Preferences
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Preferences contains account-level display settings.
type Preferences struct {
	Theme     string `json:"theme,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// NewIdentity creates a validated Identity. The password hash must already
// be in PHC format; plaintext never reaches this constructor.
func NewIdentity(username, passwordHash string) (*Identity, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Identity{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Capabilities: NewCapabilitySet(CapabilityUser),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Can reports whether the identity holds the capability.
func (i *Identity) Can(capability string) bool {
	return i.Capabilities.Has(capability)
}

// ValidateUsername validates a login username (an email address).
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must be an email address")
	}
	return nil
}

// UserRepository is the sole boundary to the account store. It is a pure
// lookup on the login path; Create and the update methods exist for the
// seed command and transparent rehashing.
type UserRepository interface {
	// FindByUsername retrieves an identity by exact username match.
	// Returns ErrNotFound (wrapped) if no such account exists.
	FindByUsername(ctx context.Context, username string) (*Identity, error)

	// Create stores a new identity.
	Create(ctx context.Context, identity *Identity) error

	// UpdatePassword replaces only the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdatePreferences replaces the account preferences.
	UpdatePreferences(ctx context.Context, id ulid.ULID, prefs Preferences) error
}
