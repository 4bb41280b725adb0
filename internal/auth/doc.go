// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package auth provides the credential, session, and CSRF primitives for
// Quillboard.
//
// # Domain Types
//
// Domain types should be created through their constructors:
//   - NewIdentity - a registered account with validated username and hash
//   - NewSession - a web session bound to an identity, with validated expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated values from these
// constructors.
//
// # Service
//
// Service coordinates the login, resolve, and logout lifecycle. It owns all
// session records; nothing else mutates them. Construct it with NewService,
// which validates its dependencies.
package auth
