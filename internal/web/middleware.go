// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package web

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/pkg/errutil"
)

// SessionCookie is the name of the session token cookie.
const SessionCookie = "qb_session"

// CSRFFormField and CSRFHeader are where the guard looks for the token.
const (
	CSRFFormField = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"
)

// RouteClassifier decides which paths are reachable without a session.
// Patterns are gobwas globs with '/' as the separator, compiled at startup.
type RouteClassifier struct {
	public []glob.Glob
}

// NewRouteClassifier compiles the public route patterns.
func NewRouteClassifier(patterns []string) (*RouteClassifier, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, oops.Code("ROUTE_PATTERN_INVALID").
				With("pattern", pattern).
				Wrap(err)
		}
		compiled = append(compiled, g)
	}
	return &RouteClassifier{public: compiled}, nil
}

// IsPublic reports whether a path is reachable anonymously.
func (c *RouteClassifier) IsPublic(path string) bool {
	for _, g := range c.public {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// sessionResolver resolves the identity behind the session cookie once per
// request and attaches it to the context. A missing, unknown, or expired
// token leaves the request anonymous; only backend failures are logged.
func (s *Server) sessionResolver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, session, err := s.auth.Resolve(r.Context(), cookie.Value)
		if err != nil {
			switch errutil.Code(err) {
			case "SESSION_NOT_FOUND", "SESSION_EXPIRED":
				// Anonymous. The stale cookie gets replaced on next login.
			default:
				errutil.LogError(s.logger, "session resolution failed", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{Identity: identity, Session: session})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser gates protected requests: anonymous callers are redirected to
// /login for browser navigation, or rejected with 401 JSON for API clients.
// The handler never executes for an anonymous caller. Public-route patterns
// only open up reads; an unsafe method is protected even on a public path.
// Login and logout stay reachable so the session lifecycle itself works.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) && s.routes.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/login" || r.URL.Path == "/logout" {
			next.ServeHTTP(w, r)
			return
		}

		principal := PrincipalFrom(r.Context())
		if principal == nil {
			if wantsJSON(r) {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		// Uniform capability today; the check is the seam for future roles.
		if !principal.Identity.Can(auth.CapabilityUser) {
			writeJSONError(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// csrfGuard validates the anti-forgery token on every unsafe method,
// independent of authentication state. Login is exempt (no session exists
// yet); logout is not.
func (s *Server) csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || r.URL.Path == "/login" {
			next.ServeHTTP(w, r)
			return
		}

		principal := PrincipalFrom(r.Context())
		if principal == nil {
			// Anonymous unsafe requests have no token to forge against.
			// Protected routes were already bounced by requireUser.
			next.ServeHTTP(w, r)
			return
		}

		if !auth.ValidateCSRF(principal.Session, csrfTokenFrom(r)) {
			if s.metrics != nil {
				s.metrics.CSRFRejectionsTotal.Inc()
			}
			errutil.LogWarn(s.logger, "request rejected", auth.ErrCSRFInvalid)
			// Generic rejection; never echoes the expected value.
			if wantsJSON(r) {
				writeJSONError(w, http.StatusForbidden, "request could not be validated")
				return
			}
			http.Error(w, "request could not be validated", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recordMetrics captures the response status for the request counter.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordRequest(r.Method, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func csrfTokenFrom(r *http.Request) string {
	if token := r.Header.Get(CSRFHeader); token != "" {
		return token
	}
	return r.PostFormValue(CSRFFormField)
}

// wantsJSON reports whether the client negotiated an API-style response.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json")
}
