// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/forum"
	"github.com/quillboard/quillboard/pkg/errutil"
)

const maxIconUploadForm = 2 << 20

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "quillboard")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "login")
}

// handleLogin verifies credentials and establishes a session. Failures are
// generic toward the client regardless of cause.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.loginRejected(w, r)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	_, creds, err := s.auth.Login(r.Context(), username, password, r.UserAgent(), clientIP(r))
	if err != nil {
		if errutil.Code(err) != "AUTH_INVALID_CREDENTIALS" {
			errutil.LogError(s.logger, "login failed", err)
		}
		if s.metrics != nil {
			s.metrics.RecordLogin(false)
		}
		s.loginRejected(w, r)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(true)
	}

	http.SetCookie(w, s.sessionCookie(creds.Token, 0))

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"username":   username,
			"csrf_token": creds.CSRFToken,
		})
		return
	}
	// The rendering layer picks the CSRF token up from /session-backed
	// state; browser flow just lands on the index.
	w.Header().Set(CSRFHeader, creds.CSRFToken)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) loginRejected(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
}

// handleLogout revokes the session. Unknown or absent tokens are a no-op;
// either way the cookie is expired.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			errutil.LogError(s.logger, "logout failed", err)
			writeJSONError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}

	http.SetCookie(w, s.sessionCookie("", -1))

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleSession reports authentication state for rendering layers.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if principal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      principal.Identity.Username,
		"preferences":   principal.Identity.Preferences,
		"expires_at":    principal.Session.ExpiresAt,
	})
}

// handlePostMessage runs under the protected-route contract: the gate and
// CSRF guard have already passed, so the principal is present and the
// message is attributed to the resolved username, never client input.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())

	threadID, err := ulid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "invalid thread id", http.StatusBadRequest)
		return
	}

	msg, err := forum.NewMessage(threadID, principal.Identity.Username, r.PostFormValue("body"))
	if err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}

	if err := s.messages.Create(r.Context(), msg); err != nil {
		errutil.LogError(s.logger, "message not persisted", err)
		http.Error(w, "message could not be saved", http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, msg)
		return
	}
	http.Redirect(w, r, "/threads/"+threadID.String()+"/messages", http.StatusSeeOther)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	threadID, err := ulid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "invalid thread id", http.StatusBadRequest)
		return
	}

	messages, err := s.messages.ListByThread(r.Context(), threadID, 100)
	if err != nil {
		errutil.LogError(s.logger, "message listing failed", err)
		http.Error(w, "messages unavailable", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*forum.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleUpdatePreferences replaces the caller's account preferences.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())

	var prefs auth.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "invalid preferences", http.StatusBadRequest)
		return
	}

	if err := s.users.UpdatePreferences(r.Context(), principal.Identity.ID, prefs); err != nil {
		errutil.LogError(s.logger, "preferences not persisted", err)
		http.Error(w, "preferences could not be saved", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadIcon stores the caller's profile icon.
func (s *Server) handleUploadIcon(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())

	if err := r.ParseMultipartForm(maxIconUploadForm); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("icon")
	if err != nil {
		http.Error(w, "icon file is required", http.StatusBadRequest)
		return
	}
	defer file.Close() //nolint:errcheck // read-only handle

	mime, err := s.icons.Save(principal.Identity.ID, file)
	if err != nil {
		switch errutil.Code(err) {
		case "ICON_INVALID", "ICON_UNSUPPORTED_TYPE":
			http.Error(w, "unsupported image", http.StatusUnsupportedMediaType)
		case "ICON_TOO_LARGE":
			http.Error(w, "icon too large", http.StatusRequestEntityTooLarge)
		default:
			errutil.LogError(s.logger, "icon not persisted", err)
			http.Error(w, "icon could not be saved", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"content_type": mime})
}

// handleFetchIcon serves a stored icon verbatim with its sniffed type.
func (s *Server) handleFetchIcon(w http.ResponseWriter, r *http.Request) {
	identity, err := s.users.FindByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		errutil.LogError(s.logger, "icon owner lookup failed", err)
		http.Error(w, "icon unavailable", http.StatusInternalServerError)
		return
	}

	data, mime, err := s.icons.Open(identity.ID)
	if err != nil {
		if errutil.Code(err) == "ICON_NOT_FOUND" {
			http.NotFound(w, r)
			return
		}
		errutil.LogError(s.logger, "icon read failed", err)
		http.Error(w, "icon unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  cookieExpiry(maxAge),
	}
}

func cookieExpiry(maxAge int) time.Time {
	if maxAge < 0 {
		return time.Unix(0, 0)
	}
	return time.Time{}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may disconnect
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
