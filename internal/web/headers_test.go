// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package web_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/web"
)

func TestNewHeaderPolicy(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		policy, err := web.NewHeaderPolicy(config.SecurityConfig{
			HSTSMaxAge: 31536000,
			AssetHosts: []string{"cdn.example.com", "img.example.net"},
		})
		require.NoError(t, err)

		headers := policy.Headers()
		assert.Contains(t, headers["Content-Security-Policy"], "style-src 'self' cdn.example.com img.example.net")
		assert.Equal(t, "max-age=31536000; includeSubDomains", headers["Strict-Transport-Security"])
		assert.Equal(t, "DENY", headers["X-Frame-Options"])
	})

	tests := []struct {
		name string
		cfg  config.SecurityConfig
	}{
		{"zero hsts", config.SecurityConfig{HSTSMaxAge: 0}},
		{"empty host", config.SecurityConfig{HSTSMaxAge: 1, AssetHosts: []string{""}}},
		{"host smuggling directive", config.SecurityConfig{
			HSTSMaxAge: 1,
			AssetHosts: []string{"cdn.example.com; script-src *"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := web.NewHeaderPolicy(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestHeaderPolicy_Middleware(t *testing.T) {
	policy, err := web.NewHeaderPolicy(config.SecurityConfig{HSTSMaxAge: 60})
	require.NoError(t, err)

	handler := policy.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	for name := range policy.Headers() {
		assert.NotEmpty(t, rec.Header().Get(name), "missing header %s", name)
	}
}

func TestRouteClassifier(t *testing.T) {
	classifier, err := web.NewRouteClassifier([]string{"/", "/login", "/threads/**", "/icons/**"})
	require.NoError(t, err)

	assert.True(t, classifier.IsPublic("/"))
	assert.True(t, classifier.IsPublic("/login"))
	assert.True(t, classifier.IsPublic("/threads/01ABC/messages"))
	assert.True(t, classifier.IsPublic("/icons/alice@example.com"))
	assert.False(t, classifier.IsPublic("/preferences"))
	assert.False(t, classifier.IsPublic("/admin"))

	t.Run("bad pattern fails startup", func(t *testing.T) {
		_, err := web.NewRouteClassifier([]string{"[unclosed"})
		assert.Error(t, err)
	})
}
