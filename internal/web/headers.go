// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/config"
)

// HeaderPolicy is the fixed set of security headers applied to every
// response. Built once at startup; construction fails on a malformed
// configuration rather than serving with a weakened policy.
type HeaderPolicy struct {
	headers map[string]string
}

// NewHeaderPolicy builds the header set from configuration.
func NewHeaderPolicy(cfg config.SecurityConfig) (*HeaderPolicy, error) {
	if cfg.HSTSMaxAge <= 0 {
		return nil, oops.Code("HEADER_POLICY_INVALID").
			Errorf("hsts max-age must be positive")
	}

	assetSrc := "'self'"
	for _, host := range cfg.AssetHosts {
		if strings.TrimSpace(host) == "" || strings.ContainsAny(host, "; \t\n\r'\"") {
			return nil, oops.Code("HEADER_POLICY_INVALID").
				With("host", host).
				Errorf("malformed asset host")
		}
		assetSrc += " " + host
	}

	csp := fmt.Sprintf("default-src 'self'; style-src %s; img-src %s", assetSrc, assetSrc)

	headers := map[string]string{
		"Content-Security-Policy":   csp,
		"Strict-Transport-Security": fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge),
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
	}
	for name, value := range headers {
		if value == "" {
			return nil, oops.Code("HEADER_POLICY_INVALID").
				With("header", name).
				Errorf("empty header value")
		}
	}

	return &HeaderPolicy{headers: headers}, nil
}

// Middleware applies the header set before any other processing, so every
// response path carries it, including 404s, panics, and rejections.
func (p *HeaderPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range p.headers {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}

// Headers returns a copy of the computed header set.
func (p *HeaderPolicy) Headers() map[string]string {
	out := make(map[string]string, len(p.headers))
	for name, value := range p.headers {
		out[name] = value
	}
	return out
}
