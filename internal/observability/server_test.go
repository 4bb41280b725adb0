// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test URL built from loopback addr
	if err != nil {
		t.Fatalf("failed to GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startTestServer(t, func() bool { return true })

	addr := server.Addr()
	if addr == "" {
		t.Fatal("server address is empty")
	}

	status, body := fetch(t, "http://"+addr+"/metrics")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if !strings.Contains(body, "# HELP") {
		t.Error("expected Prometheus format with HELP comments")
	}
	if !strings.Contains(body, "go_") {
		t.Error("expected go_* metrics")
	}

	metrics := server.Metrics()
	metrics.RecordLogin(true)
	metrics.RecordLogin(false)
	metrics.CSRFRejectionsTotal.Inc()
	metrics.RecordRequest(http.MethodPost, http.StatusForbidden)
	metrics.ActiveSessions.Set(3)

	_, body = fetch(t, "http://"+addr+"/metrics")
	for _, want := range []string{
		`quillboard_logins_total{result="success"} 1`,
		`quillboard_logins_total{result="failure"} 1`,
		"quillboard_csrf_rejections_total 1",
		`quillboard_http_requests_total{method="POST",status="403"} 1`,
		"quillboard_active_sessions 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_HealthProbes(t *testing.T) {
	ready := false
	server := startTestServer(t, func() bool { return ready })
	addr := server.Addr()

	status, _ := fetch(t, "http://"+addr+"/healthz/liveness")
	if status != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", status)
	}

	status, _ = fetch(t, "http://"+addr+"/healthz/readiness")
	if status != http.StatusServiceUnavailable {
		t.Errorf("readiness before ready: expected 503, got %d", status)
	}

	ready = true
	status, _ = fetch(t, "http://"+addr+"/healthz/readiness")
	if status != http.StatusOK {
		t.Errorf("readiness after ready: expected 200, got %d", status)
	}
}

func TestServer_StartStopLifecycle(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	if _, err := server.Start(); err == nil {
		t.Error("second Start should fail while running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	// Graceful stop closes the error channel without an error.
	select {
	case serveErr, ok := <-errCh:
		if ok && serveErr != nil {
			t.Errorf("unexpected server error: %v", serveErr)
		}
	case <-time.After(5 * time.Second):
		t.Error("error channel not closed after stop")
	}

	if err := server.Stop(ctx); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}
