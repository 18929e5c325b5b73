package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"autodialer/internal/calls"
	"autodialer/internal/httpapi"
	"autodialer/internal/reconcile"
	"autodialer/internal/telephony"

	"github.com/gin-gonic/gin"
)

func TestRegisterRoutes_PublicEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := reconcile.NewReconciler(calls.NewMemoryRepo(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	registerRoutes(r, httpapi.Handlers{}, telephony.StatusCallbackHandler{Reconciler: rec})

	for _, path := range []string{"/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	form := url.Values{"CallSid": {"CAunknown"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/api/call_status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("expected success ack, got %d %s", w.Code, w.Body.String())
	}
}

func TestWithCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := withCORS(inner, []string{"https://ops.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRedisWindow(t *testing.T) {
	cases := []struct {
		rate   float64
		burst  int
		limit  int
		window string
	}{
		{1, 1, 1, "1s"},
		{5, 1, 1, "200ms"},
		{5, 5, 5, "1s"},
		{2.5, 1, 1, "400ms"},
		{2.5, 5, 5, "2s"},
		{0.5, 1, 1, "2s"},
		{0.25, 0, 1, "4s"},
	}
	for _, tc := range cases {
		limit, window := redisWindow(tc.rate, tc.burst)
		if limit != tc.limit || window.String() != tc.window {
			t.Fatalf("rate %v burst %d: got %d per %v", tc.rate, tc.burst, limit, window)
		}
	}
}
