package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTeamIDRequired(t *testing.T) {
	handler := TeamID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without team header")
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/generations/x/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTeamIDPropagates(t *testing.T) {
	var got string
	handler := TeamID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TeamIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Team-ID", "team-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "team-42" {
		t.Fatalf("team id = %q", got)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" {
		t.Fatal("no request id assigned")
	}
	if rec.Header().Get("X-Request-ID") != got {
		t.Fatal("request id not echoed in response header")
	}
}

func TestRequestIDPreservedWhenReasonable(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "trace-abc-123" {
		t.Fatalf("request id = %q, want caller value", got)
	}
}

func TestRequestIDReplacedWhenOversized(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))
	huge := strings.Repeat("x", 500)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", huge)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got == "" || got == huge {
		t.Fatalf("oversized request id not replaced")
	}
}
