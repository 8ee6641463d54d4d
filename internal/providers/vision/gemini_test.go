package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio/internal/domain"
)

func TestExtractParsesCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a bottle on a marble table"}]}}]}`))
	}))
	defer srv.Close()

	ex := NewGeminiExtractor(GeminiOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got, err := ex.Extract(context.Background(), []SourceImage{{MIMEType: "image/jpeg", Data: []byte{1}}}, "describe")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "a bottle on a marble table" {
		t.Fatalf("prompt = %q", got)
	}
}

func TestExtractClassifiesRateLimitAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer srv.Close()

	ex := NewGeminiExtractor(GeminiOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := ex.Extract(context.Background(), []SourceImage{{Data: []byte{1}}}, "describe")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestExtractClassifiesBadRequestAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"unsupported image"}}`))
	}))
	defer srv.Close()

	ex := NewGeminiExtractor(GeminiOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := ex.Extract(context.Background(), []SourceImage{{Data: []byte{1}}}, "describe")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsTransient(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}

func TestExtractSyntheticFallbackIsDeterministic(t *testing.T) {
	ex := NewGeminiExtractor(GeminiOptions{})
	imgs := []SourceImage{{Data: []byte("same bytes")}}

	first, err := ex.Extract(context.Background(), imgs, "describe")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, _ := ex.Extract(context.Background(), imgs, "describe")
	if first != second {
		t.Fatal("synthetic prompt not deterministic")
	}
	if !strings.Contains(first, "photorealistic") {
		t.Fatalf("unexpected synthetic prompt: %q", first)
	}
}
