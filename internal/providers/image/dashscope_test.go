package image

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"studio/internal/domain"
)

func TestDashScopeSubmitPollDownload(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/multimodal-generation/generation"):
			if r.Header.Get("X-DashScope-Async") != "enable" {
				t.Error("async header missing")
			}
			fmt.Fprint(w, `{"output":{"task_id":"task-1","task_status":"PENDING"}}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tasks/task-1"):
			if polls.Add(1) < 2 {
				fmt.Fprint(w, `{"output":{"task_status":"RUNNING"}}`)
				return
			}
			fmt.Fprintf(w, `{"output":{"task_status":"SUCCEEDED","results":[{"url":"%s/result.png"}]}}`, srvURL)
		case r.Method == http.MethodGet && r.URL.Path == "/result.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	gen := NewDashScopeGenerator(DashScopeOptions{
		APIKey:       "k",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: 10 * time.Millisecond,
	})
	res, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "warm lighting", Model: "qwen-image-edit"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(res.Data) != "png-bytes" || res.MIMEType != "image/png" {
		t.Fatalf("result = %q (%s)", res.Data, res.MIMEType)
	}
	if polls.Load() < 2 {
		t.Fatalf("polls = %d, want at least 2", polls.Load())
	}
}

func TestDashScopeWaitBudgetIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"output":{"task_id":"task-2","task_status":"PENDING"}}`)
			return
		}
		fmt.Fprint(w, `{"output":{"task_status":"RUNNING"}}`)
	}))
	defer srv.Close()

	gen := NewDashScopeGenerator(DashScopeOptions{
		APIKey:       "k",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, GenerateRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected wait budget error")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestDashScopeFailedTaskIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"output":{"task_id":"task-3","task_status":"PENDING"}}`)
			return
		}
		fmt.Fprint(w, `{"output":{"task_status":"FAILED","message":"content rejected"}}`)
	}))
	defer srv.Close()

	gen := NewDashScopeGenerator(DashScopeOptions{
		APIKey:       "k",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: 5 * time.Millisecond,
	})
	_, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if domain.IsTransient(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}
