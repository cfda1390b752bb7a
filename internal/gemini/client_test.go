package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"static-ads-backend/internal/settings"
)

func snap() settings.Snapshot {
	return settings.NewSnapshot(map[string]string{settings.GeminiAPIKey: "g-key"})
}

func TestGenerateTextRequestShape(t *testing.T) {
	var mu sync.Mutex
	var path, key string
	var body generateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"ok\":"},{"text":"true}"}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	got, err := c.GenerateText(context.Background(), snap(), "hello", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("text = %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %q", path)
	}
	if key != "g-key" {
		t.Fatalf("api key header = %q", key)
	}
	if body.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("responseMimeType = %q", body.GenerationConfig.ResponseMimeType)
	}
	if len(body.Contents) != 1 || body.Contents[0].Parts[0].Text != "hello" {
		t.Fatalf("contents = %+v", body.Contents)
	}
}

func TestGenerateTextRetriesWithoutMimeType(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls++
		mu.Unlock()
		if strings.Contains(string(raw), "responseMimeType") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid JSON payload received. Unknown name \"responseMimeType\""}}`)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"[]"}]}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	got, err := c.GenerateText(context.Background(), snap(), "x", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got != "[]" || calls != 2 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestGenerateTextErrors(t *testing.T) {
	c := New(Options{HTTPClient: http.DefaultClient})
	if _, err := c.GenerateText(context.Background(), settings.NewSnapshot(nil), "x", false); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("err = %v, want missing key error", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()
	c = New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.GenerateText(context.Background(), snap(), "x", false); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}
