package mistral

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

func TestGenerateTextJSONMode(t *testing.T) {
	var mu sync.Mutex
	var auth, path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  {\"a\":1} "}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	snap := settings.NewSnapshot(map[string]string{settings.MistralAPIKey: "m-key"})
	got, err := c.GenerateText(context.Background(), snap, "give json", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("text = %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/chat/completions" || auth != "Bearer m-key" {
		t.Fatalf("path = %q auth = %q", path, auth)
	}
	if body["model"] != "mistral-small-latest" || body["temperature"] != 0.7 {
		t.Fatalf("body = %v", body)
	}
	rf, ok := body["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", body["response_format"])
	}
}

func TestGenerateTextPlainOmitsResponseFormat(t *testing.T) {
	var mu sync.Mutex
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		raw = b
		mu.Unlock()
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"hi"}}]}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	snap := settings.NewSnapshot(map[string]string{settings.MistralAPIKey: "k"})
	if _, err := c.GenerateText(context.Background(), snap, "hi", false); err != nil {
		t.Fatalf("generate: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Contains(string(raw), "response_format") {
		t.Fatalf("plain request carried response_format: %s", raw)
	}
}

func TestGenerateTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "rate limit exceeded")
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	snap := settings.NewSnapshot(map[string]string{settings.MistralAPIKey: "k"})
	_, err := c.GenerateText(context.Background(), snap, "hi", false)
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("err = %v", err)
	}
}
