package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWithoutLimitUsesPlainTransport(t *testing.T) {
	c := New(Options{})
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Fatalf("transport = %T, want *http.Transport", c.Transport)
	}
	if c.Timeout != 180*time.Second {
		t.Fatalf("timeout = %s", c.Timeout)
	}
}

func TestLimitedTransportSpacesRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 20,
		Burst:             1,
		Transport:         srv.Client().Transport,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := c.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("3 requests at 20 rps took %s, want >= 90ms", elapsed)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestLimitedTransportHonoursContext(t *testing.T) {
	c := New(Options{
		RequestsPerSecond: 0.001,
		Burst:             1,
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	})

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	if _, err := c.Do(req); err == nil {
		t.Fatalf("expected limiter wait to fail")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancel error: %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
