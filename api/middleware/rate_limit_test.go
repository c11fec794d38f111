package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/create-intent", nil)
	req.RemoteAddr = ip + ":54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
	}
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request should be blocked, got %d", rec.Code)
	}
	// A different client has its own window.
	if rec := doRequest(t, handler, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other ip should pass, got %d", rec.Code)
	}
}

func TestRateLimit_FailsOpenWhenStoreErrors(t *testing.T) {
	store := &fakeLimiterStore{err: errors.New("redis down")}
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 1), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(t, handler, "10.0.0.3"); rec.Code != http.StatusOK {
			t.Fatalf("limiter outage must not block, got %d", rec.Code)
		}
	}
}

func TestRateLimit_DisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("payments", 0, 0), &fakeLimiterStore{}, nil)(okHandler())
	if rec := doRequest(t, handler, "10.0.0.4"); rec.Code != http.StatusOK {
		t.Fatalf("disabled policy must pass through, got %d", rec.Code)
	}
}

func TestRateLimit_PrefersForwardedFor(t *testing.T) {
	store := &fakeLimiterStore{}
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 1), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/payments/create-intent", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, ok := store.counts["rl:ip:payments:203.0.113.7"]; !ok {
		t.Fatalf("expected forwarded ip key, got %v", store.counts)
	}
}
