package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"queries": {RequestsPerMinute: 60, Burst: 1},
	})
	throttled := 0
	limiter.OnThrottle(func(string) { throttled++ })
	handler := limiter.Middleware("queries")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "2" {
		t.Fatalf("unexpected Retry-After %q", res.Header().Get("Retry-After"))
	}
	if throttled != 1 {
		t.Fatalf("expected one throttle callback, got %d", throttled)
	}
}

func TestRateLimiterSeparatesGroupsAndClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"queries":   {RequestsPerMinute: 1, Burst: 1},
		"snapshots": {RequestsPerMinute: 1, Burst: 1},
	})
	queries := limiter.Middleware("queries")(okHandler())
	snapshots := limiter.Middleware("snapshots")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	for name, handler := range map[string]http.Handler{"queries": queries, "snapshots": snapshots} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected first %s request to succeed, got %d", name, res.Code)
		}
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	other.Header.Set("X-Real-IP", "10.0.0.9")
	res := httptest.NewRecorder()
	queries.ServeHTTP(res, other)
	if res.Code != http.StatusOK {
		t.Fatalf("expected a different client to have its own bucket, got %d", res.Code)
	}
}

func TestRateLimiterUnknownGroupPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil)
	handler := limiter.Middleware("queries")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("expected unlimited group to pass, got %d", res.Code)
		}
	}
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(map[string]RateLimit{"queries": {RequestsPerMinute: 60, Burst: 1}})
	limiter.now = func() time.Time { return now }
	limiter.Middleware("queries")(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if removed := limiter.Sweep(time.Minute); removed != 0 {
		t.Fatalf("expected fresh client to be kept, removed %d", removed)
	}
	now = now.Add(2 * time.Minute)
	if removed := limiter.Sweep(time.Minute); removed != 1 {
		t.Fatalf("expected idle client to be removed, removed %d", removed)
	}
}
