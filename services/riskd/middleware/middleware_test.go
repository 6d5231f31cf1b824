package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 || res.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated uuid, got %q / %q", seen, res.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-7" {
		t.Fatalf("expected caller id to propagate, got %q", seen)
	}

	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 36 {
		t.Fatalf("expected oversized id to be replaced, got %d chars", len(seen))
	}
}

func TestObservabilityMiddleware(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{Enabled: true, MetricsPrefix: "risktest"}, nil)
	handler := obs.Middleware("markets.list")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/markets", nil))
	if res.Code != http.StatusTeapot {
		t.Fatalf("expected status passthrough, got %d", res.Code)
	}

	metrics := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metrics.Body.String()
	if !strings.Contains(body, `risktest_http_requests_total{method="GET",route="markets.list",status="I'm a teapot"} 1`) {
		t.Fatalf("expected request counter in metrics output:\n%s", body)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://risk.example.org"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/markets", nil)
	req.Header.Set("Origin", "https://risk.example.org")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent || res.Header().Get("Access-Control-Allow-Origin") != "https://risk.example.org" {
		t.Fatalf("unexpected preflight response %d %v", res.Code, res.Header())
	}

	req.Header.Set("Origin", "https://evil.example.com")
	req.Method = http.MethodGet
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected disallowed origin to receive no grant, got %v", res.Header())
	}
}
