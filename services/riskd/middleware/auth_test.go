package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "risk-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthenticatorScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "risk-ops", Audience: "riskd"}, nil)
	var reasons []string
	auth.OnDenied(func(reason string) { reasons = append(reasons, reason) })

	var subject string
	handler := auth.Middleware("snapshots:write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = SubjectFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	exp := time.Now().Add(time.Hour).Unix()
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signToken(t, "other", jwt.MapClaims{"iss": "risk-ops", "aud": "riskd", "exp": exp, "scope": "snapshots:write"}), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"iss": "x", "aud": "riskd", "exp": exp, "scope": "snapshots:write"}), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"iss": "risk-ops", "aud": []string{"x"}, "exp": exp, "scope": "snapshots:write"}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"iss": "risk-ops", "aud": "riskd", "exp": time.Now().Add(-time.Hour).Unix(), "scope": "snapshots:write"}), http.StatusUnauthorized},
		{"missing scope", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"iss": "risk-ops", "aud": "riskd", "exp": exp, "scope": "queries:read"}), http.StatusForbidden},
		{"ok", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "loader", "iss": "risk-ops", "aud": []string{"riskd"}, "exp": exp, "scope": []string{"queries:read", "snapshots:write"}}), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/markets/m/snapshot", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, res.Code, res.Body.String())
			}
			if tc.status >= 400 {
				var body map[string]string
				if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil || body["error"] == "" {
					t.Fatalf("expected json error body, got %q", res.Body.String())
				}
			}
		})
	}
	if subject != "loader" {
		t.Fatalf("expected subject in context, got %q", subject)
	}
	if len(reasons) != len(cases)-1 {
		t.Fatalf("expected a denial per rejected case, got %v", reasons)
	}
}

func TestAuthenticatorDisabled(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	handler := auth.Middleware("snapshots:write")(okHandler())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected disabled auth to pass, got %d", res.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	if got := extractBearer("bearer  abc "); got != "abc" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := extractBearer("Bearer"); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
