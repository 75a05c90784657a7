package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/api"
)

const testJWTSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, canTrigger bool, ttl time.Duration) string {
	t.Helper()

	claims := api.Claims{
		Sub:        "tester",
		CanTrigger: canTrigger,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedRequest(t *testing.T, router http.Handler, method, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, testJWTSecret)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not a bearer token", header: "Token abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret", false, time.Hour), want: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + signToken(t, testJWTSecret, false, -time.Hour), want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + signToken(t, testJWTSecret, false, time.Hour), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := authedRequest(t, router, http.MethodGet, "/jobs", tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRequireTriggerGatesMutations(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, testJWTSecret)

	readerToken := "Bearer " + signToken(t, testJWTSecret, false, time.Hour)
	triggerToken := "Bearer " + signToken(t, testJWTSecret, true, time.Hour)

	w := authedRequest(t, router, http.MethodPost, "/reports/some-job/email", readerToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("reader token on mutating route: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = authedRequest(t, router, http.MethodPost, "/reports/some-job/email", triggerToken)
	if w.Code != http.StatusOK {
		t.Errorf("trigger token on mutating route: status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	w = authedRequest(t, router, http.MethodGet, "/jobs", readerToken)
	if w.Code != http.StatusOK {
		t.Errorf("reader token on read route: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHealthRoutesSkipAuth(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, testJWTSecret)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		w := authedRequest(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s without token: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	deps := newTestDeps()
	router := deps.router(t, "")

	w := authedRequest(t, router, http.MethodGet, "/jobs", "")
	if w.Code != http.StatusOK {
		t.Errorf("open read: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = authedRequest(t, router, http.MethodPost, "/reports/some-job/email", "")
	if w.Code != http.StatusOK {
		t.Errorf("open mutation: status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}
