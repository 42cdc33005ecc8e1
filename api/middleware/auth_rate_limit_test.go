package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubLimiter struct {
	scopes []string
	counts map[string]int64
}

func newStubLimiter() *stubLimiter {
	return &stubLimiter{counts: map[string]int64{}}
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	s.scopes = append(s.scopes, scope)
	s.counts[scope]++
	return s.counts[scope] <= limit, s.counts[scope], nil
}

func loginRequest(email string) *http.Request {
	body := `{"email":"` + email + `","password":"secret-pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	return req
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRateLimitBlocksAfterIPLimit(t *testing.T) {
	limiter := newStubLimiter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)

	var called bool
	handler := AuthRateLimit(policy, limiter, nil)(okHandler(&called))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("buyer@example.com"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("buyer@example.com"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

func TestAuthRateLimitEmailScopeIsHashed(t *testing.T) {
	limiter := newStubLimiter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 5)

	var called bool
	handler := AuthRateLimit(policy, limiter, nil)(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("Buyer@Example.com"))

	if len(limiter.scopes) != 1 {
		t.Fatalf("expected one window check, got %v", limiter.scopes)
	}
	scope := limiter.scopes[0]
	if !strings.HasPrefix(scope, "login:email:") {
		t.Fatalf("unexpected scope %q", scope)
	}
	if strings.Contains(scope, "example.com") {
		t.Fatalf("scope leaks the plaintext email: %q", scope)
	}

	// Case and whitespace variants of the same address share a window.
	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("buyer@example.com"))
	if limiter.scopes[1] != scope {
		t.Fatalf("scopes differ for equivalent emails: %q vs %q", scope, limiter.scopes[1])
	}
}

func TestAuthRateLimitRestoresBodyForNextHandler(t *testing.T) {
	limiter := newStubLimiter()
	policy := NewAuthRateLimitPolicy("register", time.Minute, 0, 3)

	var seen string
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("buyer@example.com"))
	if !strings.Contains(seen, "buyer@example.com") {
		t.Fatalf("downstream handler got body %q", seen)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	limiter := newStubLimiter()
	policy := NewAuthRateLimitPolicy("login", 0, 10, 10)

	var called bool
	handler := AuthRateLimit(policy, limiter, nil)(okHandler(&called))

	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("buyer@example.com"))
	if !called {
		t.Fatal("expected the wrapped handler to run")
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("limiter consulted for a disabled policy: %v", limiter.scopes)
	}
}
