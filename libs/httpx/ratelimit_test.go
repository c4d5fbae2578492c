package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestMemoryRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewMemoryRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	h := RateLimit(rl, nil, false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var retryAfter string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders/policy", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
		retryAfter = rw.Header().Get("Retry-After")
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if retryAfter != "60" {
		t.Fatalf("expected Retry-After 60, got %q", retryAfter)
	}

	now = now.Add(61 * time.Second)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders/policy", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", rw.Code)
	}
}

func TestRateLimitFailOpen(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rw := httptest.NewRecorder()
	RateLimit(failingLimiter{}, nil, true)(next).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusNoContent {
		t.Fatalf("fail-open should pass through, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	RateLimit(failingLimiter{}, nil, false)(next).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("fail-closed should answer 503, got %d", rw.Code)
	}
}
