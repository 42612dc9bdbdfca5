package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opjourney/opjourney/pkg/auth"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	limiter := NewLimiter(10, 2) // 10 requests per second, burst of 2

	if !limiter.Allow("client") {
		t.Error("first request should be allowed")
	}
	if !limiter.Allow("client") {
		t.Error("second request should be allowed")
	}
	if limiter.Allow("client") {
		t.Error("third request should be rate limited")
	}

	// 10 req/s refills one token per 100ms.
	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow("client") {
		t.Error("request after refill should be allowed")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 1)
	if !limiter.Allow("alpha") {
		t.Error("alpha should be allowed")
	}
	if !limiter.Allow("bravo") {
		t.Error("bravo should not share alpha's bucket")
	}
}

func TestCleanup(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.Allow("stale")

	limiter.Cleanup(0) // everything is older than "now"
	limiter.mu.Lock()
	n := len(limiter.limiters)
	limiter.mu.Unlock()
	if n != 0 {
		t.Errorf("%d limiters left after cleanup, want 0", n)
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(10, 1)
	handler := limiter.Middleware(ClientKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/diagnostics/journey", nil)
	req.Header.Set(auth.ClientHeader, "opjctl")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("first request: status %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status %d, want 429", rec.Code)
	}
}

func TestKeyFuncs(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	if got := IPKeyFunc(r); got != "10.0.0.1:4242" {
		t.Errorf("IPKeyFunc = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := IPKeyFunc(r); got != "203.0.113.9" {
		t.Errorf("IPKeyFunc with XFF = %q", got)
	}

	if got := ClientKeyFunc(r); got != "203.0.113.9" {
		t.Errorf("ClientKeyFunc anonymous = %q", got)
	}
	r.Header.Set(auth.ClientHeader, "opjctl")
	if got := ClientKeyFunc(r); got != "opjctl" {
		t.Errorf("ClientKeyFunc = %q", got)
	}
}
