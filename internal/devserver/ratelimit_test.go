package devserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestThrottle tests per-address buckets, refill and idle sweep
func TestThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottle(Limits{Rate: 1, Burst: 2, Idle: time.Minute})
	th.now = func() time.Time { return now }

	if !th.Allow("a") || !th.Allow("a") {
		t.Fatal("Expected the burst to be allowed")
	}
	if th.Allow("a") {
		t.Error("Expected a to be throttled after its burst")
	}
	if !th.Allow("b") {
		t.Error("Expected b to have its own bucket")
	}

	now = now.Add(time.Second)
	if !th.Allow("a") {
		t.Error("Expected a token after one second")
	}

	now = now.Add(30 * time.Second)
	th.Allow("a")
	now = now.Add(31 * time.Second)
	th.Allow("a")
	if th.Len() != 1 {
		t.Errorf("Expected idle b swept, got %d addresses", th.Len())
	}

	allowed, rejected := th.Counts()
	if allowed != 6 || rejected != 1 {
		t.Errorf("Expected 6 allowed and 1 rejected, got %d and %d", allowed, rejected)
	}
}

// TestThrottleMiddleware tests the 429 answer on the admin API
func TestThrottleMiddleware(t *testing.T) {
	th := NewThrottle(Limits{Rate: 0.001, Burst: 1, Idle: time.Minute})
	h := th.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("Expected Retry-After header")
	}

	req.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected another address to pass, got %d", rec.Code)
	}
}
