package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Hour)

	for i := range 3 {
		if ok, _ := rl.allow("203.0.113.1"); !ok {
			t.Fatalf("upload %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.allow("203.0.113.1"); ok {
		t.Error("4th upload should be rate limited")
	}
	if ok, _ := rl.allow("203.0.113.2"); !ok {
		t.Error("another client should be allowed")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Hour)

	rl.allow("c")
	clock.Advance(20 * time.Minute)
	rl.allow("c")

	clock.Advance(30 * time.Minute)
	ok, wait := rl.allow("c")
	if ok {
		t.Fatal("third upload inside the window should be limited")
	}
	if wait != 10*time.Minute {
		t.Errorf("wait = %v, want 10m (until the first upload expires)", wait)
	}

	// The first upload leaves the window; one slot frees up.
	clock.Advance(10 * time.Minute)
	if ok, _ := rl.allow("c"); !ok {
		t.Error("upload should be allowed once the oldest one expired")
	}
	if ok, _ := rl.allow("c"); ok {
		t.Error("only one slot should have freed up")
	}
}

func TestRateLimiterRejectedDoNotCount(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Minute)

	rl.allow("c")
	for range 5 {
		rl.allow("c")
	}
	clock.Advance(time.Minute)
	if ok, _ := rl.allow("c"); !ok {
		t.Error("rejected attempts must not extend the window")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Hour)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	upload := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/themes", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := range 2 {
		if rr := upload(); rr.Code != http.StatusCreated {
			t.Fatalf("upload %d: got status %d, want 201", i+1, rr.Code)
		}
		clock.Advance(90 * time.Second)
	}

	rr := upload()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rr.Code)
	}
	// 60 minutes minus the 3 minutes since the first upload.
	if got := rr.Header().Get("Retry-After"); got != "3420" {
		t.Errorf("Retry-After: got %q, want %q", got, "3420")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q, want application/json", ct)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{0, "1"},
		{10 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{time.Hour, "3600"},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.wait); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %q, want %q", tt.wait, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.1:1234",
			want:       "192.168.1.1",
		},
		{
			name:       "remote addr no port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
		{
			name:       "ipv6 peer",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "forwarded header from public peer ignored",
			xff:        "10.0.0.1",
			xri:        "10.0.0.2",
			remoteAddr: "198.51.100.9:1234",
			want:       "198.51.100.9",
		},
		{
			name:       "x-real-ip from local proxy",
			xri:        "203.0.113.5",
			xff:        "203.0.113.6",
			remoteAddr: "127.0.0.1:5000",
			want:       "203.0.113.5",
		},
		{
			name:       "last x-forwarded-for hop from local proxy",
			xff:        "10.9.9.9, 203.0.113.7",
			remoteAddr: "[::1]:5000",
			want:       "203.0.113.7",
		},
		{
			name:       "local peer without headers",
			remoteAddr: "127.0.0.1:5000",
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, 10, time.Hour)

	rl.allow("idle")
	clock.Advance(45 * time.Minute)
	rl.allow("active")
	clock.Advance(30 * time.Minute)

	rl.cleanup()

	rl.mu.Lock()
	_, idle := rl.clients["idle"]
	_, active := rl.clients["active"]
	rl.mu.Unlock()

	if idle {
		t.Error("client with no upload inside the window should be forgotten")
	}
	if !active {
		t.Error("client with a recent upload should be kept")
	}
}
