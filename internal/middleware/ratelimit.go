// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// cleanupInterval is how often idle clients are forgotten.
const cleanupInterval = 5 * time.Minute

// uploadHistory holds the accepted upload times of one client, oldest
// first.
type uploadHistory struct {
	mu   sync.Mutex
	hits []time.Time
}

// prune drops hits at or before cutoff.
func (h *uploadHistory) prune(cutoff time.Time) {
	n := 0
	for n < len(h.hits) && !h.hits[n].After(cutoff) {
		n++
	}
	h.hits = h.hits[n:]
}

// RateLimiter caps theme uploads per client over a sliding window. Every
// accepted upload rewrites the export artifacts, so the budget is small.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*uploadHistory
	limit   int
	window  time.Duration
	now     func() time.Time
	stopCh  chan struct{}
}

// NewRateLimiter allows limit uploads per client in any window. A
// background goroutine forgets idle clients until Stop is called.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*uploadHistory),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// history returns the record for client, creating it on first use.
func (rl *RateLimiter) history(client string) *uploadHistory {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	h, ok := rl.clients[client]
	if !ok {
		h = &uploadHistory{}
		rl.clients[client] = h
	}
	return h
}

// allow records an upload for client if the budget permits. When it does
// not, wait is how long until the oldest counted upload leaves the window.
func (rl *RateLimiter) allow(client string) (ok bool, wait time.Duration) {
	now := rl.now()
	h := rl.history(client)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now.Add(-rl.window))
	if len(h.hits) >= rl.limit {
		return false, h.hits[0].Add(rl.window).Sub(now)
	}
	h.hits = append(h.hits, now)
	return true, 0
}

// cleanup forgets clients with no upload inside the window.
func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, h := range rl.clients {
		h.mu.Lock()
		h.prune(cutoff)
		idle := len(h.hits) == 0
		h.mu.Unlock()
		if idle {
			delete(rl.clients, client)
		}
	}
}

// Middleware rejects uploads over budget with a JSON 429. Retry-After is
// rounded up to whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := rl.allow(client)
		if !ok {
			slog.Warn("upload rate limit exceeded", "client", client, "path", r.URL.Path, "retry_after", wait.String())
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Too many submissions, try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) string {
	secs := int64((wait + time.Second - 1) / time.Second)
	return strconv.FormatInt(max(secs, 1), 10)
}

// clientIP identifies the uploader. Forwarding headers are only believed
// when the peer is a proxy on the loopback interface; otherwise anyone
// could pick a fresh address per request. With several X-Forwarded-For
// hops the last one is used, since that is the one the proxy appended.
func clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !isLoopback(r.RemoteAddr) {
		return peer
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	return peer
}
