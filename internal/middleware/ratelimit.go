package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/shopassist/internal/auth"
)

// RealIP returns the client address. The service runs behind one reverse
// proxy, so the first X-Forwarded-For hop (or X-Real-IP) is trusted.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Policy is a fixed-window request budget. Name keeps the windows of
// different policies apart when they share a limiter.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts requests per key in memory.
type RateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// take records one request for key and reports whether it fits the policy,
// how many requests are left and when the window resets.
func (rl *RateLimiter) take(key string, p Policy) (ok bool, remaining int, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, found := rl.windows[key]
	if !found || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(p.Window)}
		rl.windows[key] = w
	}
	w.count++
	return w.count <= p.Limit, max(p.Limit-w.count, 0), w.resetAt
}

// Allow reports whether one more request for key fits the policy.
func (rl *RateLimiter) Allow(key string, p Policy) bool {
	ok, _, _ := rl.take(p.Name+"|"+key, p)
	return ok
}

// Cleanup drops windows that have reset and returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// RateLimit enforces p per key. Every response carries X-RateLimit-Limit and
// X-RateLimit-Remaining; rejected requests get 429 with Retry-After.
func RateLimit(limiter *RateLimiter, p Policy, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, resetAt := limiter.take(p.Name+"|"+keyFunc(r), p)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				retry := int(resetAt.Sub(limiter.now()).Round(time.Second).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys rate limits on the client address.
func ByIP(r *http.Request) string {
	return "ip:" + RealIP(r)
}

// ByUser keys rate limits on the authenticated user, falling back to the
// client address. It must run after RequireAuth.
func ByUser(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ByIP(r)
}
