package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-caller hourly quota plus a per-minute burst
// cap. Both token buckets must admit a request. Callers are keyed by API
// key (or remote address when auth is disabled).
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry

	perHour     int
	burstPerMin int
}

type limiterEntry struct {
	hourly *rate.Limiter
	burst  *rate.Limiter
}

// NewRateLimiter creates a limiter with the given quotas. perHour <= 0
// disables limiting entirely.
func NewRateLimiter(perHour, burstPerMin int) *RateLimiter {
	return &RateLimiter{
		entries:     make(map[string]*limiterEntry),
		perHour:     perHour,
		burstPerMin: burstPerMin,
	}
}

func (l *RateLimiter) entry(key string) *limiterEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{
			hourly: rate.NewLimiter(rate.Limit(float64(l.perHour)/3600.0), l.perHour),
		}
		if l.burstPerMin > 0 {
			e.burst = rate.NewLimiter(rate.Limit(float64(l.burstPerMin)/60.0), l.burstPerMin)
		}
		l.entries[key] = e
	}
	return e
}

// Middleware applies the quota and sets X-RateLimit-* headers on every
// response it sees.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.perHour <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		e := l.entry(requestKey(r))
		allowedHourly := e.hourly.Allow()
		allowedBurst := true
		if e.burst != nil {
			allowedBurst = e.burst.Allow()
		}

		now := time.Now()
		remaining := int(e.hourly.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.perHour))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(l.resetAt(e, now).Unix(), 10))

		if !allowedHourly || !allowedBurst {
			writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resetAt estimates when the hourly bucket next has a whole token.
func (l *RateLimiter) resetAt(e *limiterEntry, now time.Time) time.Time {
	tokens := e.hourly.Tokens()
	if tokens >= 1 {
		return now
	}
	wait := time.Duration((1 - tokens) / float64(e.hourly.Limit()) * float64(time.Second))
	return now.Add(wait)
}
