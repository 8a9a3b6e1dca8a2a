package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// IntakeLimiter throttles the public lead form with a token bucket per
// (org, client IP) pair. Keying on the pair keeps a scripted burst against
// one clinic's embed from starving intake for every other clinic whose
// traffic arrives from the same egress IP.
type IntakeLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens
	now     func() time.Time
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewIntakeLimiter creates a limiter allowing rate submissions/sec with the
// given burst size per (org, IP) pair.
func NewIntakeLimiter(rate float64, burst int) *IntakeLimiter {
	rl := &IntakeLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
	// Periodically evict stale entries to prevent memory growth.
	go rl.cleanup()
	return rl
}

// Allow reports whether a submission for orgID from ip is within the limit.
func (rl *IntakeLimiter) Allow(orgID, ip string) bool {
	key := orgID + "|" + ip

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastTime: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastTime = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// retryAfter is the wait, in whole seconds, until the next token refills.
func (rl *IntakeLimiter) retryAfter() int {
	if rl.rate <= 0 {
		return 1
	}
	return int(math.Ceil(1 / rl.rate))
}

func (rl *IntakeLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-10 * time.Minute)
		for key, b := range rl.buckets {
			if b.lastTime.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit returns an HTTP middleware for the intake endpoint that rejects
// submissions exceeding the configured rate with 429 and a Retry-After
// hint. The org comes from the X-Org-ID header; RequireOrg validates its
// presence afterwards, an empty org here just falls into a shared bucket.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewIntakeLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(r.Header.Get(OrgHeader), ip) {
				w.Header().Set("Retry-After", strconv.Itoa(limiter.retryAfter()))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
