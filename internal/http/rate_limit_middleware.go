package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const rateLimiterPruneEvery = 5 * time.Minute

// RateLimiter counts hits per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// memoryRateLimiter keeps one fixed window per key. Expired windows are pruned from
// inside Allow, at most once per rateLimiterPruneEvery.
type memoryRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*fixedWindow
	now       func() time.Time
	nextPrune time.Time
}

type fixedWindow struct {
	hits  int
	reset time.Time
}

// NewMemoryRateLimiter keeps counters in process memory.
func NewMemoryRateLimiter() RateLimiter {
	return newMemoryRateLimiter(time.Now)
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{
		windows:   make(map[string]*fixedWindow),
		now:       now,
		nextPrune: now().Add(rateLimiterPruneEvery),
	}
}

func (rl *memoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(now)

	w := rl.windows[key]
	if w == nil || !now.Before(w.reset) {
		w = &fixedWindow{reset: now.Add(window)}
		rl.windows[key] = w
	}
	if w.hits >= limit {
		return rateDecision{count: w.hits, windowEnd: w.reset}
	}
	w.hits++
	return rateDecision{allowed: true, count: w.hits, windowEnd: w.reset}
}

func (rl *memoryRateLimiter) prune(now time.Time) {
	if now.Before(rl.nextPrune) {
		return
	}
	for key, w := range rl.windows {
		if !now.Before(w.reset) {
			delete(rl.windows, key)
		}
	}
	rl.nextPrune = now.Add(rateLimiterPruneEvery)
}

func (rl *memoryRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Close is a no-op; the limiter holds no background resources.
func (rl *memoryRateLimiter) Close() {}

// withRateLimit throttles POSTs to route per client. Other methods pass through.
func (r *Router) withRateLimit(route string, limit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		ip := r.clientIP(req)
		if ip == "" {
			ip = "unknown"
		}
		decision := r.limiter.Allow(req.Context(), route+"|ip:"+ip, limit, window)
		r.applyRateHeaders(w, limit, decision)
		if !decision.allowed {
			r.recordRateLimitHit(route)
			r.logger.Warn("rate limit exceeded", "route", route, "ip", ip)
			if wantsJSON(req) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			r.renderStatus(w, req, http.StatusTooManyRequests)
			return
		}
		next(w, req)
	}
}
