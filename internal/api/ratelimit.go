package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter counts requests per client over a sliding window
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows limit requests per client IP within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
		ticker:  time.NewTicker(window),
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// sweep drops clients whose window has emptied
func (rl *RateLimiter) sweep() {
	for {
		select {
		case <-rl.ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, hits := range rl.clients {
				if hits = prune(hits, now, rl.window); len(hits) == 0 {
					delete(rl.clients, key)
				} else {
					rl.clients[key] = hits
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			rl.ticker.Stop()
			return
		}
	}
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow records a request from r's client and reports whether it fits the limit
func (rl *RateLimiter) Allow(r *http.Request) bool {
	key := GetClientIP(r)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	hits := prune(rl.clients[key], now, rl.window)
	if len(hits) >= rl.limit {
		rl.clients[key] = hits
		return false
	}
	rl.clients[key] = append(hits, now)
	return true
}

// prune drops timestamps older than window; hits is in ascending order
func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(hits) && hits[i].Before(cutoff) {
		i++
	}
	return hits[i:]
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the host part of r.RemoteAddr.
// middleware.RealIP has already applied X-Real-IP / X-Forwarded-For, so the
// headers are not consulted again here.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiters holds the limiters shared by the router
type RateLimiters struct {
	Global   *RateLimiter
	Download *RateLimiter

	// downloads caps report downloads in flight; each one holds a
	// pooled connection while the content streams
	downloads chan struct{}
}

// NewRateLimiters creates the standard limiters: 100 requests per minute per
// IP overall, 10 report downloads per minute per IP, 3 downloads at once.
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{
		Global:    NewRateLimiter(100, time.Minute),
		Download:  NewRateLimiter(10, time.Minute),
		downloads: make(chan struct{}, 3),
	}
}

// Stop stops every limiter
func (rls *RateLimiters) Stop() {
	rls.Global.Stop()
	rls.Download.Stop()
}

// DownloadGuard applies the per-IP download limit, then the concurrency cap.
// Returns 429 when rate limited and 503 when every download slot is taken.
func (rls *RateLimiters) DownloadGuard(next http.Handler) http.Handler {
	limited := rls.Download.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case rls.downloads <- struct{}{}:
			defer func() { <-rls.downloads }()
		default:
			http.Error(w, "Download capacity full, try again shortly", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	}))
	return limited
}
