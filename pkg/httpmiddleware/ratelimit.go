package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the caller; ClientIP when nil. Requests with an
	// empty key are not limited.
	KeyFunc func(*http.Request) string
	// Message overrides the 429 message.
	Message string
}

// counter approximates a sliding window from the current and previous
// fixed windows.
type counter struct {
	prev      float64
	curr      float64
	currStart time.Time
}

type limiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later."
	}
	return &limiter{cfg: cfg, counters: make(map[string]*counter)}
}

// take counts a request for key and reports whether it fits the limit.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	win := l.cfg.Window
	c, found := l.counters[key]
	if !found {
		c = &counter{currStart: now.Truncate(win)}
		l.counters[key] = c
	}
	if elapsed := now.Sub(c.currStart); elapsed >= win {
		if elapsed >= 2*win {
			c.prev = 0
		} else {
			c.prev = c.curr
		}
		c.curr = 0
		c.currStart = now.Truncate(win)
	}

	weight := 1 - now.Sub(c.currStart).Seconds()/win.Seconds()
	if weight < 0 {
		weight = 0
	}
	used := c.prev*weight + c.curr
	resetAt = c.currStart.Add(win)
	if used >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}
	c.curr++
	remaining = max(int(float64(l.cfg.Max)-used-1), 0)
	return remaining, resetAt, true
}

// sweep drops counters idle for two windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.currStart) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.cfg.KeyFunc(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		now := time.Now()
		remaining, resetAt, ok := l.take(key, now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !ok {
			wait := max(resetAt.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, l.cfg.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits requests per key. Idle keys are kept until the process
// exits; use RateLimitWithCleanup for long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background sweep of idle keys
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()
	return l.middleware
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
