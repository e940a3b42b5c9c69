package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// window tracks one client's requests inside the current period
type window struct {
	start time.Time
	count int
}

// RateLimiter implements a fixed window rate limiter keyed by client IP
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	rate    int           // requests per window
	window  time.Duration // time window
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*window),
		rate:    rate,
		window:  period,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it fits the budget
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) > l.window {
		l.clients[key] = &window{start: now, count: 1}
		l.sweep(now)
		return true
	}
	if w.count >= l.rate {
		return false
	}
	w.count++
	return true
}

// sweep drops expired windows. Must be called with lock held
func (l *RateLimiter) sweep(now time.Time) {
	for k, w := range l.clients {
		if now.Sub(w.start) > l.window {
			delete(l.clients, k)
		}
	}
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, period time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, period)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"request_id", GetRequestID(c),
			)
			abort(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		c.Next()
	}
}
