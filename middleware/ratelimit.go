package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// RateLimiter allows at most limit events per key within a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	swept    time.Time
}

func NewRateLimiter(clock clockwork.Clock, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.swept) >= rl.window {
		rl.sweep(cutoff)
		rl.swept = now
	}

	requests := trim(rl.requests[key], cutoff)
	if len(requests) >= rl.limit {
		if len(requests) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = requests
		}
		return false
	}
	rl.requests[key] = append(requests, now)
	return true
}

// sweep drops keys with no request inside the window. Callers hold rl.mu.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, requests := range rl.requests {
		if len(trim(requests, cutoff)) == 0 {
			delete(rl.requests, key)
		}
	}
}

func trim(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	return requests[i:]
}

// RateLimitMiddleware limits per authenticated user, or per client IP for
// anonymous requests.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
