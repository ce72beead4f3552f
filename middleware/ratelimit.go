package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	r rate.Limit
	b int

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter builds a limiter allowing r requests per second with burst
// b per IP. Idle entries are swept every few minutes until Stop.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{r: r, b: b, limiters: make(map[string]*ipLimiter), stop: make(chan struct{})}
	go rl.sweep(5*time.Minute, 10*time.Minute)
	return rl
}

func (rl *RateLimiter) sweep(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.prune(time.Now().Add(-idle))
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) prune(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	rl.mu.Unlock()
	return l.limiter.Allow()
}

// Clients is the number of IPs currently tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) Stop() { rl.once.Do(func() { close(rl.stop) }) }

// Handler rejects over-limit requests with 429.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RateLimit is NewRateLimiter(r, b).Handler() for callers that never stop it.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return NewRateLimiter(r, b).Handler()
}
