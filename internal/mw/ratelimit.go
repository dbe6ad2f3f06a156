package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// KeyFunc derives the rate limit bucket of a request.
type KeyFunc func(c *gin.Context) string

// ClientKey buckets requests by client IP.
func ClientKey(c *gin.Context) string { return c.ClientIP() }

// ClientDeskKey buckets requests by client IP and desk, so two desks behind
// the same NAT do not starve each other.
func ClientDeskKey(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return c.ClientIP() + "|" + id
	}
	return c.ClientIP()
}

// KeyedRateLimiter stores a rate limiter per key. Limiters idle for longer
// than the idle window are forgotten.
type KeyedRateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
	idle     time.Duration
}

// NewKeyedRateLimiter creates a new KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int, idle time.Duration) *KeyedRateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		limiters: cache.New(idle, 2*idle),
		r:        r,
		b:        b,
		idle:     idle,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
func (l *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(key, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.limiters.SetDefault(key, limiter)
	return limiter
}

// RateLimiter is a middleware for keyed rate limiting.
func RateLimiter(r rate.Limit, b int, key KeyFunc, log zerolog.Logger) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b, 0)
	if key == nil {
		key = ClientKey
	}
	return func(c *gin.Context) {
		k := key(c)
		if !limiter.GetLimiter(k).Allow() {
			log.Debug().Str("key", k).Str("path", c.FullPath()).Msg("rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
