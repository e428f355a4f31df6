package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/neuropharmdb-server/internal/domain"
)

// RateLimiter hands out one token bucket per caller. Callers are keyed by
// session user when authenticated and by client IP otherwise.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](10000, nil, 10*time.Minute),
	}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	if l, ok := r.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters.Add(key, l)
	return l
}

// Middleware rejects callers over their budget with 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.limit <= 0 {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if sess, ok := SessionFrom(c); ok {
			key = "user:" + sess.UserID
		}

		if !r.limiterFor(key).Allow() {
			Abort(c, http.StatusTooManyRequests, domain.ErrCodeRateLimit, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
