package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	throttleMaxClients = 10000
	throttleIdleTTL    = 10 * time.Minute
)

type ipThrottle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

func (t *ipThrottle) limiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.limiters.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(t.limit, t.burst)
	t.limiters.Add(ip, lim)
	return lim
}

// Throttle caps each client IP at perMinute requests with an equal burst.
func Throttle(perMinute int) gin.HandlerFunc {
	t := &ipThrottle{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		limiters: expirable.NewLRU[string, *rate.Limiter](throttleMaxClients, nil, throttleIdleTTL),
	}
	return func(c *gin.Context) {
		if !t.limiter(c.ClientIP()).Allow() {
			c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, services.Result{
				Success: false,
				Message: "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}
