package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPThrottle is an in-process token bucket per client address. It guards
// admin login from password guessing and is separate from the persisted
// send-otp quota.
type IPThrottle struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPThrottle(every time.Duration, burst int) *IPThrottle {
	return &IPThrottle{
		limiters: make(map[string]*visitor),
		limit:    rate.Every(every),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (t *IPThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, v := range t.limiters {
		if now.Sub(v.lastSeen) > t.idle {
			delete(t.limiters, key)
		}
	}

	v, ok := t.limiters[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}
