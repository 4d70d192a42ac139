package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"proxygateway/logger"
)

// Cors allows any origin to read the read-only stats endpoints; there
// is nothing here a browser-based dashboard shouldn't be able to see.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestID stamps every request with a UUID, echoed back in the
// response header and available to handlers via the context key.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs method, path, status, and latency for every
// request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields("http request", logger.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// limiterPerIP holds one rate.Limiter per client IP, created lazily.
type limiterPerIP struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newLimiterPerIP(r rate.Limit, burst int) *limiterPerIP {
	return &limiterPerIP{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (l *limiterPerIP) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

// RateLimit rejects requests past ratePerSecond per client IP with 429.
func RateLimit(ratePerSecond float64, burst int) gin.HandlerFunc {
	limiters := newLimiterPerIP(rate.Limit(ratePerSecond), burst)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(429)
			return
		}
		c.Next()
	}
}
