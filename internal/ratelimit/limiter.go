package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-gin-bus-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}
}

// ClientLimiter 以 client key（通常是 IP）分別限流
type ClientLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	defaults RateLimitConfig
}

func NewClientLimiter(config RateLimitConfig) *ClientLimiter {
	if config.RequestsPerSecond <= 0 || config.BurstSize <= 0 {
		config = DefaultConfig()
	}
	return &ClientLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: config,
	}
}

func (l *ClientLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists = l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(l.defaults.RequestsPerSecond), l.defaults.BurstSize)
	l.limiters[key] = limiter
	return limiter
}

func (l *ClientLimiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Middleware 超過速率時回傳 429，附上 Retry-After
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	log := logger.WithComponent("ratelimit")
	retryAfter := time.Duration(float64(time.Second) / l.defaults.RequestsPerSecond)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if l.Allow(key) {
			c.Next()
			return
		}
		log.Warn("rate limit exceeded", zap.String("client", key), zap.String("path", c.Request.URL.Path))
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many requests",
			"retry": true,
		})
	}
}
