package http

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/internal/ratelimit"
)

// RequestLogger logs every request and records its latency
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		m.Request(c.Request.Method, route, status, elapsed)
		log.Debug("HTTP request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", status, "elapsed", elapsed, "client", c.ClientIP())
	}
}

// Timeout bounds the request context by d
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimit rejects clients that exceed limiter with 429. A nil limiter
// lets every request through.
func RateLimit(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP(), time.Now()) {
			writeError(c, core.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// CORS allows browser wallets served from origin to call the API
func CORS(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
