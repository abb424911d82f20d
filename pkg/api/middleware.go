package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// requestLogger logs every request at debug level, and server errors at
// warn.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.Warn("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debug("%s %s -> %d (%s) owner=%s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), ownerID(c))
	}
}

// recovery turns panics into an enveloped 500.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		respondError(c, http.StatusInternalServerError, "internal server error")
	})
}

// requestMetrics records each request against its route template, so
// /api/files/:id is one series regardless of the id.
func requestMetrics(m metrics.APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.RecordRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// uploadRateLimit throttles uploads per owner. Must run after jwtAuth.
func uploadRateLimit(limiter *ratelimiter.KeyedLimiter, m metrics.APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(ownerID(c)) {
			m.RecordRateLimited()
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "too many uploads, slow down")
			return
		}
		c.Next()
	}
}

// limitBody caps the request body at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
