package middlewares

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"debatehub/internal/ratelimit"
	"debatehub/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RetryAfterSeconds rounds a wait up to whole seconds, at least one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// WriteRateLimited answers 429 for a blocked caller.
func WriteRateLimited(c *gin.Context, e *ratelimit.RateLimitExceededError) {
	retryAfter := RetryAfterSeconds(e.RetryAfter)
	c.Header(HeaderRateLimitLimit, strconv.Itoa(e.Limit))
	c.Header(HeaderRateLimitRemaining, "0")
	c.Header(HeaderRateLimitReset, e.ResetAt.UTC().Format(time.RFC3339))
	c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      "Too many requests, please try again later",
		"retryAfter": retryAfter,
	})
}

// RateLimit consumes one point of class for the client IP before the handler runs.
// Limiter store failures let the request through.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, m *metrics.Metrics, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Consume(c.Request.Context(), c.ClientIP(), class)
		if err != nil {
			var limited *ratelimit.RateLimitExceededError
			if errors.As(err, &limited) {
				m.RateLimited(string(class))
				log.WithFields(logrus.Fields{
					"class": class,
					"ip":    c.ClientIP(),
				}).Info("rate limit exceeded")
				WriteRateLimited(c, limited)
				return
			}
			log.WithError(err).WithField("class", class).Error("rate limiter unavailable")
			c.Next()
			return
		}

		c.Header(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		c.Header(HeaderRateLimitReset, res.ResetAt.UTC().Format(time.RFC3339))
		c.Next()
	}
}
