package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz reports 503 while ping fails. A nil ping always answers ok.
func Healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
