package routes

import (
	"debatehub/internal/ratelimit"
	"debatehub/middlewares"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers the public account endpoints, each behind its per-IP limiter.
func SetupAuthRoutes(router gin.IRouter, d *Deps) {
	limit := func(class ratelimit.Class) gin.HandlerFunc {
		return middlewares.RateLimit(d.Limiter, class, d.Metrics, d.Log)
	}

	router.POST("/signup", limit(ratelimit.ClassRegistration), d.Auth.SignUp)
	router.POST("/login", limit(ratelimit.ClassAuth), d.Auth.Login)
	router.POST("/forgotPassword", limit(ratelimit.ClassPasswordReset), d.Auth.ForgotPassword)
	router.POST("/resetPassword", limit(ratelimit.ClassAuth), d.Auth.ResetPassword)
}
