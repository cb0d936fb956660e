package routes

import (
	"context"
	"net/http"

	"debatehub/config"
	"debatehub/controllers"
	"debatehub/db"
	"debatehub/internal/ratelimit"
	"debatehub/logger"
	"debatehub/metrics"
	"debatehub/middlewares"
	"debatehub/utils"
	"debatehub/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps is everything the HTTP layer is built from. It is assembled once in main.
type Deps struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Store    db.Store
	Tokens   *utils.JWTManager
	Limiter  *ratelimit.Limiter
	Authz    *middlewares.Authorizer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Hub      *websocket.Hub
	Ping     func(ctx context.Context) error

	Auth          *controllers.AuthController
	Debates       *controllers.DebateController
	Definitions   *controllers.DefinitionController
	Votes         *controllers.VoteController
	Cron          *controllers.CronController
	Notifications *controllers.NotificationController
}

func SetupRouter(d *Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(d.Log), d.Metrics.Middleware())

	if len(d.Config.Server.TrustedProxies) > 0 {
		router.SetTrustedProxies(d.Config.Server.TrustedProxies)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middlewares.HeaderRateLimitLimit, middlewares.HeaderRateLimitRemaining, middlewares.HeaderRateLimitReset, middlewares.HeaderRetryAfter},
		AllowCredentials: true,
	}))
	router.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.GET("/healthz", controllers.Healthz(d.Ping))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	SetupAuthRoutes(router, d)

	router.GET("/cron/check-timeouts", middlewares.CronAuth(d.Config.Cron.Secret), d.Cron.CheckTimeouts)
	router.GET("/debates/:id/live", websocket.DebateLiveHandler(d.Hub, d.Store, websocket.NewUpgrader(d.Config.Server.AllowedOrigins)))

	auth := router.Group("/")
	auth.Use(middlewares.AuthMiddleware(d.Tokens), middlewares.RateLimit(d.Limiter, ratelimit.ClassAPI, d.Metrics, d.Log))
	SetupDebateRoutes(auth, d)

	return router
}
