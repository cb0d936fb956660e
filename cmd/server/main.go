package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"debatehub/config"
	"debatehub/controllers"
	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/internal/ratelimit"
	"debatehub/logger"
	"debatehub/metrics"
	"debatehub/middlewares"
	"debatehub/routes"
	"debatehub/services"
	"debatehub/utils"
	"debatehub/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./config/config.prod.yml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger("debatehub", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	var (
		store db.Store
		ping  func(context.Context) error
	)
	switch cfg.Database.Driver {
	case "mongo":
		client, database, err := db.ConnectMongoDB(ctx, cfg.Database.URI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		mongoStore := db.NewMongoStore(client, database)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
		store, ping = mongoStore, mongoStore.Ping
		log.Info("Connected to MongoDB")
	default:
		store = db.NewMemoryStore()
		log.Warn("using the in-memory store; data is lost on restart")
	}

	if cfg.Database.SeedTestUsers {
		created, err := utils.PopulateTestUsers(ctx, store)
		if err != nil {
			return err
		}
		log.WithField("created", created).Info("test users populated")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		var err error
		if rdb, err = debate.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("Connected to Redis")
	}

	var bucketStore ratelimit.BucketStore = ratelimit.NewMemoryStore()
	if cfg.RateLimit.Backend == "redis" {
		bucketStore = ratelimit.NewRedisStore(rdb)
	}
	limiter := ratelimit.New(bucketStore)

	var authz *middlewares.Authorizer
	var err error
	if cfg.RBAC.PolicySource == "mongo" {
		authz, err = middlewares.NewMongoAuthorizer(cfg.Database.URI, log)
	} else {
		authz, err = middlewares.NewDefaultAuthorizer(log)
	}
	if err != nil {
		return err
	}

	tokens, err := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	if err != nil {
		return err
	}

	var mailer services.Mailer = utils.LogMailer{Log: log.WithField("component", "mailer")}
	if cfg.SMTP.Host != "" {
		mailer = utils.NewSMTPMailer(cfg.SMTP)
	}

	hub := websocket.NewHub(ctx, log)
	defer hub.Close()
	var events services.EventPublisher = hub
	if rdb != nil {
		events = debate.NewStreamPublisher(rdb)
		hub.FollowStreams(rdb)
	}

	notifier := services.StoreNotifier{Store: store}
	lifecycle := services.NewLifecycleService(store, notifier, events, m, log)
	debates := services.NewDebateService(store, authz, notifier, events, m, log)
	definitions := services.NewDefinitionService(store, authz, events, log)
	votes := services.NewVoteService(store, notifier, events, m, log)
	auth := services.NewAuthService(store, tokens, mailer, limiter, m, cfg.Server.BaseURL, log)

	router := routes.SetupRouter(&routes.Deps{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Tokens:   tokens,
		Limiter:  limiter,
		Authz:    authz,
		Metrics:  m,
		Gatherer: registry,
		Hub:      hub,
		Ping:     ping,

		Auth:          controllers.NewAuthController(auth, log),
		Debates:       controllers.NewDebateController(debates, lifecycle, log),
		Definitions:   controllers.NewDefinitionController(definitions, log),
		Votes:         controllers.NewVoteController(votes, log),
		Cron:          controllers.NewCronController(lifecycle, log),
		Notifications: controllers.NewNotificationController(notifier, log),
	})

	if cfg.Cron.SweepInterval > 0 {
		go runSweeper(ctx, lifecycle, cfg.Cron.SweepInterval, log)
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on port %d", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSweeper calls the timeout sweep on a fixed interval until ctx ends.
func runSweeper(ctx context.Context, lifecycle *services.LifecycleService, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := lifecycle.SweepTimeouts(ctx); err != nil {
				log.WithError(err).Error("scheduled timeout sweep failed")
			}
		}
	}
}
