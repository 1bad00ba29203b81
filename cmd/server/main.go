package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayash-Bera/felicity/internal/api"
	"github.com/Ayash-Bera/felicity/internal/config"
	"github.com/Ayash-Bera/felicity/internal/database"
	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/health"
	"github.com/Ayash-Bera/felicity/internal/metrics"
	"github.com/Ayash-Bera/felicity/internal/middleware"
	"github.com/Ayash-Bera/felicity/internal/migration"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/repository"
	"github.com/Ayash-Bera/felicity/internal/services"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	healthInterval  = 30 * time.Second
	janitorInterval = time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default ./config.yaml)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLoggerWithLevel(os.Getenv("LOG_LEVEL"))
	logger := utils.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(utils.ParseLevel(cfg.Log.Level))

	if err := cfg.ValidateFelicity(); err != nil {
		logger.WithError(err).Fatal("Invalid Felicity configuration")
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	client, err := felicity.Configure(cfg.FelicityConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure Felicity client")
	}

	db, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.Log.Level,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database connections")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	if err := migration.NewRunner(db.DB, logger).Run(); err != nil {
		logger.WithError(err).Fatal("Failed to run SQL migrations")
	}

	var (
		queryRecords    models.QueryRecordRepository
		feedbackRecords models.FeedbackRecordRepository
	)
	if db.DB != nil {
		repos := repository.NewRepositoryManager(db.DB)
		queryRecords = repos.QueryRecord
		feedbackRecords = repos.FeedbackRecord
	} else {
		logger.Warn("DATABASE_URL not set, search history is disabled")
	}

	var stages feedback.Store = feedback.NewMemoryStore()
	if db.Redis != nil {
		stages = database.NewStageStore(db.Redis, database.DefaultStageTTL)
	} else {
		logger.Warn("REDIS_URL not set, feedback stages are kept in memory")
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	sessions := services.NewSessionService(client, queryRecords, m, logger)
	feedbackService := services.NewFeedbackService(
		feedback.NewRegistry(client, stages, logger),
		feedbackRecords,
		m,
		logger,
	)

	checker := health.NewChecker(client, logger)
	if db.DB != nil {
		checker.WithOptional("postgres", health.PingerFunc(db.PingDatabase))
	}
	if db.Redis != nil {
		checker.WithOptional("redis", health.PingerFunc(db.PingRedis)).WithCache(db.Redis)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	defer limiter.Stop()

	router := api.NewRouter(api.Dependencies{
		Sessions:    sessions,
		Feedback:    feedbackService,
		History:     queryRecords,
		Health:      checker,
		Gatherer:    prometheus.DefaultGatherer,
		RateLimiter: limiter,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sessions.RunJanitor(ctx, janitorInterval, cfg.Server.SessionMaxIdle)
	go checker.PeriodicHealthCheck(ctx, healthInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutting down")

	// Closing sessions first ends open event streams so Shutdown can drain.
	sessions.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}
	logger.Info("Server stopped")
}
