package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/api"
	"github.com/quillhq/quillfeed/internal/cache"
	"github.com/quillhq/quillfeed/internal/db"
	"github.com/quillhq/quillfeed/internal/events"
	"github.com/quillhq/quillfeed/internal/feed"
	"github.com/quillhq/quillfeed/internal/payment"
	"github.com/quillhq/quillfeed/internal/razorpay"
	"github.com/quillhq/quillfeed/internal/service"
	"github.com/quillhq/quillfeed/internal/tags"
	"github.com/quillhq/quillfeed/pkg/config"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting quillfeed API server", zap.String("version", telemetry.Version))

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	publisher := events.New(cfg.Events)
	defer publisher.Close()

	postService, paymentService := buildServices(cfg, database, redisCache, publisher)

	checks := map[string]api.HealthCheck{"database": database.Health}
	if redisCache != nil {
		checks["redis"] = redisCache.Health
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.NewRouter(cfg.Telemetry.ServiceName, postService, paymentService, checks).SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server starting", zap.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildServices wires repositories, caches and the payment provider into
// the post and payment services.
func buildServices(cfg *config.Config, database *db.DB, redisCache *cache.Cache, publisher events.Publisher) (*service.PostService, *payment.Service) {
	logger := logging.GetLogger()
	repo := db.NewRepository(database.DB)

	posts := db.NewPostRepository(repo)
	tagRepo := db.NewTagRepository(repo)
	accounts := db.NewAccountRepository(repo)

	// A nil *cache.Cache must not reach the interfaces as a typed nil
	var pageCache feed.Cache
	var serviceCache service.Cache
	if redisCache != nil {
		pageCache = redisCache
		serviceCache = redisCache
	}

	var provider payment.Provider
	if cfg.Payment.KeyID != "" {
		client, err := razorpay.New(&cfg.Payment)
		if err != nil {
			logger.Fatal("Failed to create payment provider client", zap.Error(err))
		}
		provider = client
	} else {
		logger.Warn("Payment provider keys not set; order creation is disabled")
	}

	payments := payment.NewService(posts, db.NewPaymentRepository(repo), provider, publisher, cfg.Payment)

	planner := feed.NewPlanner(db.NewFeedRepository(repo), pageCache, feed.Options{
		DefaultPageSize: cfg.Feed.DefaultPageSize,
		MaxPageSize:     cfg.Feed.MaxPageSize,
		RelatedLimit:    cfg.Feed.RelatedLimit,
		FallbackLimit:   cfg.Feed.FallbackLimit,
		CacheTTL:        cfg.Feed.PageCacheTTL,
	})

	postService := service.NewPostService(service.Deps{
		Posts:     posts,
		Writer:    db.NewPostWriter(database),
		Views:     db.NewViewRepository(repo),
		Tags:      tags.NewResolver(tagRepo),
		TagUsage:  tagRepo,
		Planner:   planner,
		Payments:  payments,
		Follows:   db.NewFollowRepository(repo),
		Roles:     accounts,
		Reactions: db.NewReactionRepository(repo),
		Authors:   accounts,
		Cache:     serviceCache,
		Events:    publisher,
		TagTTL:    cfg.Feed.TagCacheTTL,
	})

	return postService, payments
}
