package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/attachment"
	"catalog-service/internal/handler"
	"catalog-service/internal/lock"
	mid "catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/service"
	"catalog-service/internal/storage"
	"catalog-service/pkg/config"
	"catalog-service/pkg/database"
	"catalog-service/pkg/jwtutil"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting catalog-service", appConfig.LogFields()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := newBlobStore(appConfig.Storage)
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}
	log.Info("Blob store initialized", zap.String("driver", appConfig.Storage.Driver))

	locker := newLocker(ctx, appConfig, log)

	catalog := service.New(db,
		attachment.NewManager(storage.WithMetrics(blobs), repository.NewImageRepository(db)),
		locker,
		service.Options{
			Validator: attachment.Validator{
				MaxSizeBytes: appConfig.Images.MaxSizeBytes,
				AllowedTypes: appConfig.Images.AllowedTypes,
			},
			LowStockThreshold: appConfig.LowStock.Threshold,
		})

	if appConfig.LowStock.CheckInterval > 0 {
		go catalog.RunLowStockCheck(logger.WithContext(ctx, log), appConfig.LowStock.CheckInterval)
		log.Info("Periodic low-stock check enabled",
			zap.Duration("interval", appConfig.LowStock.CheckInterval),
			zap.Int("threshold", catalog.LowStockThreshold()))
	}

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	if limiter := mid.RateLimitMiddleware(appConfig.RateLimit); limiter != nil {
		e.Use(limiter)
		log.Info("Rate limiting enabled",
			zap.Float64("rps", appConfig.RateLimit.RequestsPerSecond),
			zap.Int("burst", appConfig.RateLimit.Burst))
	}

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.HealthCheck(catalog))

	// Local blobs are served from the same origin
	if local, ok := blobs.(*storage.LocalStore); ok {
		e.Static(appConfig.Storage.PublicPrefix, local.Root())
	}

	var guard echo.MiddlewareFunc
	if appConfig.Auth.Enabled {
		guard = mid.AuthMiddleware(jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
			SigningKey:      appConfig.JWT.SigningKey,
			ExpirationHours: appConfig.JWT.ExpirationHours,
		}))
		log.Info("JWT guard enabled on mutating routes")
	}
	handler.NewCatalogHandler(catalog, appConfig.Images.MaxSizeBytes).Register(e, guard)

	// Start server
	port := appConfig.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newBlobStore(cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Driver {
	case "cloudinary":
		store, err := storage.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		store, err := storage.NewLocalStore(cfg.RootDir, cfg.PublicPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// newLocker uses Redis when configured so that several replicas serialise
// writes to the same product; otherwise locks are process-local
func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) lock.Locker {
	if cfg.Redis.Addr == "" {
		return lock.NewMemoryLocker()
	}
	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	log.Info("Redis lock backend connected", zap.String("addr", cfg.Redis.Addr))
	return lock.NewRedisLocker(client, cfg.Redis.LockTTL, log)
}
