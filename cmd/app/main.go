package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"referral_platform/internal/api"
	"referral_platform/internal/jobs"
	"referral_platform/internal/locker"
	"referral_platform/internal/middleware"
	"referral_platform/internal/notify"
	"referral_platform/internal/repository"
	"referral_platform/internal/service"
	"referral_platform/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	calc, err := service.NewCalculator(service.Rates{
		Level1: decimal.NewFromFloat(cfg.Commission.Level1),
		Level2: decimal.NewFromFloat(cfg.Commission.Level2),
		Level3: decimal.NewFromFloat(cfg.Commission.Level3),
	})
	if err != nil {
		zapLogger.Fatal("Invalid commission rates", zap.Error(err))
	}

	var settlementLocker service.Locker = locker.NewKeyedMutex()
	if cfg.Redis.Enabled {
		client, err := locker.NewRedisClient(cfg.Redis.RedisConfig)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		settlementLocker = locker.NewRedisLocker(client, cfg.Redis.RedisConfig)
		zapLogger.Info("Using redis settlement lock", zap.String("addr", cfg.Redis.Addr))
	}

	hub := notify.NewHub()

	svc := service.NewService(
		service.NewUserService(repo),
		service.NewPaymentService(repo),
		service.NewReferralService(repo),
		service.NewSettlementService(repo, calc, settlementLocker, hub, zapLogger.Named("settlement")),
	)

	if cfg.Reconciler.Enabled {
		reconciler := jobs.NewReconciler(repo, svc.SettlementService, cfg.Reconciler, zapLogger.Named("reconciler"))
		if err := reconciler.Start(); err != nil {
			zapLogger.Fatal("Failed to start reconciler", zap.Error(err))
		}
		defer reconciler.Stop()
	}

	ingestAuth := middleware.NewIngestAuthorization(cfg.Ingest.Token)
	if cfg.Ingest.Token == "" {
		zapLogger.Warn("Ingest token is not set, webhook routes are unauthenticated")
	}

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
	}
	config.AllowHeaders = []string{"*"}
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	defer rateLimiter.Stop()

	a := router.Group("/api/v1")
	a.Use(rateLimiter.Limit())
	api.NewUserRoutes(a, svc.UserService, svc.ReferralService, svc.PaymentService, hub)
	api.NewPaymentRoutes(a, svc.PaymentService)

	internal := router.Group("/api/v1")
	api.NewWebhookRoutes(internal, svc.PaymentService, svc.SettlementService, ingestAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
