package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"user-sync/internal/auth0"
	"user-sync/internal/config"
	"user-sync/internal/db"
	apihttp "user-sync/internal/http"
	"user-sync/internal/repository"
	"user-sync/internal/service"
	"user-sync/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	shutdownTracing, err := telemetry.Setup(ctx, "user-sync", cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing setup failed", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	tokenCache := auth0.NewMemoryTokenCache()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory token cache", zap.Error(err))
		} else {
			tokenCache = auth0.NewRedisTokenCache(redisClient)
		}
		cancel()
	}

	gateway := auth0.NewClient(auth0.Options{
		IssuerURL:    cfg.Auth0IssuerURL,
		Audience:     cfg.Auth0MgmtAudience,
		ClientID:     cfg.Auth0ClientID,
		ClientSecret: cfg.Auth0ClientSecret,
		Timeout:      cfg.Auth0HTTPTimeout,
	}, tokenCache, logger)
	if cfg.Auth0ClientID == "" || cfg.Auth0ClientSecret == "" {
		logger.Warn("auth0 management credentials not configured")
	}

	keys := auth0.NewKeySet(cfg.Auth0IssuerURL, cfg.Auth0HTTPTimeout, logger)
	jwtSvc := service.NewJWTService(keys, cfg.Auth0IssuerURL, cfg.Auth0Audience)

	userRepo := repository.NewPgUserRepository(pool)
	userSvc := service.NewUserService(logger, userRepo, gateway, cfg.Auth0NameSyncPolicy)

	router := apihttp.NewRouter(logger, apihttp.RouterDeps{
		JWT:         jwtSvc,
		Users:       userSvc,
		IPWhitelist: cfg.Auth0IPWhitelist,
		UserH:       apihttp.NewUserHandler(logger, userSvc),
		Auth0H:      apihttp.NewAuth0Handler(logger, userSvc),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
