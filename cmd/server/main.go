// Package main runs the session broker HTTP server with WebSocket notifications and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/auth"
	"github.com/callroom/broker/internal/health"
	"github.com/callroom/broker/internal/middleware"
	"github.com/callroom/broker/internal/providers"
	"github.com/callroom/broker/internal/realtime"
	"github.com/callroom/broker/internal/sessions"
	"github.com/callroom/broker/pkg/database"
	"github.com/callroom/broker/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var store sessions.Store
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory session store; data is lost on restart")
		store = sessions.NewMemoryStore()
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns: int32(cfg.Database.PoolMax),
			MinConns: int32(cfg.Database.PoolMin),
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store = sessions.NewPostgresStore(pool)
	}

	var (
		relay      realtime.Relay
		redisCheck health.Check
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		relay = realtime.NewRedisRelay(rdb, logger)
		redisCheck = pingRedis(rdb)
	}

	registry := providers.Build(cfg.Providers, providers.DefaultFactories(), logger)

	hub := realtime.NewHub(logger, relay)
	defer hub.Close()

	svc := sessions.NewService(store, registry, hub, logger)
	hub.SetParticipantLookup(svc)

	sessionHandler := sessions.NewHandler(svc, logger)
	healthHandler := health.NewHandler(store.Ping, redisCheck, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", healthHandler.Get)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/providers", sessionHandler.ListProviders)
		sessionHandler.Register(api.Group("/sessions", middleware.Auth(auth.NewVerifier(cfg.Auth.JWTSecret))))
	}

	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Int("providers", registry.Len()),
			zap.Bool("relay", relay != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func pingRedis(rdb *goredis.Client) health.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
