package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Hasinur3813/task-manager-server/api"
	"github.com/Hasinur3813/task-manager-server/config"
	"github.com/Hasinur3813/task-manager-server/storage"
)

const startupTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.StandardLogger()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	store, err := storage.New(startCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		cancel()
		log.Fatalf("storage: %v", err)
	}
	if cfg.ExplicitConnect {
		if err := store.Ping(startCtx); err != nil {
			cancel()
			log.Fatalf("storage ping: %v", err)
		}
		logger.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")
	}

	var (
		apiStore api.Storage = store
		guard    api.LoginGuard
		rc       *redis.Client
	)
	if cfg.RedisConnectionString != "" {
		rc = redis.NewClient(storage.RedisOptions(cfg.RedisConnectionString))
		if err := rc.Ping(startCtx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable at startup; cache reads will fall back to MongoDB")
		}
		apiStore = storage.NewCache(store, rc, cfg.TasksCacheTTL)
		guard = api.NewRedisLoginGuard(rc, cfg.LoginLockTTL)
	}
	cancel()

	e := echo.New()
	e.HideBanner = true
	api.Setup(e, api.ServerOptions{AllowOrigins: cfg.AllowOrigins, Logger: logger})
	api.Register(e, apiStore, guard, logger)

	go func() {
		logger.WithField("port", cfg.Port).Info("task manager server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("mongodb disconnect")
	}
	if rc != nil {
		if err := rc.Close(); err != nil {
			logger.WithError(err).Warn("redis close")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer provider shutdown")
	}
}
