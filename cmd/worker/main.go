package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/cache"
	"github.com/kjstillabower/weather-collector-service/internal/config"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/queue"
	"github.com/kjstillabower/weather-collector-service/internal/service"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

// reconnectDelay is how long the worker waits before redialing a lost broker.
const reconnectDelay = 5 * time.Second

func main() {
	logger, err := observability.NewLogger("worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("sink", zap.String("sink", cfg.WorkerSink), zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.QueueName, cfg.QueuePrefetch, sink, logger)
	logger.Info("worker starting", zap.String("queue", cfg.QueueName), zap.String("sink", cfg.WorkerSink))
	for {
		err := consumer.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		logger.Warn("consumer stopped; reconnecting", zap.Error(err), zap.Duration("delay", reconnectDelay))
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	closeSink(shutdownCtx)
	if err := observability.FlushTelemetry(shutdownCtx, logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openSink returns the configured sink: "store" writes to storage directly,
// "api" forwards to a running service. The returned func releases resources.
func openSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (queue.Sink, func(context.Context), error) {
	if cfg.WorkerSink == "api" {
		return queue.NewAPISink(cfg.APIBaseURL, cfg.WeatherAPITimeout), func(context.Context) {}, nil
	}

	store, err := storage.Open(ctx, storage.Options{
		Backend:         cfg.StorageBackend,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		SQLitePath:      cfg.SQLitePath,
	})
	if err != nil {
		return nil, nil, err
	}
	// The in-process cache would be invisible to the service, so only a shared backend is kept.
	var c cache.Cache
	if cfg.CacheBackend == cache.BackendMemcached {
		if c, err = cache.Open(cache.Options{
			Backend:       cfg.CacheBackend,
			MemcachedAddr: cfg.MemcachedAddrs,
			Timeout:       cfg.MemcachedTimeout,
			MaxIdleConns:  cfg.MemcachedMaxIdleConns,
		}); err != nil {
			logger.Warn("memcached unavailable; worker runs without cache", zap.Error(err))
			c = nil
		}
	}
	closeFn := func(ctx context.Context) {
		if err := store.Close(ctx); err != nil {
			logger.Error("storage close", zap.Error(err))
		}
	}
	return service.NewWeatherService(store, c, cfg.CacheTTL), closeFn, nil
}
