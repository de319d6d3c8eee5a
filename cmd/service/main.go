package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-collector-service/internal/cache"
	"github.com/kjstillabower/weather-collector-service/internal/client"
	"github.com/kjstillabower/weather-collector-service/internal/collector"
	"github.com/kjstillabower/weather-collector-service/internal/config"
	httphandler "github.com/kjstillabower/weather-collector-service/internal/http"
	"github.com/kjstillabower/weather-collector-service/internal/lifecycle"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/service"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	inFlightCheckInterval = 50 * time.Millisecond
	startupTimeout        = 15 * time.Second
)

func main() {
	logger, err := observability.NewLogger("service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; collections will fail with missing credential")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), startupTimeout)
	store, err := storage.Open(startCtx, storage.Options{
		Backend:         cfg.StorageBackend,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		SQLitePath:      cfg.SQLitePath,
	})
	startCancel()
	if err != nil {
		logger.Fatal("storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	logger.Info("storage backend: " + cfg.StorageBackend)

	cacheSvc, err := cache.Open(cache.Options{
		Backend:       cfg.CacheBackend,
		MemcachedAddr: cfg.MemcachedAddrs,
		Timeout:       cfg.MemcachedTimeout,
		MaxIdleConns:  cfg.MemcachedMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("cache", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}
	logger.Info("cache backend: "+cfg.CacheBackend, zap.Duration("ttl", cfg.CacheTTL))

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	col := collector.New(weatherClient, store, collector.Location{
		City:      cfg.DefaultCity,
		Latitude:  cfg.DefaultLatitude,
		Longitude: cfg.DefaultLongitude,
	}, logger)
	weatherService := service.NewWeatherService(store, cacheSvc, cfg.CacheTTL)

	healthConfig := &httphandler.HealthConfig{
		Window:           cfg.HealthWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		StorePing:        store.Ping,
		Version:          version,
	}
	if p, ok := cacheSvc.(cache.Pinger); ok {
		healthConfig.CachePing = p.Ping
	}
	handler := httphandler.NewHandler(col, weatherService, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	observability.RegisterTrafficGauges(cfg.HealthWindow)
	observability.SetTrackedCities(append(cfg.TrackedCities, cfg.DefaultCity))

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(handler, logger, limiter, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.MarkServing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.BeginDrain()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if closer, ok := cacheSvc.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newRouter registers every route. /weather routes are rate limited and carry
// the request deadline; /health and /metrics are not.
func newRouter(h *httphandler.Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(httphandler.MethodNotAllowed)
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	// A method mismatch inside a subrouter surfaces as 404 unless the subrouter has its own handler.
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.MethodNotAllowedHandler = http.HandlerFunc(httphandler.MethodNotAllowed)
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.Use(httphandler.TimeoutMiddleware(requestTimeout))
	weatherRouter.HandleFunc("/logs", h.PostLog).Methods("POST")
	weatherRouter.HandleFunc("/logs", h.GetLogs).Methods("GET")
	weatherRouter.HandleFunc("/collect", h.PostCollect).Methods("POST")
	weatherRouter.HandleFunc("/collect-city", h.PostCollectCity).Methods("POST")
	weatherRouter.HandleFunc("/insights", h.GetInsights).Methods("GET")
	weatherRouter.HandleFunc("/rain", h.GetRain).Methods("GET")
	weatherRouter.HandleFunc("/cities/{city}/latest", h.GetLatestByCity).Methods("GET")
	return router
}
