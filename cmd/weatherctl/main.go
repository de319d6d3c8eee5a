package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/client"
	"github.com/kjstillabower/weather-collector-service/internal/collector"
	"github.com/kjstillabower/weather-collector-service/internal/config"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "weatherctl",
	Short: "weatherctl - one-shot weather collection and inspection",
	Long: `weatherctl runs a single collection cycle or reads stored observations
using the same configuration, provider client and storage backend as the service.`,
	SilenceUsage: true,
}

// deps are the collaborators commands run against.
type deps struct {
	collector *collector.Collector
	store     storage.Store
	logger    *zap.Logger
}

// openDeps builds deps from config. Replaced in tests.
var openDeps = func(ctx context.Context) (*deps, error) {
	logger, err := observability.NewLogger("weatherctl")
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, storage.Options{
		Backend:         cfg.StorageBackend,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		SQLitePath:      cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	wc, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	col := collector.New(wc, store, collector.Location{
		City:      cfg.DefaultCity,
		Latitude:  cfg.DefaultLatitude,
		Longitude: cfg.DefaultLongitude,
	}, logger)
	return &deps{collector: col, store: store, logger: logger}, nil
}

// withDeps opens deps for one command run and releases them afterwards.
func withDeps(cmd *cobra.Command, run func(d *deps) error) error {
	d, err := openDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = d.store.Close(context.Background())
		_ = observability.FlushTelemetry(context.Background(), d.logger)
	}()
	return run(d)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
