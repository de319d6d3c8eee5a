// Package collector runs one ingestion cycle: fetch current conditions for a
// location, assemble an observation, optionally classify it and store it.
package collector

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/classifier"
	"github.com/kjstillabower/weather-collector-service/internal/client"
	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
	"github.com/kjstillabower/weather-collector-service/internal/traffic"
)

// Metric path labels.
const (
	pathCity    = "city"
	pathDefault = "default"
)

// Location is a named coordinate pair.
type Location struct {
	City      string
	Latitude  float64
	Longitude float64
}

// PrimaryLocation is used by CollectDefault when no default location is configured.
var PrimaryLocation = Location{City: "São Paulo", Latitude: -23.5505, Longitude: -46.6333}

// Collector is safe for concurrent use; each call is an independent fetch and insert.
type Collector struct {
	client          client.WeatherClient
	store           storage.Store
	defaultLocation Location
	logger          *zap.Logger
	clock           clockwork.Clock
	classify        func(code *int, description string) models.RainInfo
}

// New returns a Collector. A zero def falls back to PrimaryLocation.
func New(c client.WeatherClient, s storage.Store, def Location, logger *zap.Logger) *Collector {
	if def.City == "" {
		def = PrimaryLocation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client:          c,
		store:           s,
		defaultLocation: def,
		logger:          logger,
		clock:           clockwork.NewRealClock(),
		classify:        classifier.Classify,
	}
}

// DefaultLocation returns the location CollectDefault collects for.
func (c *Collector) DefaultLocation() Location {
	return c.defaultLocation
}

// CollectForCity fetches, classifies and stores one observation for city.
// The stored record always carries rainProbability.
func (c *Collector) CollectForCity(ctx context.Context, city string, latitude, longitude float64) (models.StoredObservation, error) {
	return c.collect(ctx, pathCity, Location{City: city, Latitude: latitude, Longitude: longitude}, true)
}

// CollectDefault fetches and stores one observation for the default location.
// It does not classify: rainProbability and weatherCode stay absent.
func (c *Collector) CollectDefault(ctx context.Context) (models.StoredObservation, error) {
	return c.collect(ctx, pathDefault, c.defaultLocation, false)
}

func (c *Collector) collect(ctx context.Context, path string, loc Location, classify bool) (models.StoredObservation, error) {
	logger := observability.LoggerFrom(ctx, c.logger).With(
		zap.String("city", loc.City),
		zap.String("path", path),
	)
	start := time.Now()

	cur, err := c.client.GetCurrentConditions(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		return models.StoredObservation{}, c.fail(logger, path, loc.City, err)
	}

	obs, primary := c.assemble(loc.City, cur)
	if classify {
		info := c.classify(primary.Code, primary.Description)
		p := info.Probability
		obs.RainProbability = &p
		obs.WeatherCode = primary.Code
		observability.RainProbability.Observe(float64(p))
	}

	rec, err := c.store.Insert(ctx, obs)
	if err != nil {
		return models.StoredObservation{}, c.fail(logger, path, loc.City, err)
	}

	traffic.Record(traffic.Success)
	observability.RecordCollection(path, "success", loc.City)
	fields := []zap.Field{
		zap.String("id", rec.ID),
		zap.Float64("temperature", rec.Temperature),
		zap.Duration("duration", time.Since(start)),
	}
	if rec.RainProbability != nil {
		fields = append(fields, zap.Int("rainProbability", *rec.RainProbability))
	}
	logger.Info("weather collected", fields...)
	return rec, nil
}

func (c *Collector) fail(logger *zap.Logger, path, city string, err error) error {
	cerr := newCollectionError(city, err)
	traffic.Record(traffic.Failure)
	observability.RecordCollection(path, string(cerr.Kind), city)
	logger.Warn("weather collection failed",
		zap.String("kind", string(cerr.Kind)),
		zap.Error(err),
	)
	return cerr
}

// assemble applies the per-field defaults and returns the primary condition
// separately so the caller decides whether to classify it.
func (c *Collector) assemble(city string, cur models.CurrentConditions) (models.WeatherObservation, models.Condition) {
	obs := models.WeatherObservation{
		City:        city,
		ObservedAt:  cur.ObservedAt,
		Humidity:    cur.Humidity,
		Pressure:    cur.Pressure,
		Description: models.DescriptionUnavailable,
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = c.clock.Now().UTC()
	}
	if cur.Temperature != nil {
		obs.Temperature = *cur.Temperature
	}
	if cur.WindSpeed != nil {
		obs.WindSpeed = *cur.WindSpeed
	}
	if cur.WindDirection != nil {
		obs.WindDirection = *cur.WindDirection
	}
	primary, _ := cur.Primary()
	if primary.Description != "" {
		obs.Description = primary.Description
	}
	return obs, primary
}
