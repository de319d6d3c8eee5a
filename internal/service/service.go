// Package service is the read and raw-write side over stored observations:
// recent logs, the temperature insight, raw inserts and the cached
// latest-by-city lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/cache"
	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

const (
	// RecentLogsLimit is how many records GET /weather/logs returns.
	RecentLogsLimit = 200
	// InsightSampleSize is how many of the newest records feed the temperature insight.
	InsightSampleSize = 48
)

// Temperature insight labels.
const (
	LabelIntenseHeat = "intense heat"
	LabelCold        = "cold"
	LabelPleasant    = "pleasant weather"
)

// ErrNotEnoughData is returned by Insights when nothing has been stored yet.
var ErrNotEnoughData = errors.New("not enough data")

// ErrInvalidObservation is returned by CreateRaw for a record without a city.
var ErrInvalidObservation = errors.New("observation requires a city")

// Insights summarizes the average temperature of the newest records.
type Insights struct {
	AverageTemperature float64 `json:"averageTemperature"`
	Label              string  `json:"label"`
	Summary            string  `json:"summary"`
	SampleSize         int     `json:"sampleSize"`
}

// WeatherService reads from the store and keeps the latest-by-city cache warm.
// A nil cache disables caching.
type WeatherService struct {
	store storage.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewWeatherService creates a WeatherService. ttl bounds how long a cached
// latest reading is served.
func NewWeatherService(store storage.Store, c cache.Cache, ttl time.Duration) *WeatherService {
	return &WeatherService{store: store, cache: c, ttl: ttl}
}

// CreateRaw stores obs exactly as given, without classification.
func (s *WeatherService) CreateRaw(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	if strings.TrimSpace(obs.City) == "" {
		return models.StoredObservation{}, ErrInvalidObservation
	}
	rec, err := s.store.Insert(ctx, obs)
	if err != nil {
		return models.StoredObservation{}, err
	}
	s.Remember(ctx, rec)
	return rec, nil
}

// RecentLogs returns the newest limit records.
func (s *WeatherService) RecentLogs(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	return s.store.FindRecent(ctx, limit)
}

// Insights averages the temperature of the newest InsightSampleSize records.
func (s *WeatherService) Insights(ctx context.Context) (Insights, error) {
	recs, err := s.store.FindRecent(ctx, InsightSampleSize)
	if err != nil {
		return Insights{}, err
	}
	if len(recs) == 0 {
		return Insights{}, ErrNotEnoughData
	}
	var sum float64
	for _, r := range recs {
		sum += r.Temperature
	}
	avg := math.Round(sum/float64(len(recs))*10) / 10
	label := TemperatureLabel(avg)
	return Insights{
		AverageTemperature: avg,
		Label:              label,
		Summary:            fmt.Sprintf("Over the last %d records, the average temperature was %.1f°C, indicating %s.", len(recs), avg, label),
		SampleSize:         len(recs),
	}, nil
}

// TemperatureLabel buckets an average temperature: >= 30 intense heat, <= 18 cold.
func TemperatureLabel(avg float64) string {
	switch {
	case avg >= 30:
		return LabelIntenseHeat
	case avg <= 18:
		return LabelCold
	default:
		return LabelPleasant
	}
}

// LatestByCity returns the newest record for city using cache-aside. Cache
// errors are counted and fall through to storage.
func (s *WeatherService) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	logger := observability.LoggerFrom(ctx, nil)

	if s.cache != nil {
		getStart := time.Now()
		cached, ok, err := s.cache.Get(ctx, city)
		getDuration := time.Since(getStart).Seconds()
		switch {
		case err != nil:
			observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
			observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
			logger.Warn("cache get failed", zap.String("city", city), zap.Error(err))
		case ok:
			observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
			observability.CacheHitsTotal.WithLabelValues("latest").Inc()
			logger.Debug("cache hit", zap.String("city", city))
			return cached, true, nil
		default:
			observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		}
	}

	rec, ok, err := s.store.LatestByCity(ctx, city)
	if err != nil {
		return models.StoredObservation{}, false, fmt.Errorf("latest for %s: %w", city, err)
	}
	if ok {
		s.Remember(ctx, rec)
	}
	return rec, ok, nil
}

// Remember refreshes the cached latest reading for rec's city. Failures are
// logged and counted only.
func (s *WeatherService) Remember(ctx context.Context, rec models.StoredObservation) {
	if s.cache == nil {
		return
	}
	setStart := time.Now()
	if err := s.cache.Set(ctx, rec.City, rec, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		observability.LoggerFrom(ctx, nil).Warn("cache set failed", zap.String("city", rec.City), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
