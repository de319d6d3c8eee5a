// Package storage persists weather observations. Every backend stamps the
// record with an identifier plus createdAt/updatedAt on insert and returns
// reads newest first.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
)

// ErrStorageFailure wraps every backend error returned from a Store.
var ErrStorageFailure = errors.New("storage failure")

var errClosed = errors.New("store closed")

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// Store is the storage collaborator used by the collector and the report side.
type Store interface {
	// Insert persists obs and returns it with the storage metadata filled in.
	Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error)
	// FindRecent returns at most limit records ordered by createdAt descending.
	FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error)
	// LatestByCity returns the newest record for city (case-insensitive).
	LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// clock stamps createdAt/updatedAt. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for record metadata. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

func now() time.Time {
	return clock.Now().UTC()
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Instrument wraps s so every operation reports its latency to StorageOperationDuration.
func Instrument(s Store) Store {
	return instrumented{s}
}

type instrumented struct {
	Store
}

func (i instrumented) Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	start := time.Now()
	rec, err := i.Store.Insert(ctx, obs)
	observe("insert", start, err)
	return rec, err
}

func (i instrumented) FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	start := time.Now()
	recs, err := i.Store.FindRecent(ctx, limit)
	observe("find_recent", start, err)
	return recs, err
}

func (i instrumented) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	start := time.Now()
	rec, ok, err := i.Store.LatestByCity(ctx, city)
	observe("latest_by_city", start, err)
	return rec, ok, err
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StorageOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
