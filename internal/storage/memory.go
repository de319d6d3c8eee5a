package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// MemoryStore keeps records in process. Used for dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.StoredObservation
	closed  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredObservation{}, wrap("insert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.StoredObservation{}, wrap("insert", errClosed)
	}
	t := now()
	rec := models.StoredObservation{
		ID:                 uuid.NewString(),
		WeatherObservation: obs,
		CreatedAt:          t,
		UpdatedAt:          t,
	}
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *MemoryStore) FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("find_recent", err)
	}
	s.mu.RLock()
	out := make([]models.StoredObservation, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		out = append(out, s.records[i])
	}
	s.mu.RUnlock()

	// Records are walked newest-inserted first so the stable sort keeps that order on createdAt ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredObservation{}, false, wrap("latest_by_city", err)
	}
	want := normalizeCity(city)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  models.StoredObservation
		found bool
	)
	for _, rec := range s.records {
		if normalizeCity(rec.City) != want {
			continue
		}
		if !found || !rec.CreatedAt.Before(best.CreatedAt) {
			best, found = rec, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return wrap("ping", errClosed)
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
