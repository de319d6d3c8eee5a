package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-collector-service/internal/cache"
	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

type mockCache struct {
	data   map[string]models.StoredObservation
	getErr error
	setErr error
	gets   int
	sets   int
}

func (m *mockCache) Get(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	m.gets++
	if m.getErr != nil {
		return models.StoredObservation{}, false, m.getErr
	}
	val, ok := m.data[cache.Key(city)]
	return val, ok, nil
}

func (m *mockCache) Set(ctx context.Context, city string, value models.StoredObservation, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string]models.StoredObservation)
	}
	m.data[cache.Key(city)] = value
	return nil
}

// countingStore records how often LatestByCity reaches storage.
type countingStore struct {
	*storage.MemoryStore
	latestCalls int
}

func (s *countingStore) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	s.latestCalls++
	return s.MemoryStore.LatestByCity(ctx, city)
}

type brokenStore struct {
	storage.Store
}

func (brokenStore) FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	return nil, fmt.Errorf("%w: find_recent: connection reset", storage.ErrStorageFailure)
}

func seed(t *testing.T, s storage.Store, temps ...float64) {
	t.Helper()
	for i, temp := range temps {
		_, err := s.Insert(context.Background(), models.WeatherObservation{City: fmt.Sprintf("city-%d", i), Temperature: temp})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
}

func TestTemperatureLabel(t *testing.T) {
	tests := []struct {
		avg  float64
		want string
	}{
		{35, LabelIntenseHeat},
		{30, LabelIntenseHeat},
		{29.9, LabelPleasant},
		{18.1, LabelPleasant},
		{18, LabelCold},
		{-2, LabelCold},
	}
	for _, tt := range tests {
		if got := TemperatureLabel(tt.avg); got != tt.want {
			t.Errorf("TemperatureLabel(%v) = %q, want %q", tt.avg, got, tt.want)
		}
	}
}

func TestWeatherService_Insights(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 20, 25, 27.5)
	svc := NewWeatherService(store, nil, time.Minute)

	got, err := svc.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights() error = %v", err)
	}
	if got.AverageTemperature != 24.2 {
		t.Errorf("AverageTemperature = %v, want 24.2", got.AverageTemperature)
	}
	if got.Label != LabelPleasant || got.SampleSize != 3 {
		t.Errorf("Insights() = %+v", got)
	}
	want := "Over the last 3 records, the average temperature was 24.2°C, indicating pleasant weather."
	if got.Summary != want {
		t.Errorf("Summary = %q, want %q", got.Summary, want)
	}
}

// TestWeatherService_Insights_UsesNewest48 verifies that only the newest
// sample-size records contribute to the average.
func TestWeatherService_Insights_UsesNewest48(t *testing.T) {
	store := storage.NewMemoryStore()
	temps := make([]float64, 0, 60)
	for i := 0; i < 12; i++ {
		temps = append(temps, 0)
	}
	for i := 0; i < InsightSampleSize; i++ {
		temps = append(temps, 32)
	}
	seed(t, store, temps...)

	got, err := NewWeatherService(store, nil, time.Minute).Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights() error = %v", err)
	}
	if got.SampleSize != InsightSampleSize || got.AverageTemperature != 32 || got.Label != LabelIntenseHeat {
		t.Errorf("Insights() = %+v, want 48 samples at 32 intense heat", got)
	}
}

func TestWeatherService_Insights_NoData(t *testing.T) {
	_, err := NewWeatherService(storage.NewMemoryStore(), nil, time.Minute).Insights(context.Background())
	if !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("Insights() error = %v, want %v", err, ErrNotEnoughData)
	}
}

func TestWeatherService_Insights_StorageFailure(t *testing.T) {
	_, err := NewWeatherService(brokenStore{}, nil, time.Minute).Insights(context.Background())
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Errorf("Insights() error = %v, want storage failure", err)
	}
}

func TestWeatherService_CreateRaw(t *testing.T) {
	store := storage.NewMemoryStore()
	mc := &mockCache{}
	svc := NewWeatherService(store, mc, time.Minute)

	obs := models.WeatherObservation{City: "Natal", Temperature: 30, Description: "whatever the sender said"}
	rec, err := svc.CreateRaw(context.Background(), obs)
	if err != nil {
		t.Fatalf("CreateRaw() error = %v", err)
	}
	if rec.RainProbability != nil || rec.WeatherCode != nil {
		t.Error("CreateRaw() must not classify")
	}
	if rec.Description != obs.Description {
		t.Errorf("Description = %q, want %q", rec.Description, obs.Description)
	}
	if mc.sets != 1 {
		t.Errorf("cache sets = %d, want 1", mc.sets)
	}

	if _, err := svc.CreateRaw(context.Background(), models.WeatherObservation{City: "  "}); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("CreateRaw(blank city) error = %v, want %v", err, ErrInvalidObservation)
	}
}

func TestWeatherService_RecentLogs(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 1, 2, 3)
	got, err := NewWeatherService(store, nil, time.Minute).RecentLogs(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(RecentLogs(2)) = %d, want 2", len(got))
	}
}

func TestWeatherService_LatestByCity_CacheAside(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	_, _ = store.Insert(context.Background(), models.WeatherObservation{City: "Recife", Temperature: 28})
	mc := &mockCache{}
	svc := NewWeatherService(store, mc, time.Minute)

	first, ok, err := svc.LatestByCity(context.Background(), "Recife")
	if err != nil || !ok {
		t.Fatalf("LatestByCity() = %v, %v", ok, err)
	}
	second, ok, err := svc.LatestByCity(context.Background(), "RECIFE")
	if err != nil || !ok {
		t.Fatalf("LatestByCity() second = %v, %v", ok, err)
	}
	if first.ID != second.ID {
		t.Errorf("IDs differ: %q vs %q", first.ID, second.ID)
	}
	if store.latestCalls != 1 {
		t.Errorf("storage reads = %d, want 1 (second served from cache)", store.latestCalls)
	}
}

func TestWeatherService_LatestByCity_CacheErrorFallsThrough(t *testing.T) {
	store := storage.NewMemoryStore()
	_, _ = store.Insert(context.Background(), models.WeatherObservation{City: "Recife", Temperature: 28})
	mc := &mockCache{getErr: errors.New("memcache: connection refused"), setErr: errors.New("i/o timeout")}

	rec, ok, err := NewWeatherService(store, mc, time.Minute).LatestByCity(context.Background(), "Recife")
	if err != nil || !ok {
		t.Fatalf("LatestByCity() = %v, %v, want storage result", ok, err)
	}
	if rec.Temperature != 28 {
		t.Errorf("Temperature = %v, want 28", rec.Temperature)
	}
}

func TestWeatherService_LatestByCity_Miss(t *testing.T) {
	mc := &mockCache{}
	_, ok, err := NewWeatherService(storage.NewMemoryStore(), mc, time.Minute).LatestByCity(context.Background(), "Atlantis")
	if err != nil || ok {
		t.Errorf("LatestByCity() = %v, %v, want false, nil", ok, err)
	}
	if mc.sets != 0 {
		t.Errorf("cache sets = %d, want 0 on miss", mc.sets)
	}
}

// TestWeatherService_Remember_RefreshesCache verifies that a newer collection
// replaces the cached latest reading.
func TestWeatherService_Remember_RefreshesCache(t *testing.T) {
	store := storage.NewMemoryStore()
	c := cache.NewInMemoryCache()
	svc := NewWeatherService(store, c, time.Minute)

	old, _ := store.Insert(context.Background(), models.WeatherObservation{City: "Recife", Temperature: 25})
	svc.Remember(context.Background(), old)
	fresh, _ := store.Insert(context.Background(), models.WeatherObservation{City: "Recife", Temperature: 31})
	svc.Remember(context.Background(), fresh)

	got, ok, err := svc.LatestByCity(context.Background(), "recife")
	if err != nil || !ok || got.ID != fresh.ID {
		t.Errorf("LatestByCity() = %+v, %v, %v, want fresh record", got, ok, err)
	}
}

func TestCategorizeCacheError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("read: i/o timeout"), "timeout"},
		{errors.New("dial tcp: connection refused"), "connection"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		if got := categorizeCacheError(tt.err); got != tt.want {
			t.Errorf("categorizeCacheError(%s) = %q, want %q", strings.TrimSpace(name), got, tt.want)
		}
	}
}
