package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-collector-service/internal/classifier"
	"github.com/kjstillabower/weather-collector-service/internal/client"
	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/storage"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

type fakeClient struct {
	mu       sync.Mutex
	calls    int
	lat, lon float64
	resp     models.CurrentConditions
	err      error
}

func (f *fakeClient) GetCurrentConditions(ctx context.Context, lat, lon float64) (models.CurrentConditions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lat, f.lon = lat, lon
	return f.resp, f.err
}

// failingStore fails every insert; reads are never reached by the collector.
type failingStore struct {
	storage.Store
	inserts int
}

func (s *failingStore) Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	s.inserts++
	return models.StoredObservation{}, fmt.Errorf("%w: insert: disk full", storage.ErrStorageFailure)
}

func conditions(code *int, description string) models.CurrentConditions {
	cur := models.CurrentConditions{
		ObservedAt:    time.Unix(1714564800, 0).UTC(),
		Temperature:   f64(24.3),
		Humidity:      f64(78),
		Pressure:      f64(1012),
		WindSpeed:     f64(4.1),
		WindDirection: f64(130),
	}
	if code != nil || description != "" {
		cur.Conditions = []models.Condition{{Code: code, Description: description}}
	}
	return cur
}

func newTestCollector(c client.WeatherClient, s storage.Store) *Collector {
	return New(c, s, Location{}, zap.NewNop())
}

func TestCollectForCity_ClassifiesAndStores(t *testing.T) {
	tests := []struct {
		name        string
		code        *int
		description string
		wantDesc    string
	}{
		{"code in table", intp(501), "moderate rain", "moderate rain"},
		{"unknown code falls back to text", intp(9999), "heavy rain expected", "heavy rain expected"},
		{"no code", nil, "tempestade", "tempestade"},
		{"no condition at all", nil, "", models.DescriptionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{resp: conditions(tt.code, tt.description)}
			store := storage.NewMemoryStore()
			col := newTestCollector(fc, store)

			rec, err := col.CollectForCity(context.Background(), "Recife", -8.05, -34.9)
			if err != nil {
				t.Fatalf("CollectForCity() error = %v", err)
			}
			if fc.lat != -8.05 || fc.lon != -34.9 {
				t.Errorf("provider coordinates = %v,%v, want -8.05,-34.9", fc.lat, fc.lon)
			}

			want := classifier.Classify(tt.code, tt.description)
			if rec.RainProbability == nil || *rec.RainProbability != want.Probability {
				t.Errorf("RainProbability = %v, want %d", rec.RainProbability, want.Probability)
			}
			if (rec.WeatherCode == nil) != (tt.code == nil) || (tt.code != nil && *rec.WeatherCode != *tt.code) {
				t.Errorf("WeatherCode = %v, want %v", rec.WeatherCode, tt.code)
			}
			if rec.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", rec.Description, tt.wantDesc)
			}
			if rec.ID == "" || rec.CreatedAt.IsZero() {
				t.Errorf("stored metadata missing: %+v", rec)
			}

			recent, _ := store.FindRecent(context.Background(), 10)
			if len(recent) != 1 || recent[0].ID != rec.ID {
				t.Errorf("store holds %d records, want the returned one", len(recent))
			}
		})
	}
}

func TestCollectForCity_FieldMapping(t *testing.T) {
	fc := &fakeClient{resp: conditions(intp(800), "clear sky")}
	rec, err := newTestCollector(fc, storage.NewMemoryStore()).CollectForCity(context.Background(), "Natal", -5.79, -35.2)
	if err != nil {
		t.Fatalf("CollectForCity() error = %v", err)
	}
	if !rec.ObservedAt.Equal(time.Unix(1714564800, 0)) {
		t.Errorf("ObservedAt = %v", rec.ObservedAt)
	}
	if rec.City != "Natal" || rec.Temperature != 24.3 || rec.WindSpeed != 4.1 || rec.WindDirection != 130 {
		t.Errorf("record = %+v", rec.WeatherObservation)
	}
	if rec.Humidity == nil || *rec.Humidity != 78 || rec.Pressure == nil || *rec.Pressure != 1012 {
		t.Errorf("Humidity/Pressure = %v/%v", rec.Humidity, rec.Pressure)
	}
	if *rec.RainProbability != 0 {
		t.Errorf("RainProbability = %d, want 0 for clear sky", *rec.RainProbability)
	}
}

// TestCollect_MissingOptionalFields verifies that absent readings default
// rather than fail.
func TestCollect_MissingOptionalFields(t *testing.T) {
	fc := &fakeClient{resp: models.CurrentConditions{
		ObservedAt:  time.Unix(1714564800, 0).UTC(),
		Temperature: f64(19),
		WindSpeed:   f64(2),
	}}
	rec, err := newTestCollector(fc, storage.NewMemoryStore()).CollectForCity(context.Background(), "Curitiba", -25.4, -49.3)
	if err != nil {
		t.Fatalf("CollectForCity() error = %v", err)
	}
	if rec.WindDirection != 0 {
		t.Errorf("WindDirection = %v, want 0", rec.WindDirection)
	}
	if rec.Description != "N/A" {
		t.Errorf("Description = %q, want N/A", rec.Description)
	}
	if rec.Humidity != nil || rec.Pressure != nil {
		t.Errorf("Humidity/Pressure = %v/%v, want nil", rec.Humidity, rec.Pressure)
	}
	if rec.RainProbability == nil || *rec.RainProbability != classifier.DefaultRainInfo.Probability {
		t.Errorf("RainProbability = %v, want default %d", rec.RainProbability, classifier.DefaultRainInfo.Probability)
	}
}

func TestCollect_MissingObservationTimeUsesClock(t *testing.T) {
	fc := &fakeClient{resp: models.CurrentConditions{Temperature: f64(19)}}
	col := newTestCollector(fc, storage.NewMemoryStore())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	col.clock = clockwork.NewFakeClockAt(at)

	rec, err := col.CollectForCity(context.Background(), "Curitiba", -25.4, -49.3)
	if err != nil {
		t.Fatalf("CollectForCity() error = %v", err)
	}
	if !rec.ObservedAt.Equal(at) {
		t.Errorf("ObservedAt = %v, want %v", rec.ObservedAt, at)
	}
}

// TestCollectDefault_NeverClassifies verifies the default path stores no
// rain signal even when the provider sends a well-formed code.
func TestCollectDefault_NeverClassifies(t *testing.T) {
	fc := &fakeClient{resp: conditions(intp(502), "heavy intensity rain")}
	col := newTestCollector(fc, storage.NewMemoryStore())
	classified := 0
	col.classify = func(code *int, description string) models.RainInfo {
		classified++
		return classifier.Classify(code, description)
	}

	rec, err := col.CollectDefault(context.Background())
	if err != nil {
		t.Fatalf("CollectDefault() error = %v", err)
	}
	if classified != 0 {
		t.Errorf("classifier called %d times, want 0", classified)
	}
	if rec.RainProbability != nil || rec.WeatherCode != nil {
		t.Errorf("RainProbability/WeatherCode = %v/%v, want nil", rec.RainProbability, rec.WeatherCode)
	}
	if rec.Description != "heavy intensity rain" {
		t.Errorf("Description = %q", rec.Description)
	}
	if rec.City != PrimaryLocation.City || fc.lat != PrimaryLocation.Latitude || fc.lon != PrimaryLocation.Longitude {
		t.Errorf("collected %s at %v,%v, want São Paulo default", rec.City, fc.lat, fc.lon)
	}

	if _, err := col.CollectForCity(context.Background(), "Recife", 0, 0); err != nil {
		t.Fatalf("CollectForCity() error = %v", err)
	}
	if classified != 1 {
		t.Errorf("classifier called %d times after city path, want 1", classified)
	}
}

func TestCollectDefault_ConfiguredLocation(t *testing.T) {
	fc := &fakeClient{resp: conditions(nil, "")}
	col := New(fc, storage.NewMemoryStore(), Location{City: "Recife", Latitude: -8.05, Longitude: -34.9}, nil)
	rec, err := col.CollectDefault(context.Background())
	if err != nil {
		t.Fatalf("CollectDefault() error = %v", err)
	}
	if rec.City != "Recife" || fc.lat != -8.05 {
		t.Errorf("collected %s at %v, want Recife", rec.City, fc.lat)
	}
}

func TestCollect_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{"timeout", fmt.Errorf("%w: %w", client.ErrProviderUnavailable, context.DeadlineExceeded), KindProviderUnavailable},
		{"network", fmt.Errorf("%w: connection refused", client.ErrProviderUnavailable), KindProviderUnavailable},
		{"rejected", fmt.Errorf("%w: %w", client.ErrProviderRejected, client.ErrInvalidAPIKey), KindProviderRejected},
		{"missing credential", client.ErrMissingCredential, KindMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{err: tt.err}
			store := storage.NewMemoryStore()
			col := newTestCollector(fc, store)

			for _, run := range []func() (models.StoredObservation, error){
				func() (models.StoredObservation, error) {
					return col.CollectForCity(context.Background(), "Recife", 0, 0)
				},
				func() (models.StoredObservation, error) {
					return col.CollectDefault(context.Background())
				},
			} {
				_, err := run()
				var cerr *CollectionError
				if !errors.As(err, &cerr) {
					t.Fatalf("error = %T %v, want *CollectionError", err, err)
				}
				if cerr.Kind != tt.wantKind {
					t.Errorf("Kind = %q, want %q", cerr.Kind, tt.wantKind)
				}
				if !errors.Is(err, tt.err) {
					t.Errorf("error %v does not wrap %v", err, tt.err)
				}
				if !strings.Contains(cerr.Message, cerr.City) {
					t.Errorf("Message = %q, want it to name %q", cerr.Message, cerr.City)
				}
			}

			if recs, _ := store.FindRecent(context.Background(), 10); len(recs) != 0 {
				t.Errorf("store holds %d records after failure, want 0", len(recs))
			}
			if fc.calls != 2 {
				t.Errorf("provider calls = %d, want 2 (one per collection, no retries)", fc.calls)
			}
		})
	}
}

func TestCollect_MissingCredentialMessage(t *testing.T) {
	col := newTestCollector(&fakeClient{err: client.ErrMissingCredential}, storage.NewMemoryStore())
	_, err := col.CollectForCity(context.Background(), "Recife", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error = %v, want not configured message", err)
	}
}

func TestCollect_StorageFailure(t *testing.T) {
	store := &failingStore{}
	col := newTestCollector(&fakeClient{resp: conditions(intp(500), "light rain")}, store)

	_, err := col.CollectForCity(context.Background(), "Recife", 0, 0)
	var cerr *CollectionError
	if !errors.As(err, &cerr) || cerr.Kind != KindStorageFailure {
		t.Fatalf("error = %v, want storage_failure CollectionError", err)
	}
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Errorf("error %v does not wrap ErrStorageFailure", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %q, want storage cause in message", err.Error())
	}
	if store.inserts != 1 {
		t.Errorf("inserts = %d, want 1", store.inserts)
	}
}

// TestCollect_LogsThroughContextLogger verifies that the request-scoped logger
// receives the collection log lines.
func TestCollect_LogsThroughContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := observability.WithLogger(context.Background(), zap.New(core))

	col := newTestCollector(&fakeClient{resp: conditions(intp(500), "light rain")}, storage.NewMemoryStore())
	if _, err := col.CollectForCity(ctx, "Recife", 0, 0); err != nil {
		t.Fatalf("CollectForCity() error = %v", err)
	}
	entries := logs.FilterMessage("weather collected").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["city"] != "Recife" || fields["path"] != "city" {
		t.Errorf("log fields = %v", fields)
	}
	if fields["rainProbability"] != int64(30) {
		t.Errorf("rainProbability field = %v, want 30", fields["rainProbability"])
	}

	col = newTestCollector(&fakeClient{err: client.ErrMissingCredential}, storage.NewMemoryStore())
	_, _ = col.CollectDefault(ctx)
	warn := logs.FilterMessage("weather collection failed").All()
	if len(warn) != 1 || warn[0].ContextMap()["kind"] != "missing_credential" {
		t.Errorf("failure log = %v", warn)
	}
}

func TestCollect_ConcurrentCities(t *testing.T) {
	store := storage.NewMemoryStore()
	col := newTestCollector(&fakeClient{resp: conditions(intp(801), "few clouds")}, store)

	cities := []string{"Recife", "Natal", "Belém", "Manaus", "Salvador"}
	var wg sync.WaitGroup
	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			if _, err := col.CollectForCity(context.Background(), city, 0, 0); err != nil {
				t.Errorf("CollectForCity(%s) error = %v", city, err)
			}
		}(city)
	}
	wg.Wait()

	recs, _ := store.FindRecent(context.Background(), 0)
	if len(recs) != len(cities) {
		t.Errorf("stored %d records, want %d", len(recs), len(cities))
	}
}
