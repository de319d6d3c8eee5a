package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// Fixed-width so that lexical order of the stored text matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS observations (
	id               TEXT PRIMARY KEY,
	city             TEXT NOT NULL,
	city_key         TEXT NOT NULL,
	observed_at      TEXT NOT NULL,
	temperature      REAL NOT NULL,
	humidity         REAL,
	pressure         REAL,
	windspeed        REAL NOT NULL,
	winddirection    REAL NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	weather_code     INTEGER,
	rain_probability INTEGER,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_observations_city ON observations(city_key, created_at DESC);`

const sqliteColumns = `id, city, observed_at, temperature, humidity, pressure, windspeed,
	winddirection, description, weather_code, rain_probability, created_at, updated_at`

// SQLiteStore persists observations in a single SQLite file (pure Go driver modernc.org/sqlite).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps ":memory:" databases on a single connection and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set sqlite journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	t := now()
	rec := models.StoredObservation{
		ID:                 uuid.NewString(),
		WeatherObservation: obs,
		CreatedAt:          t,
		UpdatedAt:          t,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO observations(
		id, city, city_key, observed_at, temperature, humidity, pressure, windspeed,
		winddirection, description, weather_code, rain_probability, created_at, updated_at
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, obs.City, normalizeCity(obs.City), formatTime(obs.ObservedAt), obs.Temperature,
		nullable(obs.Humidity), nullable(obs.Pressure), obs.WindSpeed, obs.WindDirection,
		obs.Description, nullable(obs.WeatherCode), nullable(obs.RainProbability),
		formatTime(t), formatTime(t))
	if err != nil {
		return models.StoredObservation{}, wrap("insert", err)
	}
	return rec, nil
}

func (s *SQLiteStore) FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+`
		FROM observations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("find_recent", err)
	}
	defer rows.Close()

	out := make([]models.StoredObservation, 0)
	for rows.Next() {
		rec, err := scanObservation(rows)
		if err != nil {
			return nil, wrap("find_recent", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("find_recent", err)
	}
	return out, nil
}

func (s *SQLiteStore) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+`
		FROM observations WHERE city_key = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		normalizeCity(city))
	rec, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return models.StoredObservation{}, false, nil
	}
	if err != nil {
		return models.StoredObservation{}, false, wrap("latest_by_city", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(r scanner) (models.StoredObservation, error) {
	var (
		rec                         models.StoredObservation
		observedAt, created, update string
		humidity, pressure          sql.NullFloat64
		code, rain                  sql.NullInt64
	)
	err := r.Scan(&rec.ID, &rec.City, &observedAt, &rec.Temperature, &humidity, &pressure,
		&rec.WindSpeed, &rec.WindDirection, &rec.Description, &code, &rain, &created, &update)
	if err != nil {
		return rec, err
	}
	if rec.ObservedAt, err = parseTime(observedAt); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(update); err != nil {
		return rec, err
	}
	if humidity.Valid {
		rec.Humidity = &humidity.Float64
	}
	if pressure.Valid {
		rec.Pressure = &pressure.Float64
	}
	if code.Valid {
		v := int(code.Int64)
		rec.WeatherCode = &v
	}
	if rain.Valid {
		v := int(rain.Int64)
		rec.RainProbability = &v
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func nullable[T int | float64](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
