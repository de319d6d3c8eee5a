package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DescriptionUnavailable is stored when the provider sends no condition label.
const DescriptionUnavailable = "N/A"

// WeatherObservation is one weather reading for a city at a point in time.
// Optional readings are nil when the provider (or the raw submitter) omitted them.
type WeatherObservation struct {
	City            string    `json:"city" bson:"city"`
	ObservedAt      time.Time `json:"timestamp" bson:"timestamp"`
	Temperature     float64   `json:"temperature" bson:"temperature"`
	Humidity        *float64  `json:"humidity,omitempty" bson:"humidity,omitempty"`
	Pressure        *float64  `json:"pressure,omitempty" bson:"pressure,omitempty"`
	WindSpeed       float64   `json:"windspeed" bson:"windspeed"`
	WindDirection   float64   `json:"winddirection" bson:"winddirection"`
	Description     string    `json:"description,omitempty" bson:"description,omitempty"`
	WeatherCode     *int      `json:"weatherCode,omitempty" bson:"weatherCode,omitempty"`
	RainProbability *int      `json:"rainProbability,omitempty" bson:"rainProbability,omitempty"`
}

// StoredObservation is an observation after the storage layer accepted it.
type StoredObservation struct {
	ID string `json:"_id"`
	WeatherObservation
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnmarshalJSON keeps the storage metadata that the embedded observation's
// decoder would otherwise swallow.
func (s *StoredObservation) UnmarshalJSON(data []byte) error {
	var meta struct {
		ID        string    `json:"_id"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	if err := s.WeatherObservation.UnmarshalJSON(data); err != nil {
		return err
	}
	s.ID, s.CreatedAt, s.UpdatedAt = meta.ID, meta.CreatedAt, meta.UpdatedAt
	return nil
}

// UnmarshalJSON accepts the timestamp as RFC 3339 or as a zone-less ISO 8601
// local time, which is what upstream collectors publish on the raw queue.
func (o *WeatherObservation) UnmarshalJSON(data []byte) error {
	type plain WeatherObservation
	aux := struct {
		*plain
		ObservedAt *string `json:"timestamp"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ObservedAt == nil || strings.TrimSpace(*aux.ObservedAt) == "" {
		o.ObservedAt = time.Time{}
		return nil
	}
	t, err := ParseTimestamp(*aux.ObservedAt)
	if err != nil {
		return err
	}
	o.ObservedAt = t
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the timestamp formats accepted on the raw log path.
// Zone-less values are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Condition is one entry of the provider's condition list.
type Condition struct {
	Code        *int
	Description string
}

// CurrentConditions is the provider's current-weather payload with optional
// fields left nil when absent.
type CurrentConditions struct {
	ObservedAt    time.Time
	Temperature   *float64
	Humidity      *float64
	Pressure      *float64
	WindSpeed     *float64
	WindDirection *float64
	Conditions    []Condition
}

// Primary returns the first condition, which is the only one the collector consults.
func (c CurrentConditions) Primary() (Condition, bool) {
	if len(c.Conditions) == 0 {
		return Condition{}, false
	}
	return c.Conditions[0], true
}
