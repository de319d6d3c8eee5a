//go:build integration
// +build integration

package client

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"
)

func isValidAPIKeyFormat(key string) error {
	if len(key) != 32 {
		return fmt.Errorf("API key length is %d, expected 32", len(key))
	}

	hexPattern := regexp.MustCompile(`^[0-9a-fA-F]+$`)
	if !hexPattern.MatchString(key) {
		return fmt.Errorf("API key contains non-hexadecimal characters")
	}

	return nil
}

func TestOpenWeatherClient_GetCurrentConditions_Integration(t *testing.T) {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	if err := isValidAPIKeyFormat(apiKey); err != nil {
		t.Fatalf("API key format validation failed: %v", err)
	}

	client, err := NewOpenWeatherClient(apiKey, "https://api.openweathermap.org/data/2.5/weather", 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	got, err := client.GetCurrentConditions(context.Background(), -23.5505, -46.6333)
	if err != nil {
		t.Fatalf("GetCurrentConditions() error = %v (API key may not be activated yet)", err)
	}

	if got.ObservedAt.IsZero() {
		t.Error("GetCurrentConditions() returned zero observation time")
	}
	if got.Temperature == nil {
		t.Error("GetCurrentConditions() returned no temperature")
	}
	if _, ok := got.Primary(); !ok {
		t.Error("GetCurrentConditions() returned no conditions")
	}
}
