//go:build integration
// +build integration

// Package testhelpers reads the addresses integration tests need from the
// environment and skips the calling test when one is missing.
package testhelpers

import (
	"os"
	"testing"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	MongoURI      string
	MemcachedAddr string
	RabbitMQURL   string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	return IntegrationTestConfig{
		APIKey:        RequireEnv(t, "WEATHER_API_KEY"),
		APIURL:        EnvOr("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5/weather"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MemcachedAddr: EnvOr("MEMCACHED_ADDRS", "localhost:11211"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
	}
}

// RequireEnv returns the value of key or skips the test when it is unset.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set, skipping integration test", key)
	}
	return v
}

// EnvOr returns the value of key, or def when it is unset.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
