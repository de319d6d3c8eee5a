//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-collector-service/internal/testhelpers"
)

// TestMemcachedCache_GetSet_Integration verifies a round trip through a real
// memcached, including a city name that needs key escaping.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	addr := testhelpers.RequireEnv(t, "MEMCACHED_ADDRS")
	c, err := NewMemcachedCache(addr, 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	ctx := context.Background()
	val := record("São Paulo", 21.5)
	if err := c.Set(ctx, "São Paulo", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "são paulo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.ID != val.ID || got.Temperature != val.Temperature {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}

	if _, ok, err := c.Get(ctx, "nonexistent-city"); err != nil || ok {
		t.Errorf("Get(miss) = %v, %v, want false, nil", ok, err)
	}
}
