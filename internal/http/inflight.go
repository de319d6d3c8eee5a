package http

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjstillabower/weather-collector-service/internal/observability"
)

// InFlightTracker counts requests currently being served and mirrors the count
// into an optional gauge. Shutdown waits on it before closing storage.
type InFlightTracker struct {
	count atomic.Int64
	gauge prometheus.Gauge
}

// NewInFlightTracker returns a tracker that also sets gauge; gauge may be nil.
func NewInFlightTracker(gauge prometheus.Gauge) *InFlightTracker {
	return &InFlightTracker{gauge: gauge}
}

// Begin marks one request as started and returns the func that ends it.
func (t *InFlightTracker) Begin() (end func()) {
	t.set(t.count.Add(1))
	return func() { t.set(t.count.Add(-1)) }
}

func (t *InFlightTracker) set(n int64) {
	if t.gauge != nil {
		t.gauge.Set(float64(n))
	}
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero blocks until no request is in flight or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for t.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// inFlight is the process-wide tracker fed by MetricsMiddleware.
var inFlight = NewInFlightTracker(observability.HTTPRequestsInFlight)

// InFlightCount returns the number of requests MetricsMiddleware is serving.
func InFlightCount() int64 {
	return inFlight.Count()
}

// WaitForInFlight blocks until MetricsMiddleware has no request in flight or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return inFlight.WaitForZero(ctx, checkInterval)
}
