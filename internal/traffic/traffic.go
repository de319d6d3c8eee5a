// Package traffic keeps sliding windows of collection outcomes. Health and the
// window gauges read from it; the collection handlers write to it.
package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Outcome is the result of one collection request.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
)

// retention bounds how long outcomes are kept regardless of the queried window.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(clockwork.NewRealClock())

// Record appends one outcome to the default tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RequestCount returns the number of outcomes (success + failure + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// ErrorRate returns (failures, total) within the window. Denials are not part of total.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears the default tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker records outcome timestamps per kind.
type Tracker struct {
	clock clockwork.Clock

	mu    sync.Mutex
	times [3][]time.Time
}

// NewTracker returns a tracker reading time from clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	return &Tracker{clock: clock}
}

func (t *Tracker) Record(o Outcome) {
	if o < Success || o > Denied {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	n := 0
	for _, ts := range t.times {
		n += countSince(ts, cutoff)
	}
	return n
}

func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	errors = countSince(t.times[Failure], cutoff)
	return errors, errors + countSince(t.times[Success], cutoff)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = [3][]time.Time{}
}

// countSince assumes ts is in append (chronological) order.
func countSince(ts []time.Time, cutoff time.Time) int {
	for i, v := range ts {
		if !v.Before(cutoff) {
			return len(ts) - i
		}
	}
	return 0
}

// Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for k := range t.times {
		ts := t.times[k]
		i := 0
		for i < len(ts) && ts[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			t.times[k] = append(ts[:0], ts[i:]...)
		}
	}
}
