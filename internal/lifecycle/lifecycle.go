// Package lifecycle tracks the process phase that /health reports:
// starting until dependencies are open, serving, then draining after a signal.
package lifecycle

import "sync/atomic"

// Phase is the process lifecycle phase.
type Phase int32

const (
	Starting Phase = iota
	Serving
	Draining
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Serving:
		return "serving"
	case Draining:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// MarkServing moves Starting to Serving. A draining process stays draining.
func MarkServing() {
	phase.CompareAndSwap(int32(Starting), int32(Serving))
}

// BeginDrain marks the process as shutting down. Call when SIGTERM/SIGINT is received.
func BeginDrain() {
	phase.Store(int32(Draining))
}

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return Current() == Draining
}

// Reset returns to Starting. For tests only.
func Reset() {
	phase.Store(int32(Starting))
}
