package lifecycle

import "testing"

func TestPhase_Transitions(t *testing.T) {
	Reset()
	defer Reset()

	if got := Current(); got != Starting {
		t.Fatalf("Current() = %v, want starting", got)
	}
	MarkServing()
	if got := Current(); got != Serving {
		t.Fatalf("Current() after MarkServing = %v, want serving", got)
	}
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true while serving")
	}
	BeginDrain()
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after BeginDrain")
	}
}

func TestMarkServing_DoesNotLeaveDrain(t *testing.T) {
	Reset()
	defer Reset()

	BeginDrain()
	MarkServing()
	if got := Current(); got != Draining {
		t.Errorf("Current() = %v, want shutting-down", got)
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{Starting, "starting"},
		{Serving, "serving"},
		{Draining, "shutting-down"},
		{Phase(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
