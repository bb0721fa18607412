package model

import (
	"strings"
	"testing"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDeploying, StatusRunning, true},
		{StatusDeploying, StatusFailed, true},
		{StatusDeploying, StatusStopped, false},
		{StatusRunning, StatusStopping, true},
		{StatusRunning, StatusCleaning, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCleaned, false},
		{StatusStopping, StatusStopped, true},
		{StatusStopping, StatusRunning, true},
		{StatusStopped, StatusRunning, true},
		{StatusStopped, StatusCleaning, true},
		{StatusStopped, StatusFailed, false},
		{StatusCleaning, StatusCleaned, true},
		{StatusCleaning, StatusFailed, false},
		{StatusFailed, StatusCleaning, true},
		{StatusFailed, StatusRunning, false},
		{StatusCleaned, StatusCleaning, false},
		{StatusCleaned, StatusRunning, false},
		{"bogus", StatusRunning, false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatus(t *testing.T) {
	if !TerminalStatus(StatusCleaned) {
		t.Error("cleaned should be terminal")
	}
	if TerminalStatus(StatusFailed) {
		t.Error("failed should not be terminal: cleanup is still legal")
	}
	if TerminalStatus(StatusRunning) {
		t.Error("running should not be terminal")
	}
}

func TestNewDeploymentIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewDeploymentID()
		if !strings.HasPrefix(id, "dep-") {
			t.Fatalf("id %q missing dep- prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
