package game

import (
	"testing"
	"time"
)

func TestCurve_Multiplier(t *testing.T) {
	curve := DefaultCurve()

	tests := []struct {
		name       string
		elapsed    time.Duration
		crashPoint float64
		want       float64
	}{
		{"before start", -time.Second, 3.00, 1.00},
		{"at start", 0, 3.00, 1.00},
		{"inside first step", 49 * time.Millisecond, 3.00, 1.00},
		{"one step", 50 * time.Millisecond, 3.00, 1.01},
		{"two and a half seconds", 2500 * time.Millisecond, 3.00, 1.50},
		{"five seconds", 5 * time.Second, 3.00, 2.00},
		{"clamped to crash point", 20 * time.Second, 3.00, 3.00},
		{"clamped to ceiling", time.Minute, 100, DEFAULT_CRASH_CEILING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := curve.Multiplier(tt.elapsed, tt.crashPoint); got != tt.want {
				t.Errorf("Multiplier(%v, %v) = %v, want %v", tt.elapsed, tt.crashPoint, got, tt.want)
			}
		})
	}
}

func TestCurve_Monotonic(t *testing.T) {
	curve := DefaultCurve()
	prev := 0.0
	for ms := 0; ms <= 30000; ms++ {
		m := curve.Multiplier(time.Duration(ms)*time.Millisecond, DEFAULT_CRASH_CEILING)
		if m < prev {
			t.Fatalf("Multiplier decreased at %dms: %v < %v", ms, m, prev)
		}
		prev = m
	}
}

func TestCurve_TimeToReach(t *testing.T) {
	curve := DefaultCurve()

	if got := curve.TimeToReach(1.00); got != 0 {
		t.Errorf("TimeToReach(1.00) = %v, want 0", got)
	}
	if got := curve.TimeToReach(2.00); got != 5*time.Second {
		t.Errorf("TimeToReach(2.00) = %v, want 5s", got)
	}

	for cents := 101; cents <= 586; cents++ {
		target := float64(cents) / 100
		at := curve.TimeToReach(target)
		if got := curve.Multiplier(at, DEFAULT_CRASH_CEILING); got < target {
			t.Fatalf("Multiplier(TimeToReach(%v)) = %v, want >= target", target, got)
		}
		if got := curve.Multiplier(at-time.Millisecond, DEFAULT_CRASH_CEILING); got >= target {
			t.Fatalf("Multiplier just before TimeToReach(%v) = %v, want < target", target, got)
		}
	}
}
