package engine

import (
	"testing"
	"time"
)

func TestStabilityTracker_OnVerdictChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStabilityTracker(5 * time.Second)
	s.now = func() time.Time { return now }

	term := &Terminal{}

	s.OnVerdictChange(term, DetectorVerdict{Verdict: VerdictIdle})
	if !term.IsIdleSince() {
		t.Fatalf("expected IdleSince set after idle verdict")
	}
	first := term.IdleSince

	now = now.Add(2 * time.Second)
	s.OnVerdictChange(term, DetectorVerdict{Verdict: VerdictIdle})
	if term.IdleSince != first {
		t.Fatalf("re-entering idle from idle must not reset the clock")
	}

	s.OnVerdictChange(term, DetectorVerdict{Verdict: VerdictRunning})
	if term.IsIdleSince() {
		t.Fatalf("non-idle verdict must clear IdleSince")
	}
}

func TestStabilityTracker_IsStableAndReady(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStabilityTracker(5 * time.Second)
	s.now = func() time.Time { return now }

	term := &Terminal{Verdict: DetectorVerdict{Verdict: VerdictIdle}, IdleSince: now}

	if s.IsStableAndReady(term, ModeIdle) {
		t.Fatalf("should not be ready before threshold elapses")
	}

	now = now.Add(5 * time.Second)
	if !s.IsStableAndReady(term, ModeIdle) {
		t.Fatalf("should be ready once threshold elapses")
	}

	if s.IsStableAndReady(term, ModePaused) {
		t.Fatalf("paused mode must never be ready")
	}

	term.Injecting = true
	if s.IsStableAndReady(term, ModeIdle) {
		t.Fatalf("an injecting terminal must never be ready")
	}
	term.Injecting = false

	term.Verdict = DetectorVerdict{Verdict: VerdictRunning}
	if s.IsStableAndReady(term, ModeIdle) {
		t.Fatalf("non-idle verdict must never be ready")
	}
}

func TestStabilityTracker_RemainingUntilStable(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStabilityTracker(5 * time.Second)
	s.now = func() time.Time { return now }

	term := &Terminal{Verdict: DetectorVerdict{Verdict: VerdictIdle}, IdleSince: now}
	if got := s.RemainingUntilStable(term); got != 5*time.Second {
		t.Fatalf("remaining = %v, want 5s", got)
	}

	now = now.Add(3 * time.Second)
	if got := s.RemainingUntilStable(term); got != 2*time.Second {
		t.Fatalf("remaining = %v, want 2s", got)
	}

	now = now.Add(10 * time.Second)
	if got := s.RemainingUntilStable(term); got != 0 {
		t.Fatalf("remaining = %v, want 0 once stable", got)
	}

	term.Verdict = DetectorVerdict{Verdict: VerdictRunning}
	if got := s.RemainingUntilStable(term); got != 0 {
		t.Fatalf("remaining = %v, want 0 for a non-idle terminal", got)
	}
}
