package engine

import "time"

// DefaultStabilityThreshold is the minimum continuous idle duration before
// auto-injection is permitted into a terminal (spec.md §4.2).
const DefaultStabilityThreshold = 5 * time.Second

// StabilityTracker records, per terminal, the moment the Detector first
// reported idle, and answers whether a terminal has been continuously idle
// for at least the stability threshold.
//
// It holds no goroutines of its own; it is a pure read/update helper driven
// by the engine's single task on every verdict change and stability tick.
type StabilityTracker struct {
	threshold time.Duration
	now       func() time.Time
}

// NewStabilityTracker creates a tracker with the given threshold. A zero or
// negative threshold falls back to DefaultStabilityThreshold.
func NewStabilityTracker(threshold time.Duration) *StabilityTracker {
	if threshold <= 0 {
		threshold = DefaultStabilityThreshold
	}
	return &StabilityTracker{threshold: threshold, now: time.Now}
}

// OnVerdictChange updates t.IdleSince according to the new verdict. A
// non-idle verdict clears IdleSince (the "none" sentinel, zero time.Time);
// a transition into idle sets it to now, but only if it wasn't already set
// (re-entering idle from idle, e.g. repeated idle classifications, must not
// reset the clock).
func (s *StabilityTracker) OnVerdictChange(t *Terminal, v DetectorVerdict) {
	if v.Verdict != VerdictIdle {
		t.IdleSince = time.Time{}
		return
	}
	if !t.IsIdleSince() {
		t.IdleSince = s.now()
	}
}

// IsStableAndReady implements spec.md §4.2's predicate:
//
//	is_stable_and_ready(t) = (verdict == idle) ∧ (mode ∉ {paused}) ∧
//	                         ¬injecting(t) ∧ (now − idle_since(t) ≥ threshold)
func (s *StabilityTracker) IsStableAndReady(t *Terminal, mode Mode) bool {
	if t.Verdict.Verdict != VerdictIdle {
		return false
	}
	if mode == ModePaused {
		return false
	}
	if t.Injecting {
		return false
	}
	if !t.IsIdleSince() {
		return false
	}
	return s.now().Sub(t.IdleSince) >= s.threshold
}

// RemainingUntilStable returns how much longer a terminal must stay idle
// before it becomes stable, or 0 if it already is (or isn't idle at all, in
// which case the caller should not schedule a wake-up on this basis).
func (s *StabilityTracker) RemainingUntilStable(t *Terminal) time.Duration {
	if t.Verdict.Verdict != VerdictIdle || !t.IsIdleSince() {
		return 0
	}
	elapsed := s.now().Sub(t.IdleSince)
	if elapsed >= s.threshold {
		return 0
	}
	return s.threshold - elapsed
}
