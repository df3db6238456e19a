package engine

import (
	"strconv"
	"strings"
	"time"
)

// UsageLimitSync implements spec.md §4.6: when the Detector announces a
// reset time, it sets the Timer to the interval until that wall-clock
// moment and holds the engine in waiting-for-usage-limit mode until the
// Timer expires.
type UsageLimitSync struct {
	timer *Timer
	now   func() time.Time

	lastProcessed   string // persisted; empty means "none"
	autoSyncEnabled bool   // disabled by a manual Timer edit, re-enabled on a fresh reset
}

// NewUsageLimitSync creates a synchronizer bound to the given Timer.
func NewUsageLimitSync(timer *Timer) *UsageLimitSync {
	return &UsageLimitSync{timer: timer, now: time.Now, autoSyncEnabled: true}
}

// LastProcessed returns the persisted last-processed reset string, for
// state-store round-tripping.
func (u *UsageLimitSync) LastProcessed() string { return u.lastProcessed }

// RestoreLastProcessed seeds the synchronizer from persisted state (used on
// engine startup).
func (u *UsageLimitSync) RestoreLastProcessed(reset string) { u.lastProcessed = reset }

// DisableAutoSync is called whenever the Timer is manually edited; per
// spec.md §4.6, "Manual Timer edits immediately disable automatic
// synchronization until the next fresh reset is observed."
func (u *UsageLimitSync) DisableAutoSync() { u.autoSyncEnabled = false }

// OnResetAnnounced processes a usage_limit_announced verdict. It returns
// (handled, error): handled is false if the reset string duplicates the
// last-processed one (idempotency, spec.md §8) or if auto-sync is
// currently disabled.
func (u *UsageLimitSync) OnResetAnnounced(reset string) (bool, error) {
	if !u.autoSyncEnabled {
		return false, nil
	}
	if reset == u.lastProcessed {
		return false, nil
	}

	target, err := nextOccurrence(u.now(), reset)
	if err != nil {
		return false, err
	}

	delta := target.Sub(u.now())
	if delta < 0 {
		delta = 0
	}
	if err := u.timer.SetAndStart(TimerValueFromDuration(delta)); err != nil {
		return false, err
	}

	u.lastProcessed = reset
	return true, nil
}

// OnTimerNaturallyExpired clears the persisted reset string, per spec.md
// §4.6 ("On Timer natural expiry, clear the persisted reset string"). The
// caller (Engine) is responsible for unshifting the "continue" message and
// clearing waiting-for-usage-limit mode.
func (u *UsageLimitSync) OnTimerNaturallyExpired() {
	u.lastProcessed = ""
	u.autoSyncEnabled = true
}

// nextOccurrence computes the next wall-clock occurrence of a reset string
// like "3am" or "11pm": today if still in the future, else tomorrow.
func nextOccurrence(now time.Time, reset string) (time.Time, error) {
	reset = strings.ToLower(strings.TrimSpace(reset))
	var isPM bool
	switch {
	case strings.HasSuffix(reset, "am"):
		isPM = false
	case strings.HasSuffix(reset, "pm"):
		isPM = true
	default:
		return time.Time{}, ErrInvalidInput
	}
	numStr := strings.TrimSuffix(strings.TrimSuffix(reset, "am"), "pm")
	hour, err := strconv.Atoi(numStr)
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, ErrInvalidInput
	}

	h24 := hour % 12
	if isPM {
		h24 += 12
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), h24, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}
