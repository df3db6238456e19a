package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Auto-Continue Responder tuning constants (spec.md §4.7).
const (
	AutoContinueMaxAttempts  = 10
	autoContinueMinSendDelay = 50 * time.Millisecond
	autoContinueMaxSendDelay = 150 * time.Millisecond
	autoContinueMinRecheck   = 1000 * time.Millisecond
	autoContinueMaxRecheck   = 1300 * time.Millisecond
	trustAskedMinDelay       = 1 * time.Second
	trustAskedMaxDelay       = 2 * time.Second
)

// AutoContinue implements spec.md §4.7: when enabled and the Detector
// reports `prompting` (including the bare "Do you want to proceed?"
// marker), it sends Return in a retry loop until the prompt clears or
// AutoContinueMaxAttempts is exhausted. For trust_asked it sends a single
// delayed Return without looping.
type AutoContinue struct {
	writer  PTYWriter
	clock   Clock
	log     *ActionLog
	enabled bool

	mu sync.Mutex
	// suppressed tracks terminals where an injection is in flight or the
	// Keyword Interruptor has just fired (spec.md §4.7, §4.8).
	suppressed map[TerminalID]bool
	// active tracks terminals with a retry loop (RunPrompting or
	// RunTrustAsked) currently in flight, so a prompt that persists across
	// re-renders never gets more than one responder sending Return at a
	// time (spec.md §4.7's 10-attempt cap assumes a single loop).
	active map[TerminalID]bool
}

// NewAutoContinue creates a responder. Enabled mirrors the user setting
// from spec.md §4.7 ("Enabled by a setting").
func NewAutoContinue(w PTYWriter, clock Clock, log *ActionLog, enabled bool) *AutoContinue {
	if clock == nil {
		clock = RealClock{}
	}
	return &AutoContinue{
		writer:     w,
		clock:      clock,
		log:        log,
		enabled:    enabled,
		suppressed: map[TerminalID]bool{},
		active:     map[TerminalID]bool{},
	}
}

// SetEnabled toggles the setting at runtime.
func (a *AutoContinue) SetEnabled(v bool) { a.enabled = v }

// Enabled reports the current setting.
func (a *AutoContinue) Enabled() bool { return a.enabled }

// Suppress marks t as currently ineligible for auto-continue (an injection
// is in flight, or the Keyword Interruptor just fired for this prompt
// occurrence).
func (a *AutoContinue) Suppress(t TerminalID) {
	a.mu.Lock()
	a.suppressed[t] = true
	a.mu.Unlock()
}

func (a *AutoContinue) Unsuppress(t TerminalID) {
	a.mu.Lock()
	delete(a.suppressed, t)
	a.mu.Unlock()
}

func (a *AutoContinue) IsSuppressed(t TerminalID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suppressed[t]
}

// tryBegin marks t active and reports true if no loop was already running
// for it; callers must call finish(t) once the loop ends.
func (a *AutoContinue) tryBegin(t TerminalID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[t] {
		return false
	}
	a.active[t] = true
	return true
}

func (a *AutoContinue) finish(t TerminalID) {
	a.mu.Lock()
	delete(a.active, t)
	a.mu.Unlock()
}

// RunPrompting drives the retry loop for a `prompting` verdict (or the bare
// proceed marker). checkVerdict is called before each retry to see whether
// the prompt has cleared; it must reflect the live Detector state for t.
// RunPrompting blocks until success, exhaustion, or ctx cancellation.
func (a *AutoContinue) RunPrompting(ctx context.Context, t TerminalID, checkVerdict func() (stillPrompting bool)) {
	if !a.enabled || a.IsSuppressed(t) {
		return
	}
	if !a.tryBegin(t) {
		return
	}
	defer a.finish(t)

	for attempt := 1; attempt <= AutoContinueMaxAttempts; attempt++ {
		if ctx.Err() != nil || a.IsSuppressed(t) {
			return
		}

		a.clock.Sleep(randBetween(autoContinueMinSendDelay, autoContinueMaxSendDelay))
		if err := a.writer.Write(t, []byte{0x0D}); err != nil {
			if a.log != nil {
				a.log.Warnf(fmt.Sprintf("auto-continue: write failed on terminal %d: %v", t, err))
			}
			return
		}
		if a.log != nil {
			a.log.Debugf(fmt.Sprintf("auto-continue: sent Return to terminal %d (attempt %d/%d)", t, attempt, AutoContinueMaxAttempts))
		}

		a.clock.Sleep(randBetween(autoContinueMinRecheck, autoContinueMaxRecheck))

		if !checkVerdict() {
			if a.log != nil {
				a.log.Successf(fmt.Sprintf("auto-continue: prompt cleared on terminal %d after %d attempt(s)", t, attempt))
			}
			return
		}
	}

	if a.log != nil {
		a.log.Errorf(fmt.Sprintf("auto-continue: exhausted %d attempts on terminal %d", AutoContinueMaxAttempts, t))
	}
}

// RunTrustAsked sends a single Return after a randomized 1-2s delay, per
// spec.md §4.7 ("For trust_asked, send a single Return ... and do not
// loop").
func (a *AutoContinue) RunTrustAsked(ctx context.Context, t TerminalID) {
	if !a.enabled || a.IsSuppressed(t) {
		return
	}
	if !a.tryBegin(t) {
		return
	}
	defer a.finish(t)
	a.clock.Sleep(randBetween(trustAskedMinDelay, trustAskedMaxDelay))
	if ctx.Err() != nil {
		return
	}
	if err := a.writer.Write(t, []byte{0x0D}); err != nil {
		if a.log != nil {
			a.log.Warnf(fmt.Sprintf("auto-continue: trust-asked write failed on terminal %d: %v", t, err))
		}
		return
	}
	if a.log != nil {
		a.log.Infof(fmt.Sprintf("auto-continue: confirmed trust prompt on terminal %d", t))
	}
}
