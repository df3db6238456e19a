package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds the tunables spec.md §5 calls out as "configurable;
// defaults are normative for tests".
type Config struct {
	StabilityThreshold time.Duration
	AutoContinueEnabled bool
}

// DefaultConfig returns spec.md's normative defaults.
func DefaultConfig() Config {
	return Config{
		StabilityThreshold:  DefaultStabilityThreshold,
		AutoContinueEnabled: true,
	}
}

// Engine is the top-level wiring for the Injection & Session-Control
// Engine: it owns the Terminals, Queue, Timer, Usage-Limit state, Mode,
// Scheduler, and Action Log described in spec.md §3, and dispatches PTY
// byte appends into the Detector and its downstream consumers. Modeled on
// controller.Controller's options-pattern constructor.
type Engine struct {
	cfg Config

	mu   sync.Mutex
	mode Mode

	Terminals *TerminalRegistry
	Queue     *Queue
	Keywords  *KeywordStore
	Log       *ActionLog

	stability    *StabilityTracker
	timer        *Timer
	usageLimit   *UsageLimitSync
	autoContinue *AutoContinue
	interruptor  *KeywordInterruptor
	scheduler    *Scheduler

	writer         PTYWriter
	clock          Clock
	logger         *slog.Logger
	queuePersister QueuePersister

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	tasks  chan func()
}

// EngineOption configures an Engine at construction, mirroring
// controller.ControllerOption.
type EngineOption func(*Engine)

// WithClock overrides the production clock; used in tests.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithSlogLogger sets the structured logger the Action Log mirrors into.
func WithSlogLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithQueuePersister sets the backing store for the Message Queue.
func WithQueuePersister(p QueuePersister) EngineOption {
	return func(e *Engine) { e.queuePersister = p }
}

// New creates an Engine writing into terminals through w, with the given
// config. Terminals must be opened separately via OpenTerminal.
func New(w PTYWriter, cfg Config, opts ...EngineOption) *Engine {
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = DefaultStabilityThreshold
	}

	e := &Engine{
		cfg:       cfg,
		mode:      ModeIdle,
		Terminals: NewTerminalRegistry(),
		Keywords:  NewKeywordStore(),
		writer:    w,
		clock:     RealClock{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.Log = NewActionLog(e.logger)
	e.Queue = NewQueue(e.queuePersister, e.Log)
	e.stability = NewStabilityTracker(cfg.StabilityThreshold)
	e.timer = NewTimer()
	e.usageLimit = NewUsageLimitSync(e.timer)
	e.autoContinue = NewAutoContinue(w, e.clock, e.Log, cfg.AutoContinueEnabled)
	typingForKeywords := NewTypingExecutor(w, e.clock, e.Log)
	e.interruptor = NewKeywordInterruptor(w, e.clock, e.Log, typingForKeywords, e.autoContinue)
	e.scheduler = NewScheduler(e.Terminals, e.Queue, e.stability, w, e.clock, e.Log, e.Mode)

	e.timer.OnTick(func(TimerValue) {})
	e.timer.OnExpire(func() { e.post(e.onTimerExpired) })

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.tasks = make(chan func(), 64)
	e.wg.Add(1)
	go e.loop()
	return e
}

// loop is the engine's single task (spec.md §5: "single-threaded
// cooperative ... a single writer to shared state"). Every mutation or
// read of Terminal/Queue/Scheduler state that isn't already independently
// synchronized runs here, reached via dispatch or post from whichever
// goroutine triggered it (a PTY reader, the Timer's ticking goroutine, a
// scheduled wake-up, or a CLI/daemon caller).
func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case task := <-e.tasks:
			task()
		}
	}
}

// dispatch runs fn on the engine's single task and blocks until it
// completes. Safe to call from any goroutine.
func (e *Engine) dispatch(fn func()) {
	done := make(chan struct{})
	select {
	case e.tasks <- func() { fn(); close(done) }:
	case <-e.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-e.ctx.Done():
	}
}

// post runs fn on the engine's single task without waiting for it to
// finish, for callers that are themselves throwaway goroutines with
// nothing to synchronize on (the Timer's expiry callback, scheduled
// wake-ups).
func (e *Engine) post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.ctx.Done():
	}
}

// Mode returns the current Engine Mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) setMode(m Mode) {
	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
}

// OpenTerminal registers a new terminal and returns it.
func (e *Engine) OpenTerminal(id TerminalID, name, colorTag string) (*Terminal, error) {
	var term *Terminal
	var err error
	e.dispatch(func() { term, err = e.Terminals.Open(id, name, colorTag) })
	return term, err
}

// CloseTerminal removes a terminal. Per spec.md §9(c): if it was
// mid-injection, the executor is cancelled, the message is left at the
// queue head with its original target, and an info-level Action Log entry
// is appended.
func (e *Engine) CloseTerminal(id TerminalID) {
	e.dispatch(func() {
		if term, ok := e.Terminals.Get(id); ok && term.Injecting {
			e.scheduler.CancelInjection(id)
			e.Queue.MarkPending(term.InFlightID)
			e.Log.Infof(fmt.Sprintf("terminal %d closed mid-injection; message %d left at queue head", id, term.InFlightID))
		}
		e.Terminals.Close(id)
	})
}

// AppendOutput feeds newly-received PTY bytes for terminal id through the
// Pattern Detector and all downstream consumers (Stability Tracker,
// Auto-Continue, Keyword Interruptor, Usage-Limit Synchronizer), then runs
// a Scheduler pass. This is the engine's single entry point for the "PTY
// bytes" arrow in spec.md §2's control-flow diagram. Every terminal has its
// own PTY-reader goroutine calling this concurrently, so the body runs on
// the engine's single task (spec.md §5) rather than in the caller.
func (e *Engine) AppendOutput(id TerminalID, b []byte) {
	e.dispatch(func() { e.appendOutput(id, b) })
}

func (e *Engine) appendOutput(id TerminalID, b []byte) {
	term, ok := e.Terminals.Get(id)
	if !ok {
		return
	}

	prevVerdict := term.Verdict.Verdict
	verdict := term.Output.Append(b)
	term.Verdict = verdict
	e.stability.OnVerdictChange(term, verdict)

	if verdict.Verdict != VerdictPrompting {
		e.interruptor.Rearm(id)
	}
	if prevVerdict == VerdictPrompting && verdict.Verdict != VerdictPrompting {
		e.autoContinue.Unsuppress(id)
	}

	switch verdict.Verdict {
	case VerdictUsageLimitAnnounced:
		e.handleUsageLimitAnnounced(verdict.ResetTime)
	case VerdictTrustAsked:
		go e.autoContinue.RunTrustAsked(e.ctx, id)
	case VerdictPrompting:
		e.handlePrompting(id, term)
	default:
		if term.Output.IsProceedPrompt() {
			e.handlePrompting(id, term)
		}
	}

	e.runSchedulerPass()
}

func (e *Engine) handlePrompting(id TerminalID, term *Terminal) {
	if e.interruptor.TryFire(e.ctx, id, term.Output, e.Keywords) {
		return
	}
	if term.Injecting {
		return
	}
	// checkVerdict is polled from AutoContinue's own retry goroutine between
	// sleeps, so it must re-enter the engine's single task rather than read
	// Terminal/OutputWindow fields directly from another goroutine.
	go e.autoContinue.RunPrompting(e.ctx, id, func() bool {
		var stillPrompting bool
		e.dispatch(func() {
			t, ok := e.Terminals.Get(id)
			if !ok {
				stillPrompting = false
				return
			}
			stillPrompting = t.Verdict.Verdict == VerdictPrompting || t.Output.IsProceedPrompt()
		})
		return stillPrompting
	})
}

func (e *Engine) handleUsageLimitAnnounced(reset string) {
	handled, err := e.usageLimit.OnResetAnnounced(reset)
	if err != nil {
		e.Log.Errorf(fmt.Sprintf("usage-limit sync: %v", err))
		return
	}
	if !handled {
		return
	}

	e.setMode(ModeWaitingForUsageLimit)
	e.scheduler.PauseInjection()
	e.Log.Infof(fmt.Sprintf("usage limit announced, reset=%s; entering waiting-for-usage-limit mode", reset))
}

// onTimerExpired is posted onto the engine's single task by the Timer's
// OnExpire callback (registered in New), so it runs serialized with every
// other consumer of Terminal/Queue/Scheduler state even though the Timer
// itself ticks on its own goroutine, per spec.md §4.5's "fire the
// Scheduler" requirement.
func (e *Engine) onTimerExpired() {
	if e.Mode() == ModeWaitingForUsageLimit {
		e.usageLimit.OnTimerNaturallyExpired()
		e.setMode(ModeIdle)
		e.scheduler.ResumeInjection()

		// spec.md §9(a): scrub each terminal's detector window when
		// transitioning out of waiting mode, so lingering usage-limit
		// text doesn't immediately re-trigger the synchronizer.
		for _, term := range e.Terminals.All() {
			term.Output = NewOutputWindow()
			term.Verdict = DetectorVerdict{Verdict: VerdictIdle}
		}

		if len(e.Terminals.All()) > 0 {
			target := e.Terminals.All()[0].ID
			if _, err := e.Queue.UnshiftContinue(target); err != nil {
				e.Log.Errorf(fmt.Sprintf("unshift continue message: %v", err))
			}
		}
	}
	e.runSchedulerPass()
}

// Timer exposes the Timer for CLI/daemon command handlers. Manual edits
// must call MarkManualTimerEdit afterward.
func (e *Engine) Timer() *Timer { return e.timer }

// TerminalSnapshot is a point-in-time copy of a Terminal's fields for
// read-only consumers outside the engine's single task (the daemon's status
// handler, the TUI's poller). Terminal itself is mutated only on the
// engine's task (see AppendOutput), so callers must go through
// TerminalSnapshots rather than reading *Terminal fields directly.
type TerminalSnapshot struct {
	ID        TerminalID
	Name      string
	ColorTag  string
	Verdict   DetectorVerdict
	Injecting bool
	IdleSince time.Time
	Output    []byte
}

// TerminalSnapshots returns a race-free copy of every open terminal's state,
// ordered as TerminalRegistry.All reports it.
func (e *Engine) TerminalSnapshots() []TerminalSnapshot {
	var snaps []TerminalSnapshot
	e.dispatch(func() {
		all := e.Terminals.All()
		snaps = make([]TerminalSnapshot, len(all))
		for i, t := range all {
			snaps[i] = TerminalSnapshot{
				ID:        t.ID,
				Name:      t.Name,
				ColorTag:  t.ColorTag,
				Verdict:   t.Verdict,
				Injecting: t.Injecting,
				IdleSince: t.IdleSince,
				Output:    append([]byte(nil), t.Output.Bytes()...),
			}
		}
	})
	return snaps
}

// MarkManualTimerEdit disables usage-limit auto-sync until a fresh reset is
// observed, per spec.md §4.6.
func (e *Engine) MarkManualTimerEdit() { e.usageLimit.DisableAutoSync() }

// Pause enters ModePaused: suppresses new injection starts and freezes
// in-flight Typing Executor progress, preserving the queue and timer
// (spec.md §3).
func (e *Engine) Pause() {
	e.dispatch(func() {
		e.setMode(ModePaused)
		e.scheduler.PauseInjection()
		e.Log.Infof("engine paused")
	})
}

// Resume leaves ModePaused, restoring whatever mode is implied by current
// state (waiting-for-usage-limit if the Timer is still counting down for
// that purpose, else idle), and unfreezes in-flight executors.
func (e *Engine) Resume() {
	e.dispatch(func() {
		if e.Mode() != ModePaused {
			return
		}
		_, state, _ := e.timer.Value()
		if state == TimerRunning && e.usageLimit.LastProcessed() != "" {
			e.setMode(ModeWaitingForUsageLimit)
		} else {
			e.setMode(ModeIdle)
		}
		e.scheduler.ResumeInjection()
		e.Log.Infof("engine resumed")
		e.runSchedulerPass()
	})
}

// CancelInjection cancels the in-flight message for terminal t, if any.
func (e *Engine) CancelInjection(t TerminalID) {
	e.dispatch(func() { e.scheduler.CancelInjection(t) })
}

// ManualInject bypasses the Stability Tracker for terminal t (spec.md
// §4.3 "Manual inject").
func (e *Engine) ManualInject(t TerminalID) error {
	var err error
	e.dispatch(func() { err = e.scheduler.ManualInject(t, e.clock.Now()) })
	return err
}

// ForceReset implements spec.md §4.3's "Force reset" command.
func (e *Engine) ForceReset() {
	e.dispatch(func() {
		e.scheduler.ForceReset()
		e.runSchedulerPass()
	})
}

// runSchedulerPass runs one Scheduler pass and, if it reports pending work
// with no currently-eligible terminal, schedules a wake-up timer to retry.
// It also drains any pending completions first, so a completion from the
// previous pass is reflected before deciding what else to start.
func (e *Engine) runSchedulerPass() {
	e.drainCompletions()

	wait := e.scheduler.Pass(e.clock.Now())
	if wait > 0 {
		e.scheduleWakeup(wait)
	}

	if e.hasInFlight() {
		e.setMode(ModeInjecting)
	} else if e.Mode() == ModeInjecting {
		e.setMode(ModeIdle)
	}
}

func (e *Engine) hasInFlight() bool {
	for _, t := range e.Terminals.All() {
		if t.Injecting {
			return true
		}
	}
	return false
}

func (e *Engine) drainCompletions() {
	for {
		select {
		case c := <-e.scheduler.Completions():
			e.scheduler.HandleCompletion(c)
		default:
			return
		}
	}
}

func (e *Engine) scheduleWakeup(d time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.ctx.Done():
			return
		case <-e.clock.After(d):
			e.post(e.runSchedulerPass)
		}
	}()
}

// Close tears down background goroutines (the Timer's ticking goroutine,
// any pending wake-up timers, and the engine's single task loop).
func (e *Engine) Close() {
	e.cancel()
	e.timer.Close()
	e.wg.Wait()
}
