package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/npratt/atari/internal/metrics"
)

// completion is what a Typing Executor goroutine sends back to the
// Scheduler's single task on finishing, per spec.md §4.3 ("notify the
// Scheduler via a completion event"). It is never mutated by the engine
// task directly; it only carries data across the goroutine boundary.
type completion struct {
	target    TerminalID
	messageID MessageID
	completed bool // false on cancel/pause/error, true on success
}

// Scheduler is the core dispatcher from spec.md §4.3. It is
// single-threaded/cooperative: all public methods except the completion
// channel consumer are expected to be called from one goroutine (the
// engine's event loop).
type Scheduler struct {
	terminals *TerminalRegistry
	queue     *Queue
	stability *StabilityTracker
	writer    PTYWriter
	clock     Clock
	log       *ActionLog
	modeFn    func() Mode

	mu                   sync.Mutex
	schedulingInProgress bool
	executors            map[TerminalID]*TypingExecutor
	cancels              map[TerminalID]context.CancelFunc

	completions chan completion
}

// NewScheduler wires the Scheduler to its collaborators. modeFn must return
// the current Engine Mode (owned by Engine, a process-wide singleton per
// spec.md §3).
func NewScheduler(terminals *TerminalRegistry, queue *Queue, stability *StabilityTracker, writer PTYWriter, clock Clock, log *ActionLog, modeFn func() Mode) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		terminals:   terminals,
		queue:       queue,
		stability:   stability,
		writer:      writer,
		clock:       clock,
		log:         log,
		modeFn:      modeFn,
		executors:   map[TerminalID]*TypingExecutor{},
		cancels:     map[TerminalID]context.CancelFunc{},
		completions: make(chan completion, MaxTerminals),
	}
}

// Completions exposes the channel the engine's event loop selects on to
// process injection completions.
func (s *Scheduler) Completions() <-chan completion { return s.completions }

// Busy reports whether terminal t currently has an in-flight message.
func (s *Scheduler) Busy(t TerminalID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.executors[t]
	return ok
}

// Pass runs one scheduling pass, implementing spec.md §4.3's algorithm
// steps 1-6. It returns the duration until the next recommended wake-up (0
// if a wake-up isn't needed, because either nothing is pending or
// everything eligible was just started).
func (s *Scheduler) Pass(now time.Time) time.Duration {
	metrics.SchedulerPass()
	s.mu.Lock()
	if s.schedulingInProgress {
		s.mu.Unlock()
		return 0
	}
	s.schedulingInProgress = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.schedulingInProgress = false
		s.mu.Unlock()
	}()

	mode := s.modeFn()
	if mode == ModePaused || mode == ModeWaitingForUsageLimit {
		return 0
	}

	var soonest time.Duration
	haveSoonest := false
	started := false

	for _, t := range s.terminals.All() {
		if s.Busy(t.ID) {
			continue
		}
		if !s.stability.IsStableAndReady(t, mode) {
			if remaining := s.stability.RemainingUntilStable(t); remaining > 0 {
				if !haveSoonest || remaining < soonest {
					soonest = remaining
					haveSoonest = true
				}
			}
			continue
		}

		msg, ok := s.queue.NextEligible(t.ID, now)
		if !ok {
			if at, found := s.queue.EarliestFutureExecuteAt(t.ID, now); found {
				d := at.Sub(now)
				if !haveSoonest || d < soonest {
					soonest = d
					haveSoonest = true
				}
			}
			continue
		}

		s.start(t.ID, msg)
		started = true
	}

	if started {
		return 0
	}
	if haveSoonest {
		if soonest < 0 {
			soonest = 0
		}
		return soonest
	}
	return 0
}

// start launches a Typing Executor for (msg, target), marking the terminal
// busy and the message in-flight. Must be called with the terminal known
// not already busy (caller's responsibility, per the single-task model).
func (s *Scheduler) start(target TerminalID, msg Message) {
	term, ok := s.terminals.Get(target)
	if !ok {
		return
	}

	executor := NewTypingExecutor(s.writer, s.clock, s.log)
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.executors[target] = executor
	s.cancels[target] = cancel
	s.mu.Unlock()

	term.Injecting = true
	term.InFlightID = msg.ID
	s.queue.MarkInFlight(msg.ID)

	metrics.InjectionStarted()
	if s.log != nil {
		s.log.Infof(fmt.Sprintf("scheduler: starting injection of message %d into terminal %d", msg.ID, target))
	}

	msgCopy := msg
	go func() {
		executor.Run(ctx, target, &msgCopy, func(completed bool) {
			s.completions <- completion{target: target, messageID: msgCopy.ID, completed: completed}
		})
	}()
}

// HandleCompletion processes a completion event from the channel returned
// by Completions; it must be called from the engine's single task. On
// success it marks the message complete (moves it to history). On
// cancel/failure it clears the in-flight flag, leaving the message at the
// head of its target's queue for retry (spec.md §7 TransientWrite; §9(c)).
func (s *Scheduler) HandleCompletion(c completion) {
	s.mu.Lock()
	delete(s.executors, c.target)
	delete(s.cancels, c.target)
	s.mu.Unlock()

	if term, ok := s.terminals.Get(c.target); ok {
		term.Injecting = false
		term.InFlightID = 0
	}

	if c.completed {
		metrics.InjectionCompleted()
		if err := s.queue.Complete(c.messageID); err != nil && s.log != nil {
			s.log.Errorf(fmt.Sprintf("scheduler: completing message %d failed: %v", c.messageID, err))
		} else if s.log != nil {
			s.log.Successf(fmt.Sprintf("scheduler: message %d delivered to terminal %d", c.messageID, c.target))
		}
		return
	}

	s.queue.MarkPending(c.messageID)
	if s.log != nil {
		s.log.Infof(fmt.Sprintf("scheduler: injection of message %d into terminal %d did not complete; left at queue head", c.messageID, c.target))
	}
}

// PauseInjection freezes in-flight progress on every busy terminal, per
// spec.md §3 ("paused ... freezes in-flight Typing Executor progress but
// preserves queue and timer").
func (s *Scheduler) PauseInjection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.executors {
		e.Pause()
	}
}

// ResumeInjection un-freezes in-flight Typing Executors.
func (s *Scheduler) ResumeInjection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.executors {
		e.Resume()
	}
}

// CancelInjection cancels the in-flight executor for t, if any.
func (s *Scheduler) CancelInjection(t TerminalID) {
	s.mu.Lock()
	e, ok := s.executors[t]
	cancel, hasCancel := s.cancels[t]
	s.mu.Unlock()
	if ok {
		e.Cancel()
		metrics.InjectionCancelled()
	}
	if hasCancel {
		cancel()
	}
}

// ManualInject bypasses the Stability Tracker and executes the head of
// terminal t's queue immediately, still respecting paused mode (spec.md
// §4.3 "Manual inject"). It returns ErrInvalidInput if t is busy, paused,
// or has no eligible message.
func (s *Scheduler) ManualInject(t TerminalID, now time.Time) error {
	if s.modeFn() == ModePaused {
		return fmt.Errorf("manual inject: %w", ErrInvalidInput)
	}
	if s.Busy(t) {
		return fmt.Errorf("manual inject: %w", ErrInvalidInput)
	}
	msg, ok := s.queue.NextEligible(t, now)
	if !ok {
		return fmt.Errorf("manual inject: %w", ErrInvalidInput)
	}
	s.start(t, msg)
	return nil
}

// ForceReset implements spec.md §4.3's "Force reset": it clears all
// in-flight markers, cancels active Typing Executors, and the caller should
// follow this with a Pass to re-evaluate scheduling. It also recovers from
// StaleState (spec.md §7): if a terminal's Injecting flag is set but no
// executor is tracked, or vice versa, both are reconciled.
func (s *Scheduler) ForceReset() {
	s.mu.Lock()
	targets := make([]TerminalID, 0, len(s.executors))
	for t := range s.executors {
		targets = append(targets, t)
	}
	cancels := make(map[TerminalID]context.CancelFunc, len(s.cancels))
	for t, c := range s.cancels {
		cancels[t] = c
	}
	s.executors = map[TerminalID]*TypingExecutor{}
	s.cancels = map[TerminalID]context.CancelFunc{}
	s.mu.Unlock()

	for _, t := range targets {
		if c, ok := cancels[t]; ok {
			c()
		}
	}

	for _, term := range s.terminals.All() {
		if term.Injecting {
			s.queue.MarkPending(term.InFlightID)
			term.Injecting = false
			term.InFlightID = 0
		}
	}

	if s.log != nil {
		s.log.Infof("scheduler: force reset cleared all in-flight injection state")
	}
}
