package engine

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// TypingCharDelay is the per-character typing pace (spec.md §4.4).
const TypingCharDelay = 50 * time.Millisecond

// escapeMarkers maps a marker substring to its translated control byte,
// per spec.md §4.4's table.
var escapeMarkers = []struct {
	marker string
	b      byte
}{
	{"^C", 0x03},
	{"^Z", 0x1A},
	{"^D", 0x04},
	{"\x1b", 0x1B},
	{"\r", 0x0D},
	{"\t", 0x09},
}

// ContainsControlEscape reports whether text contains any recognized
// control-escape marker.
func ContainsControlEscape(text string) bool {
	for _, m := range escapeMarkers {
		if strings.Contains(text, m.marker) {
			return true
		}
	}
	return false
}

// translateEscapes walks text left to right, translating recognized
// markers to their control byte and passing through all other bytes
// unchanged. Matching is greedy and leftmost: at each position the first
// marker (in table order) that matches is consumed atomically.
func translateEscapes(text string) []byte {
	out := make([]byte, 0, len(text))
	i := 0
	for i < len(text) {
		matched := false
		for _, m := range escapeMarkers {
			ml := len(m.marker)
			if i+ml <= len(text) && text[i:i+ml] == m.marker {
				out = append(out, m.b)
				i += ml
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, text[i])
			i++
		}
	}
	return out
}

// TypingExecutor writes one message's bytes into a target terminal with
// inter-key pacing, honoring pause/resume mid-message and cancellation, per
// spec.md §4.4. Pause/Resume/Cancel are called from the engine's task while
// Run executes on its own goroutine, so the flags are atomic.
type TypingExecutor struct {
	writer PTYWriter
	clock  Clock
	log    *ActionLog

	paused   atomic.Bool
	canceled atomic.Bool
	index    atomic.Int64 // next rune index to type, for plain-text mode
}

// NewTypingExecutor creates an Executor writing through w, using clock for
// pacing (RealClock in production) and logging to log.
func NewTypingExecutor(w PTYWriter, clock Clock, log *ActionLog) *TypingExecutor {
	if clock == nil {
		clock = RealClock{}
	}
	return &TypingExecutor{writer: w, clock: clock, log: log}
}

// Pause requests the in-progress Run to halt at the next pacing boundary,
// remembering its index.
func (e *TypingExecutor) Pause() { e.paused.Store(true) }

// Resume clears the pause flag; Run (if blocked on it) continues from the
// remembered index.
func (e *TypingExecutor) Resume() { e.paused.Store(false) }

// Cancel requests the in-progress Run to stop immediately and discard
// remaining content, without sending Return.
func (e *TypingExecutor) Cancel() { e.canceled.Store(true) }

// ResumeIndex returns the rune index a paused plain-text Run should resume
// from.
func (e *TypingExecutor) ResumeIndex() int { return int(e.index.Load()) }

// Run types msg.ProcessedText into target and invokes done(completedOK)
// when finished, cancelled, or on a write error. For control-escape text it
// sends the translated bytes with TypingControlByteGap spacing and returns
// without Return. For plain text it types one character at a time, then
// sends Return after a randomized pause.
//
// Run blocks the calling goroutine for the duration of typing; callers run
// it in its own goroutine per (message, terminal) pair, per spec.md §4.3
// ("Start all chosen pairs in parallel").
func (e *TypingExecutor) Run(ctx context.Context, target TerminalID, msg *Message, done func(completed bool)) {
	e.paused.Store(false)
	e.canceled.Store(false)
	e.index.Store(int64(msg.TypedIndex))

	if ContainsControlEscape(msg.ProcessedText) {
		e.runControlEscape(ctx, target, msg, done)
		return
	}
	e.runPlainText(ctx, target, msg, done)
}

const (
	// TypingControlByteGap is the inter-byte spacing for control-escape
	// sequences (spec.md §4.4).
	TypingControlByteGap = 10 * time.Millisecond
	minReturnDelay        = 150 * time.Millisecond
	maxReturnDelay        = 300 * time.Millisecond
	minPostReturnDelay    = 500 * time.Millisecond
	maxPostReturnDelay    = 800 * time.Millisecond
)

func (e *TypingExecutor) runControlEscape(ctx context.Context, target TerminalID, msg *Message, done func(bool)) {
	bytes := translateEscapes(msg.ProcessedText)
	for i, b := range bytes {
		if e.canceled.Load() || ctx.Err() != nil {
			done(false)
			return
		}
		if e.waitWhilePaused(ctx) {
			done(false)
			return
		}
		if err := e.writer.Write(target, []byte{b}); err != nil {
			e.logWarn("typing: write failed", target, err)
			done(false)
			return
		}
		if i < len(bytes)-1 {
			if e.sleepInterruptible(ctx, TypingControlByteGap) {
				done(false)
				return
			}
		}
	}
	done(true)
}

func (e *TypingExecutor) runPlainText(ctx context.Context, target TerminalID, msg *Message, done func(bool)) {
	runes := []rune(msg.ProcessedText)
	for i := int(e.index.Load()); i < len(runes); i++ {
		if e.canceled.Load() || ctx.Err() != nil {
			msg.TypedIndex = i
			done(false)
			return
		}
		if e.waitWhilePaused(ctx) {
			msg.TypedIndex = int(e.index.Load())
			done(false)
			return
		}
		e.index.Store(int64(i))
		if err := e.writer.Write(target, []byte(string(runes[i]))); err != nil {
			e.logWarn("typing: write failed", target, err)
			msg.TypedIndex = i
			done(false)
			return
		}
		if i < len(runes)-1 {
			if e.sleepInterruptible(ctx, TypingCharDelay) {
				msg.TypedIndex = i + 1
				done(false)
				return
			}
		}
	}

	if e.sleepInterruptible(ctx, randBetween(minReturnDelay, maxReturnDelay)) {
		done(false)
		return
	}
	if e.canceled.Load() {
		done(false)
		return
	}
	if err := e.writer.Write(target, []byte{0x0D}); err != nil {
		e.logWarn("typing: return write failed", target, err)
		done(false)
		return
	}
	if e.sleepInterruptible(ctx, randBetween(minPostReturnDelay, maxPostReturnDelay)) {
		done(true) // bytes and Return already sent; treat as complete
		return
	}
	done(true)
}

// waitWhilePaused blocks while the pause flag is set, polling at a short
// interval, and returns true if cancellation/context-done occurred while
// waiting.
func (e *TypingExecutor) waitWhilePaused(ctx context.Context) bool {
	for e.paused.Load() {
		if e.canceled.Load() || ctx.Err() != nil {
			return true
		}
		e.clock.Sleep(20 * time.Millisecond)
	}
	return false
}

// sleepInterruptible sleeps for d, checking for cancellation/pause at
// fine-grained intervals so Pause/Cancel take effect promptly, per spec.md
// §5 ("the only suspension points").
func (e *TypingExecutor) sleepInterruptible(ctx context.Context, d time.Duration) (interrupted bool) {
	const step = 10 * time.Millisecond
	remaining := d
	for remaining > 0 {
		if e.canceled.Load() || ctx.Err() != nil {
			return true
		}
		if e.paused.Load() {
			if e.waitWhilePaused(ctx) {
				return true
			}
		}
		sleep := step
		if remaining < sleep {
			sleep = remaining
		}
		e.clock.Sleep(sleep)
		remaining -= sleep
	}
	return e.canceled.Load() || ctx.Err() != nil
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

func (e *TypingExecutor) logWarn(msg string, target TerminalID, err error) {
	if e.log == nil {
		return
	}
	e.log.Append(LevelWarning, msg+": terminal="+strconv.Itoa(int(target))+" err="+err.Error())
}
