package engine

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/npratt/atari/internal/metrics"
)

// Level is an Action Log entry's severity.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// MaxActionLogEntries bounds the ring; on overflow the oldest are trimmed
// down to ActionLogTrimTo (spec.md §4.10).
const (
	MaxActionLogEntries = 10000
	ActionLogTrimTo     = 5000
)

// ActionLogEntry is one append-only record.
type ActionLogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
}

// ActionLog is an append-only, bounded ring of engine decisions, mirrored
// into a structured slog.Logger so operators get both an in-process,
// UI/test-queryable ring and conventional log output without duplicating
// formatting logic (see SPEC_FULL.md AMBIENT STACK).
type ActionLog struct {
	mu      sync.Mutex
	entries []ActionLogEntry
	slog    *slog.Logger
}

// NewActionLog creates an empty log. A nil logger disables slog mirroring.
func NewActionLog(logger *slog.Logger) *ActionLog {
	return &ActionLog{slog: logger}
}

// Append adds an entry, trimming the ring on overflow, and mirrors it to
// the configured slog.Logger at a matching level.
func (a *ActionLog) Append(level Level, message string) {
	a.mu.Lock()
	a.entries = append(a.entries, ActionLogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if len(a.entries) > MaxActionLogEntries {
		a.entries = append([]ActionLogEntry{}, a.entries[len(a.entries)-ActionLogTrimTo:]...)
		metrics.ActionLogOverflow()
	}
	a.mu.Unlock()

	if a.slog == nil {
		return
	}
	switch level {
	case LevelDebug:
		a.slog.Debug(message)
	case LevelWarning:
		a.slog.Warn(message)
	case LevelError:
		a.slog.Error(message)
	default:
		a.slog.Info(message)
	}
}

// Infof, Successf, Warnf, Errorf, Debugf are convenience wrappers matching
// the level names in spec.md §4.10.
func (a *ActionLog) Infof(msg string)    { a.Append(LevelInfo, msg) }
func (a *ActionLog) Successf(msg string) { a.Append(LevelSuccess, msg) }
func (a *ActionLog) Warnf(msg string)    { a.Append(LevelWarning, msg) }
func (a *ActionLog) Errorf(msg string)   { a.Append(LevelError, msg) }
func (a *ActionLog) Debugf(msg string)   { a.Append(LevelDebug, msg) }

// Last returns (a copy of) the most recent n entries, for lazy paging.
func (a *ActionLog) Last(n int) []ActionLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 || n > len(a.entries) {
		n = len(a.entries)
	}
	out := make([]ActionLogEntry, n)
	copy(out, a.entries[len(a.entries)-n:])
	return out
}

// Search returns entries whose Message contains substr (case-insensitive).
func (a *ActionLog) Search(substr string) []ActionLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	needle := strings.ToLower(substr)
	var out []ActionLogEntry
	for _, e := range a.entries {
		if strings.Contains(strings.ToLower(e.Message), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the current number of retained entries.
func (a *ActionLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
