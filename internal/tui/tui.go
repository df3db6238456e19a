// Package tui provides a terminal UI for monitoring atari-inject using
// bubbletea: four terminal panes, a queue list, a countdown timer, and an
// Action Log.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TerminalView is a read-only snapshot of one tracked terminal.
type TerminalView struct {
	ID        int
	Name      string
	ColorTag  string
	Verdict   string
	Injecting bool
	Output    string
}

// QueueItemView is a read-only snapshot of one queued message.
type QueueItemView struct {
	ID        uint64
	Target    int
	Preview   string
	ExecuteAt time.Time
}

// TimerView is a read-only snapshot of the countdown timer.
type TimerView struct {
	Remaining time.Duration
	State     string
}

// Snapshot is everything the TUI needs to redraw a frame. Providers build
// one of these from whatever engine they wrap (in-process engine.Engine or
// a daemon.Client polling loop).
type Snapshot struct {
	Mode      string
	Terminals []TerminalView
	Queue     []QueueItemView
	Timer     TimerView
	ActionLog []string
}

// Provider supplies the latest Snapshot on demand. Modeled on the teacher's
// StatsGetter: the TUI polls it rather than owning engine internals.
type Provider interface {
	Snapshot() Snapshot
}

// TUI is the terminal UI for monitoring atari-inject.
type TUI struct {
	provider     Provider
	onPause      func()
	onResume     func()
	onQuit       func()
	onCancel     func(terminal int)
	pollInterval time.Duration
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI backed by the given Provider.
func New(provider Provider, opts ...Option) *TUI {
	t := &TUI{
		provider:     provider,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithOnPause sets the callback invoked when the user presses 'p'.
func WithOnPause(fn func()) Option {
	return func(t *TUI) { t.onPause = fn }
}

// WithOnResume sets the callback invoked when the user presses 'r'.
func WithOnResume(fn func()) Option {
	return func(t *TUI) { t.onResume = fn }
}

// WithOnQuit sets the callback invoked when the user presses 'q'.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) { t.onQuit = fn }
}

// WithOnCancel sets the callback invoked when the user cancels the
// in-flight injection on the focused terminal pane.
func WithOnCancel(fn func(terminal int)) Option {
	return func(t *TUI) { t.onCancel = fn }
}

// WithPollInterval overrides the default snapshot poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(t *TUI) { t.pollInterval = d }
}

// Run starts the TUI and blocks until it exits. If the environment is
// non-interactive (no TTY) or the terminal is too small, it falls back to
// simple line-by-line output.
func (t *TUI) Run() error {
	if !isTerminal() {
		return t.runSimple()
	}
	if terminalTooSmall() {
		return t.runSimple()
	}

	m := newModel(t.provider, t.pollInterval, t.onPause, t.onResume, t.onQuit, t.onCancel)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
