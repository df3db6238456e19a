package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// defaultPollInterval is how often the model re-fetches a Snapshot from
// its Provider when no more urgent event is pending.
const defaultPollInterval = 500 * time.Millisecond

// minWidth and minHeight are the smallest terminal dimensions the full
// layout renders legibly in; below this, TUI.Run falls back to runSimple.
const (
	minWidth  = 80
	minHeight = 24
)

// FocusedPane identifies which pane currently has keyboard focus.
type FocusedPane int

const (
	FocusTerminal0 FocusedPane = iota
	FocusTerminal1
	FocusTerminal2
	FocusTerminal3
	FocusQueue
	FocusActionLog
	focusedPaneCount
)

// PaneRect is a computed screen rectangle, used for layout math.
type PaneRect struct {
	X, Y, Width, Height int
}

// IsEmpty reports whether the rect has no usable area.
func (r PaneRect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// model is the bubbletea Elm-architecture model: Init/Update/View.
type model struct {
	provider     Provider
	pollInterval time.Duration

	snapshot Snapshot
	paused   bool

	width       int
	height      int
	focusedPane FocusedPane

	termRects [4]PaneRect
	queueRect PaneRect
	timerRect PaneRect
	logRect   PaneRect

	// spinners animate next to a terminal's verdict while it has an
	// in-flight injection.
	spinners [4]spinner.Model

	quitConfirmOpen bool

	onPause  func()
	onResume func()
	onQuit   func()
	onCancel func(terminal int)
}

// snapshotMsg carries a freshly polled Snapshot into Update.
type snapshotMsg Snapshot

// newModel constructs the initial model. The first frame renders whatever
// the Provider already has buffered; Init schedules the first poll.
func newModel(provider Provider, pollInterval time.Duration, onPause, onResume, onQuit func(), onCancel func(int)) model {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	m := model{
		provider:     provider,
		pollInterval: pollInterval,
		focusedPane:  FocusTerminal0,
		onPause:      onPause,
		onResume:     onResume,
		onQuit:       onQuit,
		onCancel:     onCancel,
	}
	for i := range m.spinners {
		s := spinner.New()
		s.Spinner = spinner.Dot
		m.spinners[i] = s
	}
	return m
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{pollSnapshot(m.provider), doTick(m.pollInterval)}
	for _, s := range m.spinners {
		cmds = append(cmds, s.Tick)
	}
	return tea.Batch(cmds...)
}

// cycleFocus moves focus to the next pane, wrapping around.
func (m *model) cycleFocus() {
	m.focusedPane = (m.focusedPane + 1) % focusedPaneCount
}

// cycleFocusBack moves focus to the previous pane, wrapping around.
func (m *model) cycleFocusBack() {
	m.focusedPane = (m.focusedPane - 1 + focusedPaneCount) % focusedPaneCount
}

// focusedTerminalIndex returns the terminal index the focused pane refers
// to, or -1 if a non-terminal pane is focused.
func (m model) focusedTerminalIndex() int {
	switch m.focusedPane {
	case FocusTerminal0, FocusTerminal1, FocusTerminal2, FocusTerminal3:
		return int(m.focusedPane)
	default:
		return -1
	}
}

// updatePaneSizes recomputes the pane rectangles for the current
// terminal width/height: a 2x2 grid of terminal panes on the left two
// thirds of the screen, with queue/timer/action-log stacked on the right.
func (m *model) updatePaneSizes() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	leftWidth := m.width * 2 / 3
	rightWidth := m.width - leftWidth
	rightX := leftWidth

	termW := leftWidth / 2
	termH := m.height / 2

	m.termRects[0] = PaneRect{X: 0, Y: 0, Width: termW, Height: termH}
	m.termRects[1] = PaneRect{X: termW, Y: 0, Width: leftWidth - termW, Height: termH}
	m.termRects[2] = PaneRect{X: 0, Y: termH, Width: termW, Height: m.height - termH}
	m.termRects[3] = PaneRect{X: termW, Y: termH, Width: leftWidth - termW, Height: m.height - termH}

	timerHeight := 3
	queueHeight := (m.height - timerHeight) / 2
	logHeight := m.height - timerHeight - queueHeight

	m.timerRect = PaneRect{X: rightX, Y: 0, Width: rightWidth, Height: timerHeight}
	m.queueRect = PaneRect{X: rightX, Y: timerHeight, Width: rightWidth, Height: queueHeight}
	m.logRect = PaneRect{X: rightX, Y: timerHeight + queueHeight, Width: rightWidth, Height: logHeight}
}
