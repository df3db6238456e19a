package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// tickMsg signals that it's time to poll the Provider again.
type tickMsg time.Time

// pollSnapshot creates a command that fetches one Snapshot from provider.
func pollSnapshot(provider Provider) tea.Cmd {
	return func() tea.Msg {
		if provider == nil {
			return snapshotMsg{}
		}
		return snapshotMsg(provider.Snapshot())
	}
}

// doTick creates a command that fires after interval.
func doTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updatePaneSizes()
		return m, nil

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		return m, nil

	case tickMsg:
		return m, tea.Batch(pollSnapshot(m.provider), doTick(m.pollInterval))

	case spinner.TickMsg:
		cmds := make([]tea.Cmd, 0, len(m.spinners))
		for i := range m.spinners {
			var cmd tea.Cmd
			m.spinners[i], cmd = m.spinners[i].Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// handleKey dispatches a key press. Matches the teacher's single-rune
// global bindings rather than a key-binding table, since the pane set is
// fixed and small.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitConfirmOpen {
		switch msg.String() {
		case "y", "Y":
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		default:
			m.quitConfirmOpen = false
			return m, nil
		}
	}

	switch msg.String() {
	case "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "q":
		m.quitConfirmOpen = true
		return m, nil

	case "tab":
		m.cycleFocus()
		return m, nil

	case "shift+tab":
		m.cycleFocusBack()
		return m, nil

	case "p":
		m.paused = true
		if m.onPause != nil {
			m.onPause()
		}
		return m, nil

	case "r":
		m.paused = false
		if m.onResume != nil {
			m.onResume()
		}
		return m, nil

	case "c":
		if idx := m.focusedTerminalIndex(); idx >= 0 && m.onCancel != nil {
			m.onCancel(idx)
		}
		return m, nil
	}

	return m, nil
}
