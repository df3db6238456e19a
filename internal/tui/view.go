package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	if m.quitConfirmOpen {
		return m.renderQuitConfirm()
	}

	termPanes := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		termPanes = append(termPanes, m.renderTerminalPane(i))
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, termPanes[0], termPanes[1]),
		lipgloss.JoinHorizontal(lipgloss.Top, termPanes[2], termPanes[3]),
	)

	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTimerPane(),
		m.renderQueuePane(),
		m.renderActionLogPane(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m model) paneStyle(focused bool) lipgloss.Style {
	if focused {
		return styles.FocusedBorder
	}
	return styles.UnfocusedBorder
}

func (m model) renderTerminalPane(idx int) string {
	rect := m.termRects[idx]
	focused := m.focusedTerminalIndex() == idx

	var term TerminalView
	var found bool
	for _, t := range m.snapshot.Terminals {
		if t.ID == idx {
			term, found = t, true
			break
		}
	}

	innerW := rect.Width - 2
	innerH := rect.Height - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	title := fmt.Sprintf("terminal %d", idx)
	if found {
		title = fmt.Sprintf("%s [%s]", term.Name, verdictLabel(term.Verdict, term.Injecting))
		if term.Injecting {
			title = m.spinners[idx].View() + " " + title
		}
	}
	if !found {
		title += " (closed)"
	}

	body := ""
	if found {
		body = tailLines(term.Output, innerH-1)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, styles.PaneTitle.Render(title), body)
	content = lipgloss.NewStyle().Width(innerW).Height(innerH).Render(content)

	return m.paneStyle(focused).Width(innerW).Height(innerH).Render(content)
}

func verdictLabel(verdict string, injecting bool) string {
	label := verdict
	switch verdict {
	case "running":
		label = styles.VerdictRunning.Render(verdict)
	case "prompting":
		label = styles.VerdictPrompting.Render(verdict)
	case "usage_limit_announced", "trust_asked":
		label = styles.VerdictUsage.Render(verdict)
	default:
		label = styles.VerdictIdle.Render(verdict)
	}
	if injecting {
		label += " typing"
	}
	return label
}

// tailLines returns at most n trailing lines of s.
func tailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func (m model) renderTimerPane() string {
	focused := false
	rect := m.timerRect
	innerW, innerH := paneInner(rect)

	label := fmt.Sprintf("%s  %s", m.snapshot.Timer.Remaining.Round(1e9), m.snapshot.Timer.State)
	switch m.snapshot.Timer.State {
	case "running":
		label = styles.TimerRunning.Render(label)
	case "paused":
		label = styles.TimerPaused.Render(label)
	default:
		label = styles.TimerStopped.Render(label)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, styles.PaneTitle.Render("timer"), label)
	content = lipgloss.NewStyle().Width(innerW).Height(innerH).Render(content)
	return m.paneStyle(focused).Width(innerW).Height(innerH).Render(content)
}

func (m model) renderQueuePane() string {
	focused := m.focusedPane == FocusQueue
	rect := m.queueRect
	innerW, innerH := paneInner(rect)

	lines := []string{styles.PaneTitle.Render(fmt.Sprintf("queue (%d)", len(m.snapshot.Queue)))}
	for i, item := range m.snapshot.Queue {
		if i >= innerH-1 {
			lines = append(lines, fmt.Sprintf("... %d more", len(m.snapshot.Queue)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%d. -> t%d %s", i+1, item.Target, item.Preview))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	content = lipgloss.NewStyle().Width(innerW).Height(innerH).Render(content)
	return m.paneStyle(focused).Width(innerW).Height(innerH).Render(content)
}

func (m model) renderActionLogPane() string {
	focused := m.focusedPane == FocusActionLog
	rect := m.logRect
	innerW, innerH := paneInner(rect)

	lines := []string{styles.PaneTitle.Render("action log")}
	entries := m.snapshot.ActionLog
	start := 0
	if len(entries) > innerH-1 {
		start = len(entries) - (innerH - 1)
	}
	lines = append(lines, entries[start:]...)

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	content = lipgloss.NewStyle().Width(innerW).Height(innerH).Render(content)
	return m.paneStyle(focused).Width(innerW).Height(innerH).Render(content)
}

func (m model) renderQuitConfirm() string {
	msg := styles.PaneTitle.Render("Quit atari-inject? (y/n)")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

func paneInner(r PaneRect) (int, int) {
	w, h := r.Width-2, r.Height-2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
