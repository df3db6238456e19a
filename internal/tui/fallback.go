package tui

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"
)

// isTerminal returns true if both stdout and stdin are TTYs.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalSize returns the current terminal width and height.
// Returns 0, 0 if the terminal size cannot be determined.
func terminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return width, height
}

// terminalTooSmall returns true if the terminal is below the minimum size.
func terminalTooSmall() bool {
	width, height := terminalSize()
	return width < minWidth || height < minHeight
}

// runSimple provides line-by-line status output for non-interactive
// environments: it polls the Provider and prints what changed in the
// Action Log since the last poll, until interrupted.
func (t *TUI) runSimple() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	lastLen := 0
	for {
		select {
		case <-sigChan:
			return nil
		case <-ticker.C:
			if t.provider == nil {
				continue
			}
			snap := t.provider.Snapshot()
			if len(snap.ActionLog) <= lastLen {
				continue
			}
			for _, line := range snap.ActionLog[lastLen:] {
				fmt.Println(line)
			}
			lastLen = len(snap.ActionLog)
		}
	}
}
