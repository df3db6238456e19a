// Package ptytransport owns the one collaborator spec.md explicitly places
// out of scope for the engine: spawning a Claude Code process behind a
// pseudo-terminal, delivering its output bytes, resizing, and closing it
// (spec.md §1, §6, "PTY transport (outbound): write(terminal_id, bytes)").
// The engine only ever sees the narrow engine.PTYWriter interface; this
// package is what actually implements it.
package ptytransport

import (
	"context"
	"time"

	"github.com/npratt/atari/internal/engine"
)

// Size is a terminal's row/column dimensions.
type Size struct {
	Rows uint16
	Cols uint16
}

// ExitEvent is delivered once when a spawned process exits, so the engine
// can close the terminal and requeue any in-flight message (spec.md §9(c)).
type ExitEvent struct {
	Terminal engine.TerminalID
	Err      error
	At       time.Time
}

// Transport spawns and manages the PTY-backed terminals the engine injects
// into. It implements engine.PTYWriter directly (Write), plus the
// lifecycle operations the engine's terminal-management commands need.
type Transport interface {
	engine.PTYWriter

	// Spawn starts command in a new PTY sized to size, registers it under
	// id, and begins delivering its output to onOutput. onOutput must not
	// block for long; callers typically hand bytes straight to
	// engine.Engine.AppendOutput.
	Spawn(ctx context.Context, id engine.TerminalID, command []string, size Size, onOutput func(engine.TerminalID, []byte)) error

	// Resize changes a running terminal's PTY dimensions.
	Resize(id engine.TerminalID, size Size) error

	// Close terminates the process and releases the PTY for id.
	Close(id engine.TerminalID) error

	// Exits returns the channel ExitEvents are delivered on.
	Exits() <-chan ExitEvent
}
