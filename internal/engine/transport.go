package engine

import "time"

// PTYWriter is the engine's view of the out-of-scope PTY transport
// (spec.md §6, "PTY transport (outbound): write(terminal_id, bytes)").
// The engine depends only on this primitive; spawn/resize/close and the
// byte-delivery plumbing live in internal/ptytransport.
type PTYWriter interface {
	Write(id TerminalID, b []byte) error
}

// Clock abstracts time.Now and time.Sleep/timers for deterministic tests.
// Production code uses RealClock; tests use a fake that advances manually.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}
