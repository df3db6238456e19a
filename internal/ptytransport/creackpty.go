package ptytransport

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/npratt/atari/internal/engine"
)

// session tracks one spawned process and its PTY file descriptor.
type session struct {
	id   engine.TerminalID
	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}
}

// CreackTransport is the production Transport, backed by
// github.com/creack/pty, grounded on the reader/writer split used by the
// pack's PTY-backend example (waitForReady/reader goroutine shape).
type CreackTransport struct {
	mu       sync.Mutex
	sessions map[engine.TerminalID]*session
	exits    chan ExitEvent
}

// NewCreackTransport creates an empty transport.
func NewCreackTransport() *CreackTransport {
	return &CreackTransport{
		sessions: map[engine.TerminalID]*session{},
		exits:    make(chan ExitEvent, 8),
	}
}

func (t *CreackTransport) Exits() <-chan ExitEvent { return t.exits }

// Spawn starts command under a PTY of the given size and begins a reader
// goroutine delivering output to onOutput.
func (t *CreackTransport) Spawn(ctx context.Context, id engine.TerminalID, command []string, size Size, onOutput func(engine.TerminalID, []byte)) error {
	if len(command) == 0 {
		return fmt.Errorf("ptytransport: spawn: %w", engine.ErrInvalidInput)
	}

	t.mu.Lock()
	if _, exists := t.sessions[id]; exists {
		t.mu.Unlock()
		return fmt.Errorf("ptytransport: terminal %d already spawned", id)
	}
	t.mu.Unlock()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return fmt.Errorf("ptytransport: start pty: %w", err)
	}

	s := &session{id: id, cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	t.mu.Lock()
	t.sessions[id] = s
	t.mu.Unlock()

	go t.readLoop(s, onOutput)
	return nil
}

func (t *CreackTransport) readLoop(s *session, onOutput func(engine.TerminalID, []byte)) {
	buf := make([]byte, 4096)
	var exitErr error
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onOutput(s.id, chunk)
		}
		if err != nil {
			exitErr = err
			break
		}
	}

	if s.cmd.Process != nil {
		_ = s.cmd.Wait()
	}

	t.mu.Lock()
	delete(t.sessions, s.id)
	t.mu.Unlock()

	close(s.done)
	select {
	case t.exits <- ExitEvent{Terminal: s.id, Err: exitErr, At: time.Now()}:
	default:
	}
}

// Write implements engine.PTYWriter.
func (t *CreackTransport) Write(id engine.TerminalID, b []byte) error {
	t.mu.Lock()
	s, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("ptytransport: %w: terminal %d not spawned", engine.ErrTransientWrite, id)
	}
	if _, err := s.ptmx.Write(b); err != nil {
		return fmt.Errorf("ptytransport: %w: %v", engine.ErrTransientWrite, err)
	}
	return nil
}

// Resize changes a running terminal's PTY window size.
func (t *CreackTransport) Resize(id engine.TerminalID, size Size) error {
	t.mu.Lock()
	s, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("ptytransport: resize: terminal %d not spawned", id)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
}

// Close terminates the process and releases its PTY.
func (t *CreackTransport) Close(id engine.TerminalID) error {
	t.mu.Lock()
	s, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.ptmx.Close()
	<-s.done
	return err
}
