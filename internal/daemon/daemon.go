// Package daemon provides background execution of the engine with
// external control via Unix-socket JSON-RPC, reusing the teacher's
// Request/Response envelope shape re-pointed at engine commands
// (enqueue/cancel/pause/resume/timer/keyword/status) instead of the
// teacher's bead-drain commands.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/atari/internal/config"
	"github.com/npratt/atari/internal/engine"
)

// Daemon manages background execution of an Engine with external control
// via Unix socket.
type Daemon struct {
	config   *config.Config
	engine   *engine.Engine
	sockPath string
	startTime time.Time
	logger   *slog.Logger

	listener net.Listener
	running  bool
	stopCh   chan struct{}
	mu       sync.RWMutex
}

// New creates a new Daemon wrapping the given engine.
func New(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:   cfg,
		engine:   eng,
		sockPath: cfg.Paths.Socket,
		logger:   logger,
		stopCh:   make(chan struct{}, 1),
	}
}

// Running returns whether the daemon is currently running.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// setRunning updates the running state (thread-safe).
func (d *Daemon) setRunning(running bool) {
	d.mu.Lock()
	d.running = running
	d.mu.Unlock()
}

// Engine returns the underlying engine, for testing.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// StartTime returns when the daemon was started.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
