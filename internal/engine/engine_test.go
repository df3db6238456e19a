package engine

import (
	"testing"
	"time"
)

func TestEngine_OpenCloseTerminal(t *testing.T) {
	w := &fakeWriter{}
	e := New(w, DefaultConfig())
	defer e.Close()

	if _, err := e.OpenTerminal(TerminalID(1), "one", "blue"); err != nil {
		t.Fatalf("OpenTerminal: %v", err)
	}
	if e.Terminals.Len() != 1 {
		t.Fatalf("expected 1 open terminal, got %d", e.Terminals.Len())
	}
	e.CloseTerminal(TerminalID(1))
	if e.Terminals.Len() != 0 {
		t.Fatalf("expected 0 open terminals after close, got %d", e.Terminals.Len())
	}
}

func TestEngine_CloseTerminalMidInjectionRequeuesMessage(t *testing.T) {
	w := &fakeWriter{}
	e := New(w, DefaultConfig())
	defer e.Close()

	term, _ := e.OpenTerminal(TerminalID(1), "one", "")
	msg, err := e.Queue.Enqueue("hello", TerminalID(1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Simulate the scheduler having started this message's injection.
	term.Injecting = true
	term.InFlightID = msg.ID
	e.Queue.MarkInFlight(msg.ID)

	e.CloseTerminal(TerminalID(1))

	got, ok := e.Queue.Get(msg.ID)
	if !ok {
		t.Fatalf("expected message %d to remain pending after mid-injection close", msg.ID)
	}
	if got.InFlight {
		t.Fatalf("expected message %d no longer in-flight after mid-injection close", msg.ID)
	}
	if e.Terminals.Len() != 0 {
		t.Fatalf("expected terminal closed")
	}
}

func TestEngine_PauseSuppressesNewInjectionAndResumeRestores(t *testing.T) {
	w := &fakeWriter{}
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 20 * time.Millisecond
	e := New(w, cfg)
	defer e.Close()

	term, _ := e.OpenTerminal(TerminalID(1), "one", "")
	term.Verdict = DetectorVerdict{Verdict: VerdictIdle}
	term.IdleSince = time.Now().Add(-time.Hour)

	e.Pause()
	if e.Mode() != ModePaused {
		t.Fatalf("Mode() = %v, want paused", e.Mode())
	}

	e.Queue.Enqueue("hi", TerminalID(1))
	e.runSchedulerPass()
	if e.hasInFlight() {
		t.Fatalf("expected no injection started while paused")
	}

	e.Resume()
	if e.Mode() == ModePaused {
		t.Fatalf("expected mode to leave paused after Resume")
	}
}

func TestEngine_UsageLimitAnnouncementEntersWaitingMode(t *testing.T) {
	w := &fakeWriter{}
	e := New(w, DefaultConfig())
	defer e.Close()

	e.OpenTerminal(TerminalID(1), "one", "")
	e.AppendOutput(TerminalID(1), []byte("Claude usage limit reached. Your limit will reset at 11pm"))

	if e.Mode() != ModeWaitingForUsageLimit {
		t.Fatalf("Mode() = %v, want waiting-for-usage-limit", e.Mode())
	}
	_, state, _ := e.Timer().Value()
	if state != TimerRunning {
		t.Fatalf("timer state = %v, want running", state)
	}
}

func TestEngine_EnqueueAndAutoInjectWhenStable(t *testing.T) {
	w := &fakeWriter{}
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 20 * time.Millisecond
	e := New(w, cfg)
	defer e.Close()

	e.OpenTerminal(TerminalID(1), "one", "")
	if _, err := e.Queue.Enqueue("hi", TerminalID(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// First idle output starts the stability clock and schedules a wake-up.
	e.AppendOutput(TerminalID(1), []byte("$ "))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		e.AppendOutput(TerminalID(1), []byte("$ "))
		if len(e.Queue.History()) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	hist := e.Queue.History()
	if len(hist) != 1 || hist[0].OriginalText != "hi" {
		t.Fatalf("history = %+v, want the delivered message", hist)
	}
}
