package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestUpdate_WindowSizeMsg_SetsDimensionsAndRects(t *testing.T) {
	m := newModel(stubProvider{}, 0, nil, nil, nil, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	mm := updated.(model)
	if mm.width != 100 || mm.height != 30 {
		t.Fatalf("expected dimensions to be set, got %d x %d", mm.width, mm.height)
	}
	if mm.termRects[0].IsEmpty() {
		t.Error("expected pane sizes to be recomputed on resize")
	}
}

func TestUpdate_SnapshotMsg_StoresSnapshot(t *testing.T) {
	m := newModel(stubProvider{}, 0, nil, nil, nil, nil)
	snap := Snapshot{Mode: "injecting"}
	updated, _ := m.Update(snapshotMsg(snap))
	mm := updated.(model)
	if mm.snapshot.Mode != "injecting" {
		t.Errorf("expected snapshot to be stored, got %+v", mm.snapshot)
	}
}

func TestUpdate_TabKey_CyclesFocus(t *testing.T) {
	m := newModel(stubProvider{}, 0, nil, nil, nil, nil)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	mm := updated.(model)
	if mm.focusedPane != FocusTerminal1 {
		t.Errorf("expected focus to move to terminal 1, got %v", mm.focusedPane)
	}
}

func TestUpdate_QKey_OpensQuitConfirm(t *testing.T) {
	m := newModel(stubProvider{}, 0, nil, nil, nil, nil)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	mm := updated.(model)
	if !mm.quitConfirmOpen {
		t.Error("expected 'q' to open the quit confirmation")
	}
}

func TestUpdate_QuitConfirm_YQuits(t *testing.T) {
	quit := false
	m := newModel(stubProvider{}, 0, nil, nil, func() { quit = true }, nil)
	m.quitConfirmOpen = true
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if cmd == nil {
		t.Fatal("expected tea.Quit command")
	}
	if !quit {
		t.Error("expected onQuit callback to fire")
	}
}

func TestUpdate_QuitConfirm_OtherKeyCancels(t *testing.T) {
	m := newModel(stubProvider{}, 0, nil, nil, nil, nil)
	m.quitConfirmOpen = true
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	mm := updated.(model)
	if mm.quitConfirmOpen {
		t.Error("expected quit confirmation to close on any non-y key")
	}
}

func TestUpdate_PKey_InvokesOnPause(t *testing.T) {
	paused := false
	m := newModel(stubProvider{}, 0, func() { paused = true }, nil, nil, nil)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	mm := updated.(model)
	if !paused || !mm.paused {
		t.Error("expected 'p' to invoke onPause and set paused state")
	}
}

func TestUpdate_CKey_InvokesOnCancelForFocusedTerminal(t *testing.T) {
	var cancelled int = -1
	m := newModel(stubProvider{}, 0, nil, nil, nil, func(i int) { cancelled = i })
	m.focusedPane = FocusTerminal2
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if cancelled != 2 {
		t.Errorf("expected cancel on terminal 2, got %d", cancelled)
	}
}

func TestPollSnapshot_NilProviderReturnsZeroValue(t *testing.T) {
	cmd := pollSnapshot(nil)
	msg := cmd()
	if _, ok := msg.(snapshotMsg); !ok {
		t.Fatalf("expected snapshotMsg, got %T", msg)
	}
}

func TestDoTick_FiresAfterInterval(t *testing.T) {
	cmd := doTick(time.Millisecond)
	msg := cmd()
	if _, ok := msg.(tickMsg); !ok {
		t.Fatalf("expected tickMsg, got %T", msg)
	}
}
