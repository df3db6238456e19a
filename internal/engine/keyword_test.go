package engine

import (
	"context"
	"testing"
	"time"
)

func TestKeywordStore_AddRejectsDuplicateCaseInsensitive(t *testing.T) {
	s := NewKeywordStore()
	if _, err := s.Add("Proceed?", "", 0); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("proceed?", "", 0); err == nil {
		t.Fatalf("expected duplicate-keyword error")
	}
}

func TestKeywordStore_AddRejectsEmpty(t *testing.T) {
	s := NewKeywordStore()
	if _, err := s.Add("   ", "", 0); err == nil {
		t.Fatalf("expected error for empty keyword")
	}
}

func TestKeywordInterruptor_FiresOnceThenRearms(t *testing.T) {
	w := &fakeWriter{}
	typing := NewTypingExecutor(w, fakeClock{}, nil)
	autoCont := NewAutoContinue(w, fakeClock{}, nil, true)
	k := NewKeywordInterruptor(w, fakeClock{}, nil, typing, autoCont)
	store := NewKeywordStore()
	store.Add("danger", "", 0)

	win := NewOutputWindow()
	win.Append([]byte("╭ danger ahead"))

	if !k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected first TryFire to fire")
	}
	if len(w.writes) != 1 || w.writes[0][0] != 0x1B {
		t.Fatalf("expected a single Escape byte, got %v", w.writes)
	}
	if k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected second TryFire to be a no-op until rearmed")
	}

	k.Rearm(TerminalID(1))
	if !k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected TryFire to fire again after Rearm")
	}
}

func TestKeywordInterruptor_RespectsCooldown(t *testing.T) {
	w := &fakeWriter{}
	typing := NewTypingExecutor(w, fakeClock{}, nil)
	autoCont := NewAutoContinue(w, fakeClock{}, nil, true)
	k := NewKeywordInterruptor(w, fakeClock{}, nil, typing, autoCont)
	store := NewKeywordStore()
	store.Add("danger", "", time.Hour)

	win := NewOutputWindow()
	win.Append([]byte("╭ danger ahead"))

	if !k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected first TryFire to fire")
	}
	k.Rearm(TerminalID(1))
	if k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected TryFire to be suppressed by cooldown")
	}
}

func TestKeywordInterruptor_NoMatchDoesNotFire(t *testing.T) {
	w := &fakeWriter{}
	typing := NewTypingExecutor(w, fakeClock{}, nil)
	autoCont := NewAutoContinue(w, fakeClock{}, nil, true)
	k := NewKeywordInterruptor(w, fakeClock{}, nil, typing, autoCont)
	store := NewKeywordStore()
	store.Add("nonexistent-term", "", 0)

	win := NewOutputWindow()
	win.Append([]byte("╭ nothing relevant here"))

	if k.TryFire(context.Background(), TerminalID(1), win, store) {
		t.Fatalf("expected no fire without a match")
	}
	if len(w.writes) != 0 {
		t.Fatalf("expected no writes, got %v", w.writes)
	}
}
