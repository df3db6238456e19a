package engine

import (
	"testing"
	"time"
)

func TestNextOccurrence_LaterTodayVsTomorrow(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	got, err := nextOccurrence(now, "3pm")
	if err != nil {
		t.Fatalf("nextOccurrence: %v", err)
	}
	want := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, err = nextOccurrence(now, "3am")
	if err != nil {
		t.Fatalf("nextOccurrence: %v", err)
	}
	want = time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (tomorrow, already passed today)", got, want)
	}
}

func TestNextOccurrence_RejectsMalformed(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if _, err := nextOccurrence(now, "noon"); err == nil {
		t.Fatalf("expected error for malformed reset string")
	}
	if _, err := nextOccurrence(now, "13pm"); err == nil {
		t.Fatalf("expected error for out-of-range hour")
	}
}

func TestUsageLimitSync_OnResetAnnouncedIdempotent(t *testing.T) {
	tm := NewTimer()
	defer tm.Close()
	u := NewUsageLimitSync(tm)
	u.now = func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }

	handled, err := u.OnResetAnnounced("3pm")
	if err != nil || !handled {
		t.Fatalf("expected handled=true err=nil, got %v %v", handled, err)
	}
	handled, err = u.OnResetAnnounced("3pm")
	if err != nil || handled {
		t.Fatalf("expected second identical reset to be a no-op, got %v %v", handled, err)
	}

	_, state, _ := tm.Value()
	if state != TimerRunning {
		t.Fatalf("expected Timer running after reset announced, got %v", state)
	}
}

func TestUsageLimitSync_OnTimerNaturallyExpiredClearsState(t *testing.T) {
	tm := NewTimer()
	defer tm.Close()
	u := NewUsageLimitSync(tm)
	u.now = func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }
	u.OnResetAnnounced("3pm")

	u.OnTimerNaturallyExpired()
	if u.LastProcessed() != "" {
		t.Fatalf("expected LastProcessed cleared, got %q", u.LastProcessed())
	}

	handled, err := u.OnResetAnnounced("3pm")
	if err != nil || !handled {
		t.Fatalf("expected a fresh identical reset to be handled again after expiry, got %v %v", handled, err)
	}
}

func TestUsageLimitSync_DisableAutoSyncBlocksUntilFreshReset(t *testing.T) {
	tm := NewTimer()
	defer tm.Close()
	u := NewUsageLimitSync(tm)
	u.now = func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }

	u.DisableAutoSync()
	handled, err := u.OnResetAnnounced("3pm")
	if err != nil || handled {
		t.Fatalf("expected disabled auto-sync to ignore the reset, got %v %v", handled, err)
	}
}
