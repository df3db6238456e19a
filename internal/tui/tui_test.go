package tui

import "testing"

func TestNew_AppliesOptions(t *testing.T) {
	var pausedCalled, resumedCalled, quitCalled bool
	var cancelledTerminal = -1

	tu := New(stubProvider{},
		WithOnPause(func() { pausedCalled = true }),
		WithOnResume(func() { resumedCalled = true }),
		WithOnQuit(func() { quitCalled = true }),
		WithOnCancel(func(i int) { cancelledTerminal = i }),
	)

	tu.onPause()
	tu.onResume()
	tu.onQuit()
	tu.onCancel(3)

	if !pausedCalled || !resumedCalled || !quitCalled {
		t.Error("expected all callbacks to be wired")
	}
	if cancelledTerminal != 3 {
		t.Errorf("expected onCancel to receive 3, got %d", cancelledTerminal)
	}
}

func TestNew_DefaultsPollInterval(t *testing.T) {
	tu := New(stubProvider{})
	if tu.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval, got %v", tu.pollInterval)
	}
}

func TestWithPollInterval_Overrides(t *testing.T) {
	tu := New(stubProvider{}, WithPollInterval(2))
	if tu.pollInterval != 2 {
		t.Errorf("expected overridden poll interval, got %v", tu.pollInterval)
	}
}
