package main

import (
	"github.com/npratt/atari/internal/engine"
	"github.com/npratt/atari/internal/tui"
)

// engineProvider adapts a running *engine.Engine to tui.Provider, so the
// tui package never needs to import internal/engine directly.
type engineProvider struct {
	eng *engine.Engine
}

func newEngineProvider(eng *engine.Engine) *engineProvider {
	return &engineProvider{eng: eng}
}

const actionLogTailLines = 200

func (p *engineProvider) Snapshot() tui.Snapshot {
	terms := p.eng.TerminalSnapshots()
	views := make([]tui.TerminalView, len(terms))
	for i, t := range terms {
		views[i] = tui.TerminalView{
			ID:        int(t.ID),
			Name:      t.Name,
			ColorTag:  t.ColorTag,
			Verdict:   t.Verdict.Verdict.String(),
			Injecting: t.Injecting,
			Output:    string(t.Output),
		}
	}

	pending := p.eng.Queue.Snapshot()
	queue := make([]tui.QueueItemView, len(pending))
	for i, m := range pending {
		queue[i] = tui.QueueItemView{
			ID:        uint64(m.ID),
			Target:    int(m.Target),
			Preview:   m.OriginalText,
			ExecuteAt: m.ExecuteAt,
		}
	}

	value, state, _ := p.eng.Timer().Value()

	entries := p.eng.Log.Last(actionLogTailLines)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Timestamp.Format("15:04:05") + " [" + e.Level.String() + "] " + e.Message
	}

	return tui.Snapshot{
		Mode:      p.eng.Mode().String(),
		Terminals: views,
		Queue:     queue,
		Timer: tui.TimerView{
			Remaining: value.Duration(),
			State:     state.String(),
		},
		ActionLog: lines,
	}
}
