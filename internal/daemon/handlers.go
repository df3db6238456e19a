package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/npratt/atari/internal/engine"
	"github.com/npratt/atari/internal/metrics"
)

// handleRequest dispatches the request to the appropriate handler.
func (d *Daemon) handleRequest(ctx context.Context, req *Request) Response {
	switch req.Method {
	case "status":
		return d.handleStatus()
	case "pause":
		return d.handlePause()
	case "resume":
		return d.handleResume()
	case "stop":
		return d.handleStop(req)
	case "enqueue":
		return d.handleEnqueue(req)
	case "cancel":
		return d.handleCancel(req)
	case "timer":
		return d.handleTimer(req)
	case "keyword":
		return d.handleKeyword(req)
	case "queue":
		return d.handleQueue(req)
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// handleStatus reports the engine's current mode, per-terminal verdicts,
// queue depth, and timer state (spec.md §6 "status").
func (d *Daemon) handleStatus() Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}

	d.mu.RLock()
	startTime := d.startTime
	d.mu.RUnlock()

	var terms []TerminalStatus
	for _, t := range d.engine.TerminalSnapshots() {
		terms = append(terms, TerminalStatus{
			ID:        int(t.ID),
			Verdict:   t.Verdict.Verdict.String(),
			Injecting: t.Injecting,
		})
	}

	value, state, running := d.engine.Timer().Value()

	return Response{
		Result: StatusResponse{
			Mode:       d.engine.Mode().String(),
			Uptime:     time.Since(startTime).Truncate(time.Second).String(),
			StartTime:  startTime.Format(time.RFC3339),
			Terminals:  terms,
			QueueDepth: len(d.engine.Queue.Snapshot()),
			Timer: TimerStatus{
				Remaining: value.Duration().String(),
				Running:   running && state == engine.TimerRunning,
			},
		},
	}
}

// handlePause requests the engine suppress new injection starts.
func (d *Daemon) handlePause() Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	d.engine.Pause()
	return Response{Result: "paused"}
}

// handleResume requests the engine resume injection.
func (d *Daemon) handleResume() Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	d.engine.Resume()
	return Response{Result: "resumed"}
}

// handleStop schedules the daemon (and its engine) to shut down.
func (d *Daemon) handleStop(req *Request) Response {
	force := false
	if params, ok := req.Params.(map[string]interface{}); ok {
		if f, ok := params["force"].(bool); ok {
			force = f
		}
	}
	_ = force // both graceful and forced stop just tear the engine down; no in-progress "bead" to drain

	go func() {
		time.Sleep(100 * time.Millisecond)
		select {
		case d.stopCh <- struct{}{}:
		default:
		}
	}()

	return Response{Result: "stopping"}
}

// handleEnqueue adds a message to the Message Queue.
func (d *Daemon) handleEnqueue(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}

	params, err := decodeParams[EnqueueParams](req.Params)
	if err != nil {
		return Response{Error: err.Error()}
	}

	if d.config != nil && d.config.Guard.Enabled && !params.Force {
		if pattern, dangerous := engine.IsDangerous(params.Text); dangerous {
			metrics.GuardBlock()
			d.engine.Log.Warnf(fmt.Sprintf("enqueue blocked by guard: message matches dangerous pattern %q; retry with force=true to override", pattern.String()))
			return Response{Error: fmt.Sprintf("message matches dangerous pattern %q; pass force=true to send anyway", pattern.String())}
		}
	}

	var msg engine.Message
	if params.ExecuteAt != "" {
		at, err := time.Parse(time.RFC3339, params.ExecuteAt)
		if err != nil {
			return Response{Error: fmt.Sprintf("invalid execute_at: %v", err)}
		}
		msg, err = d.engine.Queue.EnqueueAt(params.Text, engine.TerminalID(params.Target), at)
		if err != nil {
			return Response{Error: err.Error()}
		}
	} else {
		msg, err = d.engine.Queue.Enqueue(params.Text, engine.TerminalID(params.Target))
		if err != nil {
			return Response{Error: err.Error()}
		}
	}

	return Response{Result: map[string]any{"id": uint64(msg.ID)}}
}

// handleCancel cancels an in-flight injection on a terminal.
func (d *Daemon) handleCancel(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params, err := decodeParams[struct {
		Target int `json:"target"`
	}](req.Params)
	if err != nil {
		return Response{Error: err.Error()}
	}
	d.engine.CancelInjection(engine.TerminalID(params.Target))
	return Response{Result: "cancelled"}
}

// handleTimer dispatches the shared countdown Timer's set/start/pause/stop
// actions (spec.md §4.5).
func (d *Daemon) handleTimer(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params, err := decodeParams[TimerParams](req.Params)
	if err != nil {
		return Response{Error: err.Error()}
	}

	timer := d.engine.Timer()
	switch params.Action {
	case "set":
		dur, err := time.ParseDuration(params.Value)
		if err != nil {
			return Response{Error: fmt.Sprintf("invalid duration: %v", err)}
		}
		if err := timer.Edit(engine.TimerValueFromDuration(dur)); err != nil {
			return Response{Error: err.Error()}
		}
		d.engine.MarkManualTimerEdit()
	case "start":
		if params.Value != "" {
			dur, err := time.ParseDuration(params.Value)
			if err != nil {
				return Response{Error: fmt.Sprintf("invalid duration: %v", err)}
			}
			if err := timer.SetAndStart(engine.TimerValueFromDuration(dur)); err != nil {
				return Response{Error: err.Error()}
			}
		} else if err := timer.Start(); err != nil {
			return Response{Error: err.Error()}
		}
		d.engine.MarkManualTimerEdit()
	case "pause":
		if err := timer.Pause(); err != nil {
			return Response{Error: err.Error()}
		}
	case "stop":
		timer.Stop()
	default:
		return Response{Error: fmt.Sprintf("unknown timer action: %s", params.Action)}
	}

	return Response{Result: "ok"}
}

// handleKeyword dispatches Keyword Rule add/remove (spec.md §4.8).
func (d *Daemon) handleKeyword(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params, err := decodeParams[KeywordParams](req.Params)
	if err != nil {
		return Response{Error: err.Error()}
	}

	switch params.Action {
	case "add":
		var cooldown time.Duration
		if params.Cooldown != "" {
			cooldown, err = time.ParseDuration(params.Cooldown)
			if err != nil {
				return Response{Error: fmt.Sprintf("invalid cooldown: %v", err)}
			}
		}
		rule, err := d.engine.Keywords.Add(params.Keyword, params.Response, cooldown)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Result: map[string]any{"id": rule.ID}}
	case "remove":
		if params.Keyword == "" {
			return Response{Error: "keyword required for remove"}
		}
		for _, r := range d.engine.Keywords.All() {
			if r.Keyword == params.Keyword {
				d.engine.Keywords.Remove(r.ID)
				return Response{Result: "removed"}
			}
		}
		return Response{Error: "no matching rule"}
	default:
		return Response{Error: fmt.Sprintf("unknown keyword action: %s", params.Action)}
	}
}

// handleQueue dispatches Message Queue list/reorder/delete (spec.md §4.9).
func (d *Daemon) handleQueue(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params, err := decodeParams[QueueParams](req.Params)
	if err != nil {
		return Response{Error: err.Error()}
	}

	switch params.Action {
	case "list":
		snapshot := d.engine.Queue.Snapshot()
		out := make([]map[string]any, len(snapshot))
		for i, m := range snapshot {
			out[i] = map[string]any{
				"id":         uint64(m.ID),
				"text":       m.OriginalText,
				"target":     int(m.Target),
				"execute_at": m.ExecuteAt.Format(time.RFC3339),
				"in_flight":  m.InFlight,
			}
		}
		return Response{Result: out}
	case "reorder":
		ids := make([]engine.MessageID, len(params.Order))
		for i, id := range params.Order {
			ids[i] = engine.MessageID(id)
		}
		if err := d.engine.Queue.ReorderFull(ids); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Result: "reordered"}
	case "delete":
		if err := d.engine.Queue.Delete(engine.MessageID(params.ID)); err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Result: "deleted"}
	default:
		return Response{Error: fmt.Sprintf("unknown queue action: %s", params.Action)}
	}
}
