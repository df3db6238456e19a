package daemon

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse contains engine status information (spec.md §6 "status").
type StatusResponse struct {
	Mode       string           `json:"mode"`
	Uptime     string           `json:"uptime"`
	StartTime  string           `json:"start_time"`
	Terminals  []TerminalStatus `json:"terminals"`
	QueueDepth int              `json:"queue_depth"`
	Timer      TimerStatus      `json:"timer"`
}

// TerminalStatus reports one terminal's current verdict and injecting state.
type TerminalStatus struct {
	ID        int    `json:"id"`
	Verdict   string `json:"verdict"`
	Injecting bool   `json:"injecting"`
}

// TimerStatus reports the shared timer's current value and run state.
type TimerStatus struct {
	Remaining string `json:"remaining"`
	Running   bool   `json:"running"`
}

// EnqueueParams contains parameters for the enqueue method.
type EnqueueParams struct {
	Text      string `json:"text"`
	Target    int    `json:"target"`
	ExecuteAt string `json:"execute_at,omitempty"` // RFC3339; empty means "now"
	Force     bool   `json:"force,omitempty"`      // bypass the dangerous-command guard
}

// StopParams contains parameters for the stop method.
type StopParams struct {
	Force bool `json:"force,omitempty"`
}

// TimerParams contains parameters for timer set/start/pause/stop.
type TimerParams struct {
	Action string `json:"action"` // "set", "start", "pause", "stop"
	Value  string `json:"value,omitempty"` // duration string, e.g. "5m30s"
}

// KeywordParams contains parameters for keyword add/remove.
type KeywordParams struct {
	Action   string `json:"action"` // "add", "remove"
	Keyword  string `json:"keyword"`
	Response string `json:"response,omitempty"`
	Cooldown string `json:"cooldown,omitempty"`
}

// QueueParams contains parameters for queue list/reorder/delete.
type QueueParams struct {
	Action string   `json:"action"` // "list", "reorder", "delete"
	ID     uint64   `json:"id,omitempty"`
	Order  []uint64 `json:"order,omitempty"`
}
