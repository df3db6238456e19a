package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

const (
	// DefaultClientTimeout is the default timeout for client operations.
	DefaultClientTimeout = 5 * time.Second
)

// Client connects to the daemon via Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a new daemon client.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends a JSON-RPC request to the daemon and returns the response.
func (c *Client) call(method string, params any) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return nil, c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Method: method, Params: params}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// wrapConnError converts connection errors to user-friendly messages.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return errors.New("daemon not running (socket not found)")
		case syscall.ECONNREFUSED:
			return errors.New("daemon not running (connection refused)")
		}
	}

	if os.IsNotExist(err) {
		return errors.New("daemon not running (socket not found)")
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}

	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns the current engine status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.call("status", nil)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}

	return &status, nil
}

// Pause requests the daemon suppress new injection starts.
func (c *Client) Pause() error {
	_, err := c.call("pause", nil)
	return err
}

// Resume requests the daemon resume injection.
func (c *Client) Resume() error {
	_, err := c.call("resume", nil)
	return err
}

// Stop requests the daemon to stop. The force flag is sent along; the
// daemon shuts down the same way whether or not it is set.
func (c *Client) Stop(force bool) error {
	params := StopParams{Force: force}
	_, err := c.call("stop", params)
	return err
}

// Enqueue adds a message to the queue, returning its assigned id.
func (c *Client) Enqueue(p EnqueueParams) (uint64, error) {
	resp, err := c.call("enqueue", p)
	if err != nil {
		return 0, err
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected enqueue result: %v", resp.Result)
	}
	id, _ := m["id"].(float64)
	return uint64(id), nil
}

// Cancel cancels an in-flight injection on the given terminal.
func (c *Client) Cancel(target int) error {
	_, err := c.call("cancel", map[string]int{"target": target})
	return err
}

// Timer drives the shared countdown timer's set/start/pause/stop actions.
func (c *Client) Timer(p TimerParams) error {
	_, err := c.call("timer", p)
	return err
}

// Keyword drives Keyword Rule add/remove.
func (c *Client) Keyword(p KeywordParams) error {
	_, err := c.call("keyword", p)
	return err
}

// Queue drives Message Queue list/reorder/delete. For "list" it returns
// the raw decoded result slice (one map per queued message); callers that
// don't need the list can ignore the first return value.
func (c *Client) Queue(p QueueParams) ([]map[string]any, error) {
	resp, err := c.call("queue", p)
	if err != nil {
		return nil, err
	}
	if p.Action != "list" {
		return nil, nil
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal queue result: %w", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal queue result: %w", err)
	}
	return out, nil
}

// IsRunning checks if the daemon is running by attempting to connect.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
