// Package client provides a client for connecting to the cflow daemon.
// It supports automatic detection of running daemons and graceful fallback
// to direct execution when the daemon is unavailable.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/pkg/slicer"
)

const (
	// DefaultTCPPort is the default TCP port for Windows
	DefaultTCPPort = 9847
	// DefaultTimeout is the default round-trip timeout
	DefaultTimeout = 5 * time.Second
)

// DefaultSocketPath is the default Unix socket path
var DefaultSocketPath = filepath.Join(os.TempDir(), "cflow.sock")

// Client is a daemon client. It opens one connection per command.
type Client struct {
	socketPath string
	tcpPort    int
	timeout    time.Duration
	seq        atomic.Uint64
}

// Option is a client option
type Option func(*Client)

// WithSocketPath sets the socket path
func WithSocketPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.socketPath = path
		}
	}
}

// WithTCPPort sets the TCP port (for Windows)
func WithTCPPort(port int) Option {
	return func(c *Client) {
		if port > 0 {
			c.tcpPort = port
		}
	}
}

// WithTimeout sets the round-trip timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New creates a new daemon client
func New(opts ...Option) *Client {
	c := &Client{
		socketPath: getSocketPath(),
		tcpPort:    getTCPPort(),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getSocketPath gets the socket path from environment or default
func getSocketPath() string {
	if path := os.Getenv("CFLOW_SOCKET_PATH"); path != "" {
		return path
	}
	return DefaultSocketPath
}

// getTCPPort gets the TCP port from environment or default
func getTCPPort() int {
	if v := os.Getenv("CFLOW_TCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return DefaultTCPPort
}

// Endpoint returns the address the client dials.
func (c *Client) Endpoint() daemon.Endpoint {
	return daemon.EndpointFor(c.socketPath, c.tcpPort)
}

// send runs one command and decodes its result into out.
func (c *Client) send(ctx context.Context, cmdType string, params interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	cmd := daemon.Command{
		Type: cmdType,
		ID:   c.nextID(),
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		cmd.Params = data
	}

	resp, err := daemon.RoundTrip(c.Endpoint(), cmd, timeout)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("invalid %s response: %w", cmdType, err)
	}
	return nil
}

// nextID generates a unique command ID
func (c *Client) nextID() string {
	return fmt.Sprintf("cmd-%d-%d", os.Getpid(), c.seq.Add(1))
}

// Slice classifies the lines of one function around a focus.
func (c *Client) Slice(ctx context.Context, params daemon.SliceParams) (*slicer.Response, error) {
	var resp slicer.Response
	if err := c.send(ctx, daemon.CmdSlice, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Batch runs several slice requests in one round trip.
func (c *Client) Batch(ctx context.Context, params daemon.BatchParams) ([]daemon.BatchItem, error) {
	var items []daemon.BatchItem
	if err := c.send(ctx, daemon.CmdBatch, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Graph returns the statements and dependence edges of one function.
func (c *Client) Graph(ctx context.Context, params daemon.GraphParams) (*daemon.GraphResult, error) {
	var resp daemon.GraphResult
	if err := c.send(ctx, daemon.CmdGraph, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus gets the daemon status
func (c *Client) GetStatus(ctx context.Context) (*daemon.StatusInfo, error) {
	var info daemon.StatusInfo
	if err := c.send(ctx, daemon.CmdStatus, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Shutdown asks the daemon to persist its state and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.send(ctx, daemon.CmdStop, nil, nil)
}
