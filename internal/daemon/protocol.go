package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/slicer"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Command types understood by the daemon.
const (
	CmdSlice  = "slice"
	CmdBatch  = "batch"
	CmdGraph  = "graph"
	CmdStatus = "status"
	CmdStop   = "stop"
)

// Error codes carried in Response.Code.
const (
	CodeParseError     = "parse_error"
	CodeFocusNotFound  = "focus_not_found"
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

// Command is one request sent to the daemon, encoded as a single JSON value.
type Command struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     string          `json:"id"`
}

// Response is the daemon's reply to a Command.
type Response struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// SliceParams are the parameters of a slice command.
type SliceParams struct {
	slicer.Target
	Variable  string `json:"variable"`
	Direction string `json:"direction,omitempty"`
}

// Request turns p, resolved to res, into an engine request. An empty
// direction becomes def.
func (p SliceParams) Request(res *slicer.Resolved, def string) (slicer.Request, error) {
	if p.Variable == "" {
		return slicer.Request{}, fmt.Errorf("%w: variable is required", ErrInvalidRequest)
	}
	if p.Line <= 0 {
		return slicer.Request{}, fmt.Errorf("%w: line is required", ErrInvalidRequest)
	}
	dir := p.Direction
	if dir == "" {
		dir = def
	}
	return slicer.Request{
		Source:    res.Source,
		Range:     res.Range,
		Variable:  p.Variable,
		Line:      p.Line,
		Direction: slicer.Direction(dir),
	}, nil
}

// BatchParams are the parameters of a batch command.
type BatchParams struct {
	Requests []SliceParams `json:"requests"`
}

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Result *slicer.Response `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Code   string           `json:"code,omitempty"`
}

// RunBatch resolves every request with build and computes the valid ones
// on e's worker pool. Items are returned in request order.
func RunBatch(ctx context.Context, e *slicer.Engine, params []SliceParams, build func(context.Context, SliceParams) (slicer.Request, error)) []BatchItem {
	items := make([]BatchItem, len(params))
	reqs := make([]slicer.Request, 0, len(params))
	index := make([]int, 0, len(params))
	for i, p := range params {
		req, err := build(ctx, p)
		if err != nil {
			items[i] = BatchItem{Error: err.Error(), Code: ErrorCode(err)}
			continue
		}
		reqs = append(reqs, req)
		index = append(index, i)
	}

	for j, r := range e.ComputeAll(ctx, reqs) {
		i := index[j]
		if r.Err != nil {
			items[i] = BatchItem{Error: r.Err.Error(), Code: ErrorCode(r.Err)}
			continue
		}
		items[i] = BatchItem{Result: r.Response}
	}
	return items
}

// GraphParams are the parameters of a graph command.
type GraphParams struct {
	slicer.Target
}

// GraphResult describes the dependence graph of one function.
type GraphResult struct {
	Function   string           `json:"function,omitempty"`
	Range      slicer.Range     `json:"range"`
	Statements []stmt.Statement `json:"statements"`
	Edges      []pdg.PDGEdge    `json:"edges"`
	Unresolved []string         `json:"unresolved,omitempty"`
	Cached     bool             `json:"cached"`
}

// CacheStats reports graph cache usage.
type CacheStats struct {
	Enabled bool    `json:"enabled"`
	Entries int     `json:"entries"`
	Bytes   int64   `json:"bytes"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// StatusInfo is the result of a status command.
type StatusInfo struct {
	Status    string     `json:"status"`
	Version   string     `json:"version"`
	PID       int        `json:"pid"`
	StartedAt time.Time  `json:"started_at"`
	Requests  int64      `json:"requests"`
	Documents int        `json:"documents"`
	Cache     CacheStats `json:"cache"`
}

// Endpoint is the network address of the daemon.
type Endpoint struct {
	Network string
	Address string
}

func (e Endpoint) String() string {
	return e.Network + ":" + e.Address
}

// EndpointFor returns the endpoint used for socketPath. Windows, and socket
// paths that are not absolute, fall back to TCP on localhost.
func EndpointFor(socketPath string, tcpPort int) Endpoint {
	if runtime.GOOS == "windows" || !strings.HasPrefix(socketPath, "/") {
		return Endpoint{Network: "tcp", Address: "localhost:" + strconv.Itoa(tcpPort)}
	}
	return Endpoint{Network: "unix", Address: socketPath}
}

// ErrDaemon wraps errors reported by the daemon itself.
var ErrDaemon = errors.New("daemon error")

// RemoteError is an error returned by the daemon for one command.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return "daemon error: " + e.Message
	}
	return fmt.Sprintf("daemon error (%s): %s", e.Code, e.Message)
}

// Is matches ErrDaemon and, by code, the slicer's sentinel errors.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrDaemon:
		return true
	case slicer.ErrParse:
		return e.Code == CodeParseError
	case slicer.ErrFocusNotFound:
		return e.Code == CodeFocusNotFound
	}
	return false
}

// RoundTrip sends cmd to the daemon at ep and decodes its reply. Daemon side
// failures come back as *RemoteError.
func RoundTrip(ep Endpoint, cmd Command, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout(ep.Network, ep.Address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("sending command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.Error != "" {
		return &resp, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return &resp, nil
}
