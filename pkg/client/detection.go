package client

import (
	"fmt"
	"time"

	"github.com/l3aro/cflow/internal/daemon"
)

// DaemonInfo contains information about a running daemon
type DaemonInfo struct {
	PID       int
	Endpoint  daemon.Endpoint
	Ready     bool
	StartedAt time.Time
	Version   string
}

// IsRunning checks if the daemon the client talks to is running, using
// both the PID file and a status ping.
func (c *Client) IsRunning() bool {
	return daemon.IsRunning(c.Endpoint())
}

// DetectDaemon checks if the daemon is running and returns info. A daemon
// whose process exists but does not answer is reported as not ready.
func (c *Client) DetectDaemon() (*DaemonInfo, error) {
	status, err := daemon.CheckStatus(c.Endpoint())
	if err != nil {
		return nil, err
	}
	if !status.Running {
		if status.Error != "" {
			return nil, fmt.Errorf("daemon not running: %s", status.Error)
		}
		return nil, fmt.Errorf("daemon not running")
	}
	return &DaemonInfo{
		PID:       status.PID,
		Endpoint:  c.Endpoint(),
		Ready:     status.Ready,
		StartedAt: status.StartedAt,
		Version:   status.Version,
	}, nil
}
