// Package daemon runs the cflow slicing daemon and manages its lifecycle.
// It handles PID file management, status tracking, and the start/stop/status
// commands used by the CLI.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDir is the default directory for daemon files
	DefaultDir = ".cflow"
	// PIDFileName is the name of the PID file
	PIDFileName = "daemon.pid"
	// StatusFileName is the name of the status file
	StatusFileName = "daemon.status"
	// ReadyTimeout is the timeout for waiting daemon to be ready
	ReadyTimeout = 10 * time.Second
	// ShutdownTimeout is the timeout for waiting daemon to shutdown
	ShutdownTimeout = 5 * time.Second
	// pingTimeout bounds one status round trip
	pingTimeout = 2 * time.Second
)

// DaemonDir returns the path to the daemon directory
func DaemonDir() string {
	if dir := os.Getenv("CFLOW_DAEMON_DIR"); dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDir
	}
	return filepath.Join(cwd, DefaultDir)
}

// PIDFile returns the path to the PID file
func PIDFile() string {
	return filepath.Join(DaemonDir(), PIDFileName)
}

// StatusFile returns the path to the status file
func StatusFile() string {
	return filepath.Join(DaemonDir(), StatusFileName)
}

func ensureDaemonDir() error {
	if err := os.MkdirAll(DaemonDir(), 0755); err != nil {
		return fmt.Errorf("creating daemon directory: %w", err)
	}
	return nil
}

// WritePID writes the PID to the PID file
func WritePID(pid int) error {
	if err := ensureDaemonDir(); err != nil {
		return err
	}
	if err := os.WriteFile(PIDFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	return nil
}

// ReadPID reads the PID from the PID file
func ReadPID() (int, error) {
	data, err := os.ReadFile(PIDFile())
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}

// RemovePID removes the PID file
func RemovePID() error {
	if err := os.Remove(PIDFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// PIDExists checks if the PID file exists.
func PIDExists() bool {
	_, err := os.Stat(PIDFile())
	return err == nil
}

// DaemonStatus represents the status of the daemon
type DaemonStatus struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Ready     bool      `json:"ready"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Error     string    `json:"error,omitempty"`
	Version   string    `json:"version,omitempty"`
}

// WriteStatus writes the status to the status file
func WriteStatus(status *DaemonStatus) error {
	if err := ensureDaemonDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	if err := os.WriteFile(StatusFile(), data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// ReadStatus reads the status from the status file
func ReadStatus() (*DaemonStatus, error) {
	data, err := os.ReadFile(StatusFile())
	if err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}
	var status DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}
	return &status, nil
}

// RemoveStatus removes the status file
func RemoveStatus() error {
	if err := os.Remove(StatusFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing status file: %w", err)
	}
	return nil
}

// Ping asks the daemon at ep for its status.
func Ping(ep Endpoint) (*StatusInfo, error) {
	resp, err := RoundTrip(ep, Command{Type: CmdStatus, ID: "ping"}, pingTimeout)
	if err != nil {
		return nil, err
	}
	var info StatusInfo
	if err := json.Unmarshal(resp.Result, &info); err != nil {
		return nil, fmt.Errorf("invalid status response: %w", err)
	}
	return &info, nil
}

// CheckStatus combines the PID file with a ping of the daemon at ep.
// Stale PID and status files are removed.
func CheckStatus(ep Endpoint) (*DaemonStatus, error) {
	if !PIDExists() {
		return &DaemonStatus{}, nil
	}

	pid, err := ReadPID()
	if err != nil {
		return &DaemonStatus{
			Error: fmt.Sprintf("failed to read PID: %v", err),
		}, nil
	}

	if !IsProcessRunning(pid) {
		RemovePID()
		RemoveStatus()
		return &DaemonStatus{}, nil
	}

	info, err := Ping(ep)
	if err != nil {
		return &DaemonStatus{
			Running: true,
			PID:     pid,
			Error:   fmt.Sprintf("daemon not responding: %v", err),
		}, nil
	}

	return &DaemonStatus{
		Running:   true,
		PID:       pid,
		Ready:     info.Status == "running",
		StartedAt: info.StartedAt,
		Version:   info.Version,
	}, nil
}

// IsRunning checks if the daemon at ep is running and answering.
func IsRunning(ep Endpoint) bool {
	status, err := CheckStatus(ep)
	return err == nil && status.Running && status.Ready
}
