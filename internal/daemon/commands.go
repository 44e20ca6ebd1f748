package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// DaemonBinary is the executable name of the daemon.
const DaemonBinary = "cflowd"

// StartOptions contains options for starting the daemon
type StartOptions struct {
	// DaemonPath is the path to the daemon executable
	DaemonPath string
	// Endpoint is where the daemon listens and is pinged
	Endpoint Endpoint
	// SocketPath and TCPPort are forwarded to the daemon environment
	SocketPath string
	TCPPort    int
	// ConfigPath is the path to the config file
	ConfigPath string
	// Verbose enables verbose logging
	Verbose bool
	// WaitForReady indicates whether to wait for the daemon to be ready
	WaitForReady bool
	// ReadyTimeout is the timeout for waiting daemon to be ready
	ReadyTimeout time.Duration
	// Background detaches the daemon from the CLI's session
	Background bool
}

// StartResult contains the result of a start operation
type StartResult struct {
	Success   bool      `json:"success"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Ready     bool      `json:"ready"`
}

// StopResult contains the result of a stop operation
type StopResult struct {
	Success   bool      `json:"success"`
	PID       int       `json:"pid,omitempty"`
	StoppedAt time.Time `json:"stopped_at"`
	Error     string    `json:"error,omitempty"`
}

// StatusResult contains the result of a status operation
type StatusResult struct {
	Status    string      `json:"status"`
	Running   bool        `json:"running"`
	Ready     bool        `json:"ready"`
	PID       int         `json:"pid,omitempty"`
	Version   string      `json:"version,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
	Error     string      `json:"error,omitempty"`
	Info      *StatusInfo `json:"info,omitempty"`
}

// Start starts the daemon
func Start(opts *StartOptions) (*StartResult, error) {
	status, err := CheckStatus(opts.Endpoint)
	if err == nil && status.Running && status.Ready {
		return &StartResult{
			Success: false,
			PID:     status.PID,
			Error:   "daemon already running",
		}, nil
	}

	daemonPath := opts.DaemonPath
	if daemonPath == "" {
		daemonPath = findDaemonBinary()
		if daemonPath == "" {
			return nil, fmt.Errorf("daemon binary %s not found", DaemonBinary)
		}
	}

	var args []string
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}

	cmd := exec.Command(daemonPath, args...)
	cmd.Env = os.Environ()
	if opts.SocketPath != "" {
		cmd.Env = append(cmd.Env, "CFLOW_SOCKET_PATH="+opts.SocketPath)
	}
	if opts.TCPPort > 0 {
		cmd.Env = append(cmd.Env, "CFLOW_TCP_PORT="+strconv.Itoa(opts.TCPPort))
	}
	if opts.Background {
		detach(cmd)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting daemon: %w", err)
	}

	pid := cmd.Process.Pid
	startedAt := time.Now()

	if err := WritePID(pid); err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("writing PID file: %w", err)
	}

	if err := WriteStatus(&DaemonStatus{
		Running:   true,
		PID:       pid,
		StartedAt: startedAt,
	}); err != nil {
		cmd.Process.Kill()
		RemovePID()
		return nil, fmt.Errorf("writing status: %w", err)
	}

	result := &StartResult{
		Success:   true,
		PID:       pid,
		StartedAt: startedAt,
	}

	if opts.WaitForReady {
		timeout := opts.ReadyTimeout
		if timeout <= 0 {
			timeout = ReadyTimeout
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, err := waitForReady(waitCtx, opts.Endpoint, timeout); err != nil {
			cmd.Process.Kill()
			RemovePID()
			RemoveStatus()
			return &StartResult{
				Success:   false,
				PID:       pid,
				StartedAt: startedAt,
				Error:     fmt.Sprintf("daemon not ready: %v", err),
			}, nil
		}

		WriteStatus(&DaemonStatus{
			Running:   true,
			PID:       pid,
			Ready:     true,
			StartedAt: startedAt,
		})
		result.Ready = true
	}

	// Reap the child when it exits so it does not linger as a zombie
	// while the CLI is still running.
	go cmd.Wait()

	return result, nil
}

// findDaemonBinary finds the daemon binary path
func findDaemonBinary() string {
	name := DaemonBinary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if path := os.Getenv("CFLOW_DAEMON_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Next to the running CLI
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, dir := range []string{filepath.Join(".", "bin"), filepath.Join("..", "bin")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

// waitForReady waits for the daemon at ep to answer a status ping.
// It checks the context for cancellation and respects context deadlines.
func waitForReady(ctx context.Context, ep Endpoint, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if info, err := Ping(ep); err == nil && info.Status == "running" {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return false, fmt.Errorf("timeout waiting for daemon to be ready")
}

// Stop stops the daemon, asking it to shut down through ep before
// killing the process.
func Stop(ep Endpoint) (*StopResult, error) {
	if !PIDExists() {
		return &StopResult{
			Success: false,
			Error:   "daemon not running (no PID file)",
		}, nil
	}

	pid, err := ReadPID()
	if err != nil {
		return &StopResult{
			Success: false,
			Error:   fmt.Sprintf("failed to read PID: %v", err),
		}, nil
	}

	if !IsProcessRunning(pid) {
		RemovePID()
		RemoveStatus()
		return &StopResult{
			Success: false,
			Error:   "daemon not running (process not found)",
		}, nil
	}

	// Try graceful shutdown first so the daemon persists its cache
	if err := sendStopCommand(ep); err == nil {
		if waitForShutdown(pid, ShutdownTimeout) {
			RemovePID()
			RemoveStatus()
			return &StopResult{
				Success:   true,
				PID:       pid,
				StoppedAt: time.Now(),
			}, nil
		}
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		RemovePID()
		RemoveStatus()
		return &StopResult{
			Success:   true,
			PID:       pid,
			StoppedAt: time.Now(),
			Error:     "process already terminated",
		}, nil
	}

	if err := process.Kill(); err != nil {
		return &StopResult{
			Success: false,
			PID:     pid,
			Error:   fmt.Sprintf("failed to kill process: %v", err),
		}, nil
	}

	waitForShutdown(pid, 2*time.Second)

	RemovePID()
	RemoveStatus()

	return &StopResult{
		Success:   true,
		PID:       pid,
		StoppedAt: time.Now(),
	}, nil
}

// sendStopCommand sends a stop command to the daemon at ep
func sendStopCommand(ep Endpoint) error {
	_, err := RoundTrip(ep, Command{Type: CmdStop, ID: "stop-cmd"}, ShutdownTimeout)
	return err
}

// waitForShutdown waits for the process to shutdown
func waitForShutdown(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// GetStatus returns a formatted status result for the daemon at ep
func GetStatus(ep Endpoint) (*StatusResult, error) {
	status, err := CheckStatus(ep)
	if err != nil {
		return &StatusResult{
			Status: "unknown",
			Error:  err.Error(),
		}, nil
	}

	result := &StatusResult{
		Running:   status.Running,
		Ready:     status.Ready,
		PID:       status.PID,
		Version:   status.Version,
		StartedAt: status.StartedAt,
		Error:     status.Error,
	}

	switch {
	case !status.Running:
		result.Status = "stopped"
	case !status.Ready:
		result.Status = "starting"
	default:
		result.Status = "running"
		if info, err := Ping(ep); err == nil {
			result.Info = info
		}
	}

	return result, nil
}
