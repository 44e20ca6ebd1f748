package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unreachable is an endpoint nothing listens on.
var unreachable = Endpoint{Network: "unix", Address: "/nonexistent/cflow-test.sock"}

func TestDaemonDir(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", "")
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, DefaultDir)

	if result := DaemonDir(); result != expected {
		t.Errorf("Expected %q, got %q", expected, result)
	}
}

func TestDaemonDirWithEnv(t *testing.T) {
	testDir := "/tmp/cflow-test-dir"
	t.Setenv("CFLOW_DAEMON_DIR", testDir)

	if result := DaemonDir(); result != testDir {
		t.Errorf("Expected %q, got %q", testDir, result)
	}
	if result := PIDFile(); result != filepath.Join(testDir, PIDFileName) {
		t.Errorf("PIDFile() = %q", result)
	}
	if result := StatusFile(); result != filepath.Join(testDir, StatusFileName) {
		t.Errorf("StatusFile() = %q", result)
	}
}

func TestWriteAndReadPID(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	tests := []struct {
		name string
		pid  int
	}{
		{"valid pid 12345", 12345},
		{"valid pid 1", 1},
		{"valid current pid", os.Getpid()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := WritePID(tt.pid); err != nil {
				t.Fatalf("WritePID() error = %v", err)
			}
			got, err := ReadPID()
			if err != nil {
				t.Fatalf("ReadPID() error = %v", err)
			}
			if got != tt.pid {
				t.Errorf("ReadPID() = %d, want %d", got, tt.pid)
			}
			RemovePID()
		})
	}
}

func TestReadPIDNoFile(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	if _, err := ReadPID(); err == nil {
		t.Error("Expected error when reading non-existent PID file")
	}
}

func TestReadPIDInvalidContent(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CFLOW_DAEMON_DIR", tmpDir)

	tests := []struct {
		name      string
		content   string
		wantError bool
	}{
		{"invalid - letters", "abc", true},
		{"invalid - empty", "", true},
		{"invalid - mixed", "12abc", true},
		{"valid - with newline", "12345\n", false},
		{"valid - with spaces", "  12345  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(tmpDir, PIDFileName), []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write PID file: %v", err)
			}

			_, err := ReadPID()
			if tt.wantError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestPIDExistsAndRemove(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CFLOW_DAEMON_DIR", tmpDir)

	if PIDExists() {
		t.Error("Expected false when PID file does not exist")
	}
	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID() on non-existent file error = %v", err)
	}

	if err := WritePID(12345); err != nil {
		t.Fatalf("WritePID() error = %v", err)
	}
	if !PIDExists() {
		t.Error("Expected true when PID file exists")
	}

	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID() error = %v", err)
	}
	if PIDExists() {
		t.Error("Expected false after removing PID file")
	}
}

func TestWriteAndReadStatus(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", filepath.Join(t.TempDir(), "nested"))

	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := &DaemonStatus{
		Running:   true,
		PID:       4242,
		Ready:     true,
		StartedAt: startedAt,
		Version:   "1.2.3",
	}

	if err := WriteStatus(status); err != nil {
		t.Fatalf("WriteStatus() error = %v", err)
	}

	got, err := ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if got.PID != 4242 || !got.Running || !got.Ready || got.Version != "1.2.3" {
		t.Errorf("ReadStatus() = %+v", got)
	}
	if !got.StartedAt.Equal(startedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, startedAt)
	}

	if err := RemoveStatus(); err != nil {
		t.Errorf("RemoveStatus() error = %v", err)
	}
	if _, err := ReadStatus(); err == nil {
		t.Error("Expected error after removing status file")
	}
	if err := RemoveStatus(); err != nil {
		t.Errorf("RemoveStatus() on missing file error = %v", err)
	}
}

func TestReadStatusInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CFLOW_DAEMON_DIR", tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, StatusFileName), []byte("{running"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadStatus(); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("Expected current process to be running")
	}
	if IsProcessRunning(999999999) {
		t.Error("Expected non-existent PID to not be running")
	}
}

func TestCheckStatusNoPIDFile(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	status, err := CheckStatus(unreachable)
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if status.Running || status.Ready {
		t.Errorf("CheckStatus() = %+v, want stopped", status)
	}
}

func TestCheckStatusWithStalePIDFile(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	if err := WritePID(999999999); err != nil {
		t.Fatal(err)
	}
	if err := WriteStatus(&DaemonStatus{Running: true, PID: 999999999}); err != nil {
		t.Fatal(err)
	}

	status, err := CheckStatus(unreachable)
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if status.Running {
		t.Error("Expected stale daemon to be reported as stopped")
	}
	if PIDExists() {
		t.Error("Stale PID file should have been cleaned up")
	}
	if _, err := ReadStatus(); err == nil {
		t.Error("Stale status file should have been cleaned up")
	}
}

func TestCheckStatusNotResponding(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	if err := WritePID(os.Getpid()); err != nil {
		t.Fatal(err)
	}

	status, err := CheckStatus(unreachable)
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if !status.Running || status.Ready {
		t.Errorf("CheckStatus() = %+v, want running but not ready", status)
	}
	if status.Error == "" {
		t.Error("Expected an error describing the failed ping")
	}
	if IsRunning(unreachable) {
		t.Error("IsRunning() = true for a daemon that does not answer")
	}
}

func TestConstants(t *testing.T) {
	if DefaultDir != ".cflow" {
		t.Errorf("Expected DefaultDir '.cflow', got %s", DefaultDir)
	}
	if PIDFileName != "daemon.pid" {
		t.Errorf("Expected PIDFileName 'daemon.pid', got %s", PIDFileName)
	}
	if ReadyTimeout <= 0 || ShutdownTimeout <= 0 {
		t.Error("Expected positive timeouts")
	}
}

func TestDaemonStatusJSON(t *testing.T) {
	status := DaemonStatus{Running: true, PID: 7, Error: "boom"}

	data, err := json.Marshal(status)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["running"] != true || decoded["pid"] != float64(7) || decoded["error"] != "boom" {
		t.Errorf("unexpected JSON: %s", data)
	}
	if _, ok := decoded["version"]; ok {
		t.Error("empty version should be omitted")
	}
}
