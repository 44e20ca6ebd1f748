package healthcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "graphs.msgpack")
	cfg.SocketPath = "/nonexistent/cflow-health.sock"
	return cfg
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "", "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckDefaults(t *testing.T) {
	cfg := testConfig(t)

	result, err := Check(cfg, "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.Config.Status != StatusReady {
		t.Errorf("Config.Status = %q, want %q (%s)", result.Config.Status, StatusReady, result.Config.Error)
	}
	if result.Cache.Status != StatusEmpty {
		t.Errorf("Cache.Status = %q, want %q", result.Cache.Status, StatusEmpty)
	}
	if result.Daemon.Status != StatusStopped {
		t.Errorf("Daemon.Status = %q, want %q", result.Daemon.Status, StatusStopped)
	}
	if result.HasErrors() {
		t.Errorf("HasErrors() = true for a default config: %+v", result)
	}
}

func TestCheckGrammars(t *testing.T) {
	statuses := checkGrammars()
	if len(statuses) != len(grammarSamples) {
		t.Fatalf("checkGrammars() returned %d statuses, want %d", len(statuses), len(grammarSamples))
	}
	for _, s := range statuses {
		if s.Status != StatusReady {
			t.Errorf("grammar %s (%s) = %q: %s", s.Name, s.Detail, s.Status, s.Error)
		}
	}
}

func TestCheckInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Direction = "sideways"

	result, err := Check(cfg, "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Config.Status != StatusError || result.Config.Error == "" {
		t.Errorf("Config = %+v, want error", result.Config)
	}
	if !result.HasErrors() {
		t.Error("HasErrors() = false with an invalid config")
	}
}

func TestCheckCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.CacheSize = 0
		if got := checkCache(cfg); got.Status != StatusDisabled {
			t.Errorf("checkCache() = %+v, want disabled", got)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		cfg := testConfig(t)
		if err := os.WriteFile(cfg.CachePath, []byte("not msgpack"), 0644); err != nil {
			t.Fatal(err)
		}
		if got := checkCache(cfg); got.Status != StatusError {
			t.Errorf("checkCache() = %+v, want error", got)
		}
	})
}

func TestCheckDaemonNotAnswering(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())
	if err := daemon.WritePID(os.Getpid()); err != nil {
		t.Fatal(err)
	}

	got := checkDaemon(daemon.Endpoint{Network: "unix", Address: "/nonexistent/cflow-health.sock"})
	if got.Status != StatusError {
		t.Errorf("checkDaemon() = %+v, want error", got)
	}
}

func TestScopeFromPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	globalPath := ""
	if home != "" {
		globalPath = filepath.Join(home, ".cflow", "config.yaml")
	}

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"empty path", "", ""},
		{"global path", globalPath, "global"},
		{"project path", "/project/.cflow/config.yaml", "project"},
		{"relative project path", ".cflow/config.yaml", "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.path == "" && tt.expected != "" {
				t.Skip("no home directory")
			}
			result := scopeFromPath(tt.path)
			if result != tt.expected {
				t.Errorf("scopeFromPath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}
