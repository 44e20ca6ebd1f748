package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/pkg/cache"
	"github.com/l3aro/cflow/pkg/locate"
	"github.com/l3aro/cflow/pkg/pdg"
)

// Status values reported for a component.
const (
	StatusReady    = "ready"
	StatusDisabled = "disabled"
	StatusEmpty    = "empty"
	StatusStopped  = "stopped"
	StatusError    = "error"
)

// ComponentStatus represents the health status of one component.
type ComponentStatus struct {
	Name   string
	Detail string
	Status string
	Error  string
}

// OK reports whether the component is usable.
func (s ComponentStatus) OK() bool {
	return s.Status != StatusError
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Config         ComponentStatus
	Grammars       []ComponentStatus
	Cache          ComponentStatus
	Daemon         ComponentStatus
}

// HasErrors reports whether any component failed.
func (r *HealthCheckResult) HasErrors() bool {
	if !r.Config.OK() || !r.Cache.OK() || !r.Daemon.OK() {
		return true
	}
	for _, g := range r.Grammars {
		if !g.OK() {
			return true
		}
	}
	return false
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Config = checkConfig(cfg)
	result.Grammars = checkGrammars()
	result.Cache = checkCache(cfg)
	result.Daemon = checkDaemon(daemon.EndpointFor(cfg.SocketPath, cfg.TCPPort))

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".cflow")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkConfig(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{
		Name:   "config",
		Detail: fmt.Sprintf("direction=%s keep_frame=%t workers=%d", cfg.Direction, cfg.KeepFrame, cfg.Workers),
		Status: StatusReady,
	}
	if err := cfg.Validate(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
	}
	return status
}

// grammarSamples holds one minimal function per grammar, keyed by a file
// name whose extension selects the grammar.
var grammarSamples = []struct {
	file string
	src  string
	name string
}{
	{"probe.c", "int probe(int x) {\n  return x;\n}\n", "probe"},
	{"probe.cpp", "namespace p {\nint probe(int x) {\n  return x;\n}\n}\n", "probe"},
	{"Probe.java", "class Probe {\n  int probe(int x) {\n    return x;\n  }\n}\n", "probe"},
}

// checkGrammars parses a sample function with every tree-sitter grammar
// the locator uses.
func checkGrammars() []ComponentStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	statuses := make([]ComponentStatus, 0, len(grammarSamples))
	for _, s := range grammarSamples {
		status := ComponentStatus{
			Name:   string(locate.DetectLanguage(s.file)),
			Detail: s.file,
		}
		fn, err := locate.ByName(ctx, s.file, []byte(s.src), s.name)
		switch {
		case err != nil:
			status.Status = StatusError
			status.Error = err.Error()
		case fn.Language != locate.DetectLanguage(s.file):
			status.Status = StatusError
			status.Error = fmt.Sprintf("located with %q instead of the grammar", fn.Language)
		default:
			status.Status = StatusReady
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// checkCache verifies that the persisted graph cache can be decoded.
func checkCache(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{
		Name:   "cache",
		Detail: cfg.CachePath,
	}
	if !cfg.CacheEnabled() {
		status.Status = StatusDisabled
		return status
	}

	if _, err := os.Stat(cfg.CachePath); err != nil {
		if os.IsNotExist(err) {
			status.Status = StatusEmpty
			return status
		}
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	graphs := cache.New(cache.Options[*pdg.PDGInfo]{MaxSize: cfg.CacheSize})
	if err := cache.LoadFromFile[*pdg.PDGInfo](graphs, cfg.CachePath); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%s (%d graphs)", cfg.CachePath, graphs.Len())
	return status
}

// checkDaemon reports whether a daemon answers on ep. A stopped daemon is
// not an error; a recorded daemon that does not answer is.
func checkDaemon(ep daemon.Endpoint) ComponentStatus {
	status := ComponentStatus{
		Name:   "daemon",
		Detail: ep.String(),
	}
	ds, err := daemon.CheckStatus(ep)
	switch {
	case err != nil:
		status.Status = StatusError
		status.Error = err.Error()
	case !ds.Running:
		status.Status = StatusStopped
	case ds.Ready:
		status.Status = StatusReady
		status.Detail = fmt.Sprintf("%s (pid %d)", ep, ds.PID)
	default:
		status.Status = StatusError
		status.Error = ds.Error
		if status.Error == "" {
			status.Error = fmt.Sprintf("process %d is not answering", ds.PID)
		}
	}
	return status
}
