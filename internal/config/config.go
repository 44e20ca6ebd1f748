package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ColorMode controls coloured terminal output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config holds all configuration for cflow
type Config struct {
	// Direction is the slice direction used when a request names none:
	// backward, forward or both.
	Direction string `yaml:"direction" env:"CFLOW_DIRECTION"`

	// KeepFrame keeps the function signature and closing brace relevant.
	KeepFrame bool `yaml:"keep_frame" env:"CFLOW_KEEP_FRAME"`

	// Graph cache settings
	CacheSize int    `yaml:"cache_size" env:"CFLOW_CACHE_SIZE"`
	CachePath string `yaml:"cache_path" env:"CFLOW_CACHE_PATH"`

	// Workers bounds concurrent slices in batch requests.
	Workers int `yaml:"workers" env:"CFLOW_WORKERS"`

	// Socket path for IPC communication, and the TCP port used instead on Windows
	SocketPath string `yaml:"socket_path" env:"CFLOW_SOCKET_PATH"`
	TCPPort    int    `yaml:"tcp_port" env:"CFLOW_TCP_PORT"`

	// RequestTimeout bounds one client round trip to the daemon.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CFLOW_REQUEST_TIMEOUT"`

	// Output
	Color ColorMode `yaml:"color" env:"CFLOW_COLOR"`

	// Logging
	Verbose bool `yaml:"verbose" env:"CFLOW_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"CFLOW_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Direction:      "both",
		KeepFrame:      true,
		CacheSize:      256,
		CachePath:      filepath.Join(".cflow", "cache", "graphs.msgpack"),
		Workers:        runtime.NumCPU(),
		SocketPath:     filepath.Join(os.TempDir(), "cflow.sock"),
		TCPPort:        9847,
		RequestTimeout: 5 * time.Second,
		Color:          ColorAuto,
		Verbose:        false,
		LogJSON:        false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.cflow/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cflow", "config.yaml")
	}
	return filepath.Join(home, ".cflow", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.cflow/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".cflow", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.cflow/config.yaml)
// 2. Environment variables
// 3. Global config (~/.cflow/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return load(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is
// not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numeric or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CFLOW_DIRECTION"); v != "" {
		cfg.Direction = v
	}
	if v := os.Getenv("CFLOW_KEEP_FRAME"); v != "" {
		cfg.KeepFrame = parseBool(v)
	}
	if v := os.Getenv("CFLOW_CACHE_SIZE"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CFLOW_CACHE_SIZE %q: %w", v, err)
		}
		cfg.CacheSize = i
	}
	if v := os.Getenv("CFLOW_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("CFLOW_WORKERS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CFLOW_WORKERS %q: %w", v, err)
		}
		cfg.Workers = i
	}
	if v := os.Getenv("CFLOW_SOCKET_PATH"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("CFLOW_TCP_PORT"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CFLOW_TCP_PORT %q: %w", v, err)
		}
		cfg.TCPPort = i
	}
	if v := os.Getenv("CFLOW_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CFLOW_REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("CFLOW_COLOR"); v != "" {
		cfg.Color = ColorMode(strings.ToLower(v))
	}
	if v := os.Getenv("CFLOW_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("CFLOW_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	return nil
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	switch c.Direction {
	case "backward", "forward", "both":
	default:
		return fmt.Errorf("invalid direction: %s (must be 'backward', 'forward' or 'both')", c.Direction)
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path is required")
	}
	if c.TCPPort <= 0 || c.TCPPort > 65535 {
		return fmt.Errorf("tcp_port must be between 1 and 65535")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color: %s (must be 'auto', 'always' or 'never')", c.Color)
	}

	return nil
}

// CacheEnabled reports whether analysed graphs are cached.
func (c *Config) CacheEnabled() bool {
	return c.CacheSize > 0
}

// parseBool accepts the usual spellings of true; anything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
