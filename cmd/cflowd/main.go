// Package main implements the cflow daemon (cflowd).
// It serves slice, batch and graph requests over a Unix domain socket
// (TCP on Windows) and keeps analysed graphs cached between requests.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/log"
)

var version = "dev"

func main() {
	socketPath := ""
	configPath := ""
	verbose := false

	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "-socket", "--socket":
			if i+1 < len(os.Args) {
				socketPath = os.Args[i+1]
				i++
			}
		case "-config", "--config":
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				i++
			}
		case "-v", "--verbose", "-verbose":
			verbose = true
		case "-version", "--version":
			fmt.Printf("cflowd version %s\n", version)
			os.Exit(0)
		case "-h", "--help", "-help":
			fmt.Println("Usage: cflowd [options]")
			fmt.Println("Options:")
			fmt.Println("  -socket PATH   Unix socket path (default: $TMPDIR/cflow.sock)")
			fmt.Println("  -config PATH   Config file path")
			fmt.Println("  -v, -verbose   Verbose logging")
			fmt.Println("  -h, -help      Show this help")
			os.Exit(0)
		}
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cflowd: %v, using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	level := log.InfoLevel
	if verbose || cfg.Verbose {
		level = log.DebugLevel
	}
	logger := log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.LogJSON,
		Output:     os.Stderr,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger log.Logger) error {
	server := daemon.NewServer(cfg,
		daemon.WithVersion(version),
		daemon.WithServerLogger(logger),
	)

	if err := server.LoadState(); err != nil {
		logger.Warn("discarding saved state", "error", err)
	}

	pid := os.Getpid()
	if recorded, err := daemon.ReadPID(); err != nil || recorded != pid {
		if err := daemon.WritePID(pid); err != nil {
			return err
		}
	}
	started := time.Now()
	if err := daemon.WriteStatus(&daemon.DaemonStatus{
		Running:   true,
		PID:       pid,
		Ready:     true,
		StartedAt: started,
		Version:   version,
	}); err != nil {
		logger.Warn("writing status file", "error", err)
	}
	defer func() {
		if recorded, err := daemon.ReadPID(); err == nil && recorded == pid {
			daemon.RemovePID()
			daemon.RemoveStatus()
		}
	}()

	logger.Info("starting cflowd", "version", version, "pid", pid)
	serveErr := server.ListenAndServe()

	if err := server.SaveState(); err != nil {
		logger.Error("saving state", "error", err)
	}
	logger.Info("cflowd stopped", "uptime", time.Since(started).Round(time.Second).String())
	return serveErr
}
