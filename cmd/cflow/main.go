// Package main implements the cflow CLI.
// It provides commands for slicing functions, inspecting their dependence
// graphs, and managing the daemon.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/cmd/cflow/commands"
	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/output"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	// Add start command
	startCmd := &cobra.Command{
		Use:   "start [flags]",
		Short: "Start daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonPath, _ := cmd.Flags().GetString("daemon")
			background, _ := cmd.Flags().GetBool("d")
			return runStart(cmd, daemonPath, background)
		},
	}
	startCmd.Flags().String("daemon", "", "Path to daemon binary")
	startCmd.Flags().BoolP("d", "d", false, "Run in background")

	// Add stop command
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}

	// Add status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return runStatus(cmd, jsonOutput)
		},
	}
	statusCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	commands.RootCmd.AddCommand(startCmd)
	commands.RootCmd.AddCommand(stopCmd)
	commands.RootCmd.AddCommand(statusCmd)

	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`cflow version {{.Version}}
`)
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	}

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

func endpoint(cfg *config.Config) daemon.Endpoint {
	return daemon.EndpointFor(cfg.SocketPath, cfg.TCPPort)
}

func runStart(cmd *cobra.Command, daemonPath string, background bool) error {
	cfg, configPath, err := commands.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath != "" {
		// The daemon runs from another directory when detached.
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	result, err := daemon.Start(&daemon.StartOptions{
		DaemonPath:   daemonPath,
		Endpoint:     endpoint(cfg),
		SocketPath:   cfg.SocketPath,
		TCPPort:      cfg.TCPPort,
		ConfigPath:   configPath,
		Verbose:      verbose,
		WaitForReady: true,
		ReadyTimeout: daemon.ReadyTimeout,
		Background:   background,
	})
	if err != nil {
		return err
	}

	printer := commands.NewPrinter(cmd, cfg)
	if !result.Success {
		if result.Error != "" {
			printer.Failure("Failed to start daemon: %s", result.Error)
		}
		if result.PID > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running with PID %d\n", result.PID)
		}
		return nil
	}

	printer.Success("Daemon started with PID %d", result.PID)
	return nil
}

func runStop(cmd *cobra.Command) error {
	cfg, _, err := commands.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result, err := daemon.Stop(endpoint(cfg))
	if err != nil {
		return err
	}

	printer := commands.NewPrinter(cmd, cfg)
	if !result.Success {
		if result.Error != "" {
			printer.Failure("Failed to stop daemon: %s", result.Error)
		}
		return nil
	}

	printer.Success("Daemon stopped (PID: %d)", result.PID)
	return nil
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, _, err := commands.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result, err := daemon.GetStatus(endpoint(cfg))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return output.JSON(w, result)
	}

	printer := commands.NewPrinter(cmd, cfg)
	fmt.Fprintf(w, "Status: %s %s\n", printer.StatusIcon(result.Status), result.Status)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
		return nil
	}
	if result.PID > 0 {
		fmt.Fprintf(w, "PID: %d\n", result.PID)
	}
	if result.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", result.Version)
	}
	if !result.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s\n", result.StartedAt.Format(time.RFC3339))
	}
	if info := result.Info; info != nil {
		fmt.Fprintf(w, "Endpoint: %s\n", endpoint(cfg))
		fmt.Fprintf(w, "Requests: %d\n", info.Requests)
		fmt.Fprintf(w, "Documents: %d\n", info.Documents)
		if info.Cache.Enabled {
			fmt.Fprintf(w, "Cache: %d graphs, %d bytes, hit rate %.0f%%\n",
				info.Cache.Entries, info.Cache.Bytes, info.Cache.HitRate*100)
		} else {
			fmt.Fprintln(w, "Cache: disabled")
		}
	}

	return nil
}
