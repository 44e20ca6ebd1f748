// Package commands provides the CLI commands for cflow.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/log"
	"github.com/l3aro/cflow/internal/output"
	"github.com/l3aro/cflow/pkg/client"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cflow",
	Short: "cflow - Dependence-based slicing for C-like functions",
	Long: `cflow classifies the lines of one function as relevant or dimmed with
respect to a variable at a line, following data and control dependences.

Commands:
  slice       Classify the lines of a function around a focus variable
  graph       Print the statements and dependence edges of a function
  locate      Find the function enclosing a line
  init        Create a configuration file interactively
  doctor      Check configuration, grammars, cache and daemon
  start       Start the daemon
  stop        Stop the daemon
  status      Show daemon status

Use "cflow [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: project, then global config)")
	RootCmd.PersistentFlags().Bool("verbose", false, "Verbose logging")
	RootCmd.PersistentFlags().Bool("no-daemon", false, "Never use the daemon, analyse in this process")
	RootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
}

// LoadConfig loads the configuration named by --config, or the merged
// project and global configuration. It returns the file in effect, empty
// when only defaults and environment apply.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}

	path := ""
	if fileExists(config.ProjectConfigFilePath()) {
		path = config.ProjectConfigFilePath()
	} else if fileExists(config.GlobalConfigFilePath()) {
		path = config.GlobalConfigFilePath()
	}
	return cfg, path, nil
}

// NewLogger creates the CLI logger. Warnings only unless --verbose or the
// config asks for more.
func NewLogger(cmd *cobra.Command, cfg *config.Config) log.Logger {
	level := log.WarnLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || cfg.Verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.LogJSON,
		Output:     os.Stderr,
	})
}

// NewPrinter creates the stdout printer honouring --no-color.
func NewPrinter(cmd *cobra.Command, cfg *config.Config) *output.Printer {
	mode := cfg.Color
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		mode = config.ColorNever
	}
	return output.NewPrinter(cmd.OutOrStdout(), mode)
}

// NewClient creates a daemon client for the configured endpoint.
func NewClient(cfg *config.Config) *client.Client {
	return client.New(
		client.WithSocketPath(cfg.SocketPath),
		client.WithTCPPort(cfg.TCPPort),
		client.WithTimeout(cfg.RequestTimeout),
	)
}

// newRouter routes requests to the daemon when one answers.
func newRouter(cmd *cobra.Command, cfg *config.Config, logger log.Logger) *client.Router {
	opts := []client.RouterOption{
		client.WithClient(NewClient(cfg)),
		client.WithExecutor(client.NewExecutor(cfg, logger)),
		client.WithRouterLogger(logger),
	}
	if noDaemon, _ := cmd.Flags().GetBool("no-daemon"); noDaemon {
		opts = append(opts, client.WithoutDaemon())
	}
	return client.NewRouter(opts...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// readSourceFile reads a file given on the command line.
func readSourceFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	return os.ReadFile(path)
}
