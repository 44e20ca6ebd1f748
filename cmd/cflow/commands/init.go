package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cflow configuration interactively",
	Long: `Guides you through setting up cflow configuration step by step.
Creates a config file with the default slice direction, cache and daemon settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

// initAnswers holds the values collected by the init form.
type initAnswers struct {
	Direction  string
	KeepFrame  bool
	CacheSize  string
	SocketPath string
	Color      string
	Location   string
}

func defaultAnswers() initAnswers {
	cfg := config.DefaultConfig()
	return initAnswers{
		Direction:  cfg.Direction,
		KeepFrame:  cfg.KeepFrame,
		CacheSize:  strconv.Itoa(cfg.CacheSize),
		SocketPath: cfg.SocketPath,
		Color:      string(cfg.Color),
		Location:   "project",
	}
}

// apply builds the config described by the answers.
func (a initAnswers) apply(cfg *config.Config) error {
	size, err := strconv.Atoi(a.CacheSize)
	if err != nil {
		return fmt.Errorf("cache size: %w", err)
	}
	cfg.Direction = a.Direction
	cfg.KeepFrame = a.KeepFrame
	cfg.CacheSize = size
	cfg.SocketPath = a.SocketPath
	cfg.Color = config.ColorMode(a.Color)
	return cfg.Validate()
}

// configPath returns where the answers say to save the file.
func (a initAnswers) configPath() string {
	if a.Location == "global" {
		return config.GlobalConfigFilePath()
	}
	return config.ProjectConfigFilePath()
}

func validateCacheSize(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must be zero or more")
	}
	return nil
}

func runInit(cmd *cobra.Command) error {
	answers := defaultAnswers()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default slice direction").
				Description("Used when a request does not name one").
				Options(
					huh.NewOption("Both (backward and forward)", "both"),
					huh.NewOption("Backward", "backward"),
					huh.NewOption("Forward", "forward"),
				).
				Value(&answers.Direction),
			huh.NewConfirm().
				Title("Keep the function frame visible?").
				Description("Signature and closing brace stay relevant").
				Value(&answers.KeepFrame),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Graph cache size").
				Description("Analysed functions kept in memory, 0 disables the cache").
				Validate(validateCacheSize).
				Value(&answers.CacheSize),
			huh.NewInput().
				Title("Daemon socket path").
				Value(&answers.SocketPath),
			huh.NewSelect[string]().
				Title("Coloured output").
				Options(
					huh.NewOption("Auto", string(config.ColorAuto)),
					huh.NewOption("Always", string(config.ColorAlways)),
					huh.NewOption("Never", string(config.ColorNever)),
				).
				Value(&answers.Color),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.cflow/config.yaml)", "project"),
					huh.NewOption("Global (~/.cflow/config.yaml)", "global"),
				).
				Value(&answers.Location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := answers.configPath()
	if fileExists(configPath) {
		var overwrite bool
		confirm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := answers.apply(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	printer := NewPrinter(cmd, cfg)
	printer.Success("Configuration saved to: %s", configPath)

	loaded, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	result, err := healthcheck.Check(loaded, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if abs, err := filepath.Abs(configPath); err == nil && result.SavedScope == "project" {
		configPath = abs
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nConfig Scope: %s\nConfig Path: %s\n\n", result.SavedScope, configPath)
	displayDoctorResult(cmd, printer, result)
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
