package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/healthcheck"
	"github.com/l3aro/cflow/internal/output"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, grammars, cache and daemon",
	Long: `Validates the configuration in effect, parses a sample function with each
tree-sitter grammar, decodes the persisted graph cache and pings the daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		result, err := healthcheck.Check(cfg, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		if configPath == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Using defaults (no config file found, run 'cflow init' to create one)")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		displayDoctorResult(cmd, NewPrinter(cmd, cfg), result)

		if result.HasErrors() {
			return fmt.Errorf("health check failed: one or more components are not usable")
		}
		return nil
	},
}

func displayDoctorResult(cmd *cobra.Command, p *output.Printer, result *healthcheck.HealthCheckResult) {
	w := cmd.OutOrStdout()
	show := func(s healthcheck.ComponentStatus) {
		fmt.Fprintf(w, "  %s %-8s %s", p.StatusIcon(s.Status), s.Name, s.Status)
		if s.Detail != "" {
			fmt.Fprintf(w, "  %s", s.Detail)
		}
		fmt.Fprintln(w)
		if s.Error != "" {
			fmt.Fprintf(w, "      Error: %s\n", s.Error)
		}
	}

	fmt.Fprintln(w, "Configuration:")
	show(result.Config)

	fmt.Fprintln(w, "\nGrammars:")
	for _, g := range result.Grammars {
		show(g)
	}

	fmt.Fprintln(w, "\nGraph cache:")
	show(result.Cache)

	fmt.Fprintln(w, "\nDaemon:")
	show(result.Daemon)
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
