package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/output"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file> [--line N | --function NAME] [--json]",
	Short: "Print the statements and dependence edges of a function",
	Long: `Analyse one function and print its statement table (kind, definitions,
uses, governing header, jump) followed by its control and data dependence
edges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := readSourceFile(path); err != nil {
			return err
		}

		line, _ := cmd.Flags().GetInt("line")
		target, err := targetFlags(cmd, path, line)
		if err != nil {
			return err
		}
		if target.Function == "" && target.Range.Start == 0 && line <= 0 {
			return fmt.Errorf("one of --line, --function or --start/--end is required")
		}

		cfg, _, err := LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		router := newRouter(cmd, cfg, NewLogger(cmd, cfg))

		g, err := router.Graph(cmd.Context(), daemon.GraphParams{Target: target})
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), g)
		}

		if err := NewPrinter(cmd, cfg).Graph(g.Function, g.Statements, g.Edges); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "range: %d-%d\n", g.Range.Start, g.Range.End)
		if len(g.Unresolved) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "unresolved: %s\n", strings.Join(g.Unresolved, ", "))
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().IntP("line", "l", 0, "A line inside the function")
	graphCmd.Flags().String("function", "", "Function to analyse")
	graphCmd.Flags().Int("start", 0, "First line of the function, with --end")
	graphCmd.Flags().Int("end", 0, "Last line of the function, with --start")
	graphCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(graphCmd)
}
