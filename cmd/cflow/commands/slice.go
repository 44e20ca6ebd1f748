package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/output"
	"github.com/l3aro/cflow/pkg/slicer"
)

var sliceCmd = &cobra.Command{
	Use:   "slice <file> --line N --var NAME [--backward|--forward|--both] [--function NAME] [--json]",
	Short: "Classify the lines of a function around a focus variable",
	Long: `Slice the function enclosing the focus line and classify every one of its
lines as relevant or dimmed.

Backward slice: lines whose computations may affect the variable at the line.
Forward slice: lines that may be affected by the variable at the line.
Both: the union of the two.

The function is located with tree-sitter for C, C++ and Java sources and by
brace matching otherwise. Use --function to name it, or --start/--end to give
its line range directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		src, err := readSourceFile(path)
		if err != nil {
			return err
		}

		line, _ := cmd.Flags().GetInt("line")
		if line <= 0 {
			return fmt.Errorf("line number must be positive: %d", line)
		}
		variable, _ := cmd.Flags().GetString("var")
		direction, err := directionFlag(cmd)
		if err != nil {
			return err
		}

		target, err := targetFlags(cmd, path, line)
		if err != nil {
			return err
		}

		cfg, _, err := LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := NewLogger(cmd, cfg)
		router := newRouter(cmd, cfg, logger)

		resp, err := router.Slice(cmd.Context(), daemon.SliceParams{
			Target:    target,
			Variable:  variable,
			Direction: direction,
		})
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), resp)
		}

		lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
		NewPrinter(cmd, cfg).Slice(resp, classifiedRange(resp), lines)
		return nil
	},
}

// directionFlag returns the direction selected by --backward, --forward or
// --both, or "" for the configured default.
func directionFlag(cmd *cobra.Command) (string, error) {
	var selected []string
	for _, name := range []string{"backward", "forward", "both"} {
		if on, _ := cmd.Flags().GetBool(name); on {
			selected = append(selected, name)
		}
	}
	switch len(selected) {
	case 0:
		return "", nil
	case 1:
		return selected[0], nil
	}
	return "", fmt.Errorf("--%s are mutually exclusive", strings.Join(selected, ", --"))
}

// targetFlags builds the analysis target from --function, --start and
// --end. Without them the function enclosing line is analysed.
func targetFlags(cmd *cobra.Command, path string, line int) (slicer.Target, error) {
	target := slicer.Target{Path: path, Line: line}
	target.Function, _ = cmd.Flags().GetString("function")

	start, _ := cmd.Flags().GetInt("start")
	end, _ := cmd.Flags().GetInt("end")
	if start > 0 || end > 0 {
		if start <= 0 || end < start {
			return target, fmt.Errorf("invalid range %d-%d", start, end)
		}
		target.Range = slicer.Range{Start: start, End: end}
	}
	return target, nil
}

// classifiedRange is the line range covered by a response.
func classifiedRange(resp *slicer.Response) slicer.Range {
	var r slicer.Range
	for line := range resp.Classes {
		if r.Start == 0 || line < r.Start {
			r.Start = line
		}
		if line > r.End {
			r.End = line
		}
	}
	return r
}

func init() {
	sliceCmd.Flags().IntP("line", "l", 0, "Focus line (required)")
	sliceCmd.Flags().String("var", "", "Focus variable (required)")
	sliceCmd.Flags().BoolP("backward", "b", false, "Backward slice")
	sliceCmd.Flags().BoolP("forward", "f", false, "Forward slice")
	sliceCmd.Flags().Bool("both", false, "Union of backward and forward slices")
	sliceCmd.Flags().String("function", "", "Function to analyse (default: the function enclosing --line)")
	sliceCmd.Flags().Int("start", 0, "First line of the function, with --end")
	sliceCmd.Flags().Int("end", 0, "Last line of the function, with --start")
	sliceCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	_ = sliceCmd.MarkFlagRequired("line")
	_ = sliceCmd.MarkFlagRequired("var")

	RootCmd.AddCommand(sliceCmd)
}
