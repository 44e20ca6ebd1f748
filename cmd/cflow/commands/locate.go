package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/cflow/internal/output"
	"github.com/l3aro/cflow/internal/scanner"
	"github.com/l3aro/cflow/pkg/locate"
)

var locateCmd = &cobra.Command{
	Use:   "locate <file|dir> [--line N] [--json]",
	Short: "List functions, or find the function enclosing a line",
	Long: `List the functions defined in a file, or in every C, C++, Java or other
C-like source below a directory (honouring .cflowignore files). With --line,
print only the function of the file that encloses the line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		jsonOutput, _ := cmd.Flags().GetBool("json")
		line, _ := cmd.Flags().GetInt("line")

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			if line > 0 {
				return fmt.Errorf("--line needs a file, got directory %s", path)
			}
			return locateTree(cmd, path, jsonOutput)
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var funcs []locate.Function
		if line > 0 {
			fn, err := locate.Enclosing(cmd.Context(), path, src, line)
			if err != nil {
				return err
			}
			funcs = []locate.Function{*fn}
		} else {
			funcs, err = locate.Functions(cmd.Context(), path, src)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), funcs)
		}
		printFunctions(cmd.OutOrStdout(), "", funcs)
		return nil
	},
}

func locateTree(cmd *cobra.Command, root string, jsonOutput bool) error {
	cfg, _, err := LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	results, err := scanner.New(scanner.DefaultOptions()).Functions(cmd.Context(), root, cfg.Workers)
	if err != nil {
		return err
	}
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), results)
	}

	logger := NewLogger(cmd, cfg)
	for _, r := range results {
		if r.Error != "" {
			logger.Warn("skipping file", "path", r.File.Path, "error", r.Error)
			continue
		}
		printFunctions(cmd.OutOrStdout(), r.File.Path, r.Functions)
	}
	return nil
}

func printFunctions(w io.Writer, file string, funcs []locate.Function) {
	for _, fn := range funcs {
		lang := string(fn.Language)
		if lang == "" {
			lang = "braces"
		}
		if file != "" {
			fmt.Fprintf(w, "%s:%d-%d\t%s\t%s\n", file, fn.Start, fn.End, fn.Name, lang)
			continue
		}
		fmt.Fprintf(w, "%s\t%d-%d\t%s\n", fn.Name, fn.Start, fn.End, lang)
	}
}

func init() {
	locateCmd.Flags().IntP("line", "l", 0, "Find the function enclosing this line")
	locateCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	RootCmd.AddCommand(locateCmd)
}
