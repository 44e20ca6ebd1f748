// Package output renders slices and dependence graphs for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/slicer"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Printer writes human-readable output, coloured when enabled.
type Printer struct {
	w        io.Writer
	colored  bool
	relevant *color.Color
	dimmed   *color.Color
	focus    *color.Color
	title    *color.Color
	failed   *color.Color
}

// NewPrinter creates a printer for w. ColorAuto colours only terminals.
func NewPrinter(w io.Writer, mode config.ColorMode) *Printer {
	if w == nil {
		w = os.Stdout
	}
	p := &Printer{
		w:        w,
		colored:  useColor(w, mode),
		relevant: color.New(color.FgGreen),
		dimmed:   color.New(color.Faint),
		focus:    color.New(color.Bold, color.FgCyan),
		title:    color.New(color.Bold),
		failed:   color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.relevant, p.dimmed, p.focus, p.title, p.failed} {
		if p.colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func useColor(w io.Writer, mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if color.NoColor {
		return false
	}
	// color.NoColor already reflects whether stdout is a terminal.
	f, ok := w.(*os.File)
	return ok && f == os.Stdout
}

// Colored reports whether the printer emits colour.
func (p *Printer) Colored() bool {
	return p.colored
}

// Slice prints every line of the response's range, marking relevant lines
// and fading dimmed ones. lines holds the whole source file, 1-based lines
// mapping to lines[n-1].
func (p *Printer) Slice(resp *slicer.Response, r slicer.Range, lines []string) {
	title := fmt.Sprintf("%s slice of %s at line %d", resp.Direction, resp.Variable, resp.Line)
	if resp.Function != "" {
		title += " in " + resp.Function
	}
	p.title.Fprintln(p.w, title)

	width := len(strconv.Itoa(r.End))
	for n := r.Start; n <= r.End && n <= len(lines); n++ {
		text := lines[n-1]
		num := fmt.Sprintf("%*d", width, n)
		switch {
		case n == resp.Line:
			p.focus.Fprintf(p.w, "%s > %s\n", num, text)
		case resp.Classes[n] == slicer.Relevant:
			p.relevant.Fprintf(p.w, "%s | %s\n", num, text)
		default:
			p.dimmed.Fprintf(p.w, "%s   %s\n", num, text)
		}
	}

	fmt.Fprintf(p.w, "\nrelevant: %s\n", FormatLineRanges(resp.Relevant))
	if len(resp.Unresolved) > 0 {
		fmt.Fprintf(p.w, "unresolved: %s\n", strings.Join(resp.Unresolved, ", "))
	}
}

// Graph prints the statements of a function and its dependence edges as
// two tables.
func (p *Printer) Graph(function string, statements []stmt.Statement, edges []pdg.PDGEdge) error {
	if function != "" {
		p.title.Fprintln(p.w, function)
		fmt.Fprintln(p.w, strings.Repeat("=", len(function)))
	}

	rows := make([][]string, 0, len(statements))
	for _, s := range statements {
		rows = append(rows, []string{
			lineSpan(s.Line, s.EndLine),
			string(s.Kind),
			strings.Join(s.Defs, ", "),
			strings.Join(s.Uses, ", "),
			optionalLine(s.Enclosing),
			string(s.Jump),
		})
	}
	if err := p.table([]string{"Line", "Kind", "Defs", "Uses", "Enclosing", "Jump"}, rows); err != nil {
		return err
	}

	sorted := make([]pdg.PDGEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Target < sorted[j].Target
	})
	rows = rows[:0]
	for _, e := range sorted {
		rows = append(rows, []string{
			strconv.Itoa(e.Source),
			strconv.Itoa(e.Target),
			string(e.DepType),
			e.Label,
		})
	}
	return p.table([]string{"From", "To", "Type", "Variable"}, rows)
}

// table renders a borderless left-aligned table.
func (p *Printer) table(headers []string, rows [][]string) error {
	table := tablewriter.NewTable(p.w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)

	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(p.w)
	return nil
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...interface{}) {
	p.relevant.Fprintf(p.w, format+"\n", args...)
}

// Failure prints an error line.
func (p *Printer) Failure(format string, args ...interface{}) {
	p.failed.Fprintf(p.w, format+"\n", args...)
}

// StatusIcon returns a marker for a health or daemon status.
func (p *Printer) StatusIcon(status string) string {
	switch status {
	case "ready", "running":
		return p.relevant.Sprint("✓")
	case "disabled", "empty", "stopped", "starting":
		return p.dimmed.Sprint("-")
	case "error":
		return p.failed.Sprint("✗")
	default:
		return "?"
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// FormatLineRanges collapses sorted line numbers into ranges such as
// "1-3, 5, 9-10".
func FormatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}

	var ranges []string
	start := lines[0]
	end := lines[0]

	for i := 1; i < len(lines); i++ {
		if lines[i] == end+1 {
			end = lines[i]
			continue
		}
		ranges = append(ranges, lineSpan(start, end))
		start = lines[i]
		end = lines[i]
	}
	ranges = append(ranges, lineSpan(start, end))

	return strings.Join(ranges, ", ")
}

func lineSpan(start, end int) string {
	if end <= start {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func optionalLine(line int) string {
	if line == 0 {
		return ""
	}
	return strconv.Itoa(line)
}
