// Package partition turns a relevance set into a per-line classification
// of the analysed range.
package partition

import (
	"sort"

	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Class is the classification of one source line.
type Class string

const (
	Relevant Class = "relevant"
	Dimmed   Class = "dimmed"
)

// Options tunes which structural lines stay visible.
type Options struct {
	// KeepFrame keeps the function signature and closing brace relevant.
	KeepFrame bool `json:"keep_frame" yaml:"keep_frame"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{KeepFrame: true}
}

// Report classifies every line from body.FirstLine to body.LastLine.
//
// Statement lines, including continuation lines of multi-line statements,
// follow the relevance set. Lines that hold no statement (blank lines,
// comments, braces, "} else {") take the classification of the innermost
// header whose block encloses them, or Dimmed outside any block. The first
// declaration of the focus variable is always relevant.
func Report(body *stmt.Body, result *pdg.SliceResult, opts Options) map[int]Class {
	classes := make(map[int]Class)
	if body == nil {
		return classes
	}

	relevant := make(map[int]bool)
	if result != nil {
		for _, l := range result.Lines {
			relevant[l] = true
		}
		if decl := declarationOf(body, result.Variable); decl > 0 {
			relevant[decl] = true
		}
	}
	if opts.KeepFrame {
		if body.Signature > 0 {
			relevant[body.Signature] = true
		}
		if body.CloseLine > 0 {
			relevant[body.CloseLine] = true
		}
	}

	owner := make(map[int]int)
	var headers []stmt.Statement
	for _, s := range body.Statements {
		for l := s.Line; l <= s.EndLine; l++ {
			owner[l] = s.Line
		}
		if s.Kind.IsHeader() {
			headers = append(headers, s)
		}
	}

	for _, line := range body.Lines() {
		anchor, ok := owner[line]
		if !ok {
			anchor = innermostHeader(headers, line)
		}
		if relevant[line] || (anchor > 0 && relevant[anchor]) {
			classes[line] = Relevant
		} else {
			classes[line] = Dimmed
		}
	}
	return classes
}

// declarationOf returns the line of the first Declaration defining name.
func declarationOf(body *stmt.Body, name string) int {
	for _, s := range body.Statements {
		if s.Kind == stmt.KindDeclaration && s.Defines(name) {
			return s.Line
		}
	}
	return 0
}

func innermostHeader(headers []stmt.Statement, line int) int {
	best := 0
	for _, h := range headers {
		if h.Line < line && line <= h.BlockEnd && h.Line > best {
			best = h.Line
		}
	}
	return best
}

// Lines returns the lines of classes carrying class c, sorted.
func Lines(classes map[int]Class, c Class) []int {
	var lines []int
	for l, cl := range classes {
		if cl == c {
			lines = append(lines, l)
		}
	}
	sort.Ints(lines)
	return lines
}
