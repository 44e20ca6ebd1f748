package slicer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/l3aro/cflow/pkg/locate"
)

// ErrInvalidTarget is returned when a Target names neither source text nor
// a file, or gives no way to find the function.
var ErrInvalidTarget = errors.New("invalid target")

// Target names the function to analyse. Source wins over Path when both are
// set; without an explicit Range the function is found by Function name, or
// else as the one enclosing Line.
type Target struct {
	Path     string `json:"path,omitempty"`
	Source   string `json:"source,omitempty"`
	Range    Range  `json:"range"`
	Function string `json:"function,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// Resolved is a Target with its source loaded and its range located.
type Resolved struct {
	Path     string
	Source   string
	Range    Range
	Function string
}

// Resolve loads the target's source and locates its function range.
// Failing lookups wrap locate.ErrNotFound.
func (t Target) Resolve(ctx context.Context) (*Resolved, error) {
	src := t.Source
	if src == "" {
		if t.Path == "" {
			return nil, fmt.Errorf("%w: no source or path", ErrInvalidTarget)
		}
		data, err := os.ReadFile(t.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", t.Path, err)
		}
		src = string(data)
	}

	res := &Resolved{Path: t.Path, Source: src, Range: t.Range}
	if t.Range.Start > 0 {
		return res, nil
	}

	// The path only picks the grammar, so inline source gets the
	// brace-matching locator unless a path is given too.
	var (
		f   *locate.Function
		err error
	)
	switch {
	case t.Function != "":
		f, err = locate.ByName(ctx, t.Path, []byte(src), t.Function)
	case t.Line > 0:
		f, err = locate.Enclosing(ctx, t.Path, []byte(src), t.Line)
	default:
		return nil, fmt.Errorf("%w: no range, function or line", ErrInvalidTarget)
	}
	if err != nil {
		return nil, err
	}
	res.Range = Range{Start: f.Start, End: f.End}
	res.Function = f.Name
	return res, nil
}
