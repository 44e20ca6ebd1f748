// Package slicer is the entry point of the slicing engine. It cuts the
// analysed function out of a source file, builds (or reuses) its
// dependence graph, slices it and classifies every line of the range.
package slicer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/cflow/pkg/partition"
	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Class is the classification of one line.
type Class = partition.Class

const (
	Relevant = partition.Relevant
	Dimmed   = partition.Dimmed
)

// Direction selects the slice direction.
type Direction = pdg.Direction

const (
	Backward = pdg.Backward
	Forward  = pdg.Forward
	Both     = pdg.Both
)

var (
	// ErrParse matches every *stmt.ParseError.
	ErrParse = stmt.ErrParse
	// ErrFocusNotFound matches every *pdg.FocusNotFoundError.
	ErrFocusNotFound = pdg.ErrFocusNotFound
	// ErrInvalidDirection matches every unknown direction name.
	ErrInvalidDirection = pdg.ErrInvalidDirection
	// ErrInvalidRange is returned when a function range does not fit the source.
	ErrInvalidRange = errors.New("invalid function range")
)

// ParseError and FocusNotFoundError are the typed errors returned by the engine.
type (
	ParseError         = stmt.ParseError
	FocusNotFoundError = pdg.FocusNotFoundError
)

// Range is the 1-based inclusive line range of one function.
type Range struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

// Contains reports whether line lies within the range.
func (r Range) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Cut returns the text of the range lines of source. Lines are split on
// "\n"; a trailing "\r" is kept and treated as whitespace by the tokenizer.
func (r Range) Cut(source string) (string, error) {
	lines := strings.Split(source, "\n")
	if strings.HasSuffix(source, "\n") {
		lines = lines[:len(lines)-1]
	}
	if r.Start < 1 || r.End < r.Start || r.End > len(lines) {
		return "", fmt.Errorf("%w: lines %d-%d of %d", ErrInvalidRange, r.Start, r.End, len(lines))
	}
	return strings.Join(lines[r.Start-1:r.End], "\n") + "\n", nil
}

// ComputeSlice classifies every line of the function range of sourceText as
// Relevant or Dimmed with respect to focusVariable at focusLine.
//
// It builds a fresh graph on every call and keeps no state, so repeated calls
// with the same input return identical mappings.
func ComputeSlice(sourceText string, functionRange Range, focusVariable string, focusLine int, direction Direction) (map[int]Class, error) {
	g, err := analyzeRange(sourceText, functionRange)
	if err != nil {
		return nil, err
	}
	return classify(g, focusVariable, focusLine, direction, partition.DefaultOptions())
}

// analyzeRange extracts and analyses the function range.
func analyzeRange(source string, r Range) (*pdg.PDGInfo, error) {
	text, err := r.Cut(source)
	if err != nil {
		return nil, err
	}
	body, err := stmt.Extract(text, r.Start)
	if err != nil {
		return nil, err
	}
	return pdg.Analyze(body), nil
}

// classify slices g and partitions its range.
func classify(g *pdg.PDGInfo, variable string, line int, dir Direction, opts partition.Options) (map[int]Class, error) {
	dir, err := pdg.ParseDirection(string(dir))
	if err != nil {
		return nil, err
	}
	if g.Body == nil || line < g.Body.FirstLine || line > g.Body.LastLine {
		return nil, &FocusNotFoundError{Variable: variable, Line: line}
	}
	result, err := pdg.Slice(g, variable, line, dir)
	if err != nil {
		return nil, err
	}
	return partition.Report(g.Body, result, opts), nil
}
