package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/slicer"
	"github.com/l3aro/cflow/pkg/stmt"
)

var source = []string{
	"int f(int a) {",
	"  int b = a;",
	"  int c = 2;",
	"  return b;",
	"}",
}

func sliceResponse() *slicer.Response {
	return &slicer.Response{
		Variable:  "b",
		Line:      4,
		Direction: slicer.Backward,
		Function:  "f",
		Classes: map[int]slicer.Class{
			1: slicer.Relevant,
			2: slicer.Relevant,
			3: slicer.Dimmed,
			4: slicer.Relevant,
			5: slicer.Relevant,
		},
		Relevant:   []int{1, 2, 4, 5},
		Dimmed:     []int{3},
		Unresolved: []string{"g"},
	}
}

func TestFormatLineRanges(t *testing.T) {
	tests := []struct {
		lines []int
		want  string
	}{
		{nil, "none"},
		{[]int{4}, "4"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 2, 4, 5, 9}, "1-2, 4-5, 9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLineRanges(tt.lines))
	}
}

func TestSlicePlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, config.ColorNever)
	require.False(t, p.Colored())

	p.Slice(sliceResponse(), slicer.Range{Start: 1, End: 5}, source)
	out := buf.String()

	assert.Contains(t, out, "backward slice of b at line 4 in f")
	assert.Contains(t, out, "2 |   int b = a;")
	assert.Contains(t, out, "3     int c = 2;")
	assert.Contains(t, out, "4 >   return b;")
	assert.Contains(t, out, "relevant: 1-2, 4-5")
	assert.Contains(t, out, "unresolved: g")
	assert.NotContains(t, out, "\x1b[")
}

func TestSliceColored(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, config.ColorAlways)
	require.True(t, p.Colored())

	p.Slice(sliceResponse(), slicer.Range{Start: 1, End: 5}, source)
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestAutoColorOffForBuffers(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, config.ColorAuto)
	assert.False(t, p.Colored())
}

func TestSliceStopsAtEndOfSource(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, config.ColorNever)

	p.Slice(sliceResponse(), slicer.Range{Start: 1, End: 9}, source)
	assert.NotContains(t, buf.String(), "6 ")
}

func TestGraph(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, config.ColorNever)

	statements := []stmt.Statement{
		{Line: 2, EndLine: 2, Kind: stmt.KindDeclaration, Defs: []string{"b"}, Uses: []string{"a"}},
		{Line: 4, EndLine: 5, Kind: stmt.KindReturn, Uses: []string{"b"}, Jump: stmt.JumpReturn},
	}
	edges := []pdg.PDGEdge{
		{Source: 2, Target: 4, DepType: pdg.DepTypeData, Label: "b"},
		{Source: 1, Target: 2, DepType: pdg.DepTypeData, Label: "a"},
	}

	require.NoError(t, p.Graph("f", statements, edges))
	out := buf.String()

	assert.Contains(t, out, "declaration")
	assert.Contains(t, out, "4-5")
	assert.Contains(t, out, "return")
	assert.Equal(t, 2, strings.Count(out, "data"))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, map[string]int{"line": 4}))
	assert.Equal(t, "{\n  \"line\": 4\n}\n", buf.String())
}

func TestStatusIcon(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, config.ColorNever)
	assert.Equal(t, "✓", p.StatusIcon("ready"))
	assert.Equal(t, "-", p.StatusIcon("stopped"))
	assert.Equal(t, "?", p.StatusIcon("unknown"))
}
