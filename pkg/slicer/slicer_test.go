package slicer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/pkg/partition"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "c", name))
	require.NoError(t, err)
	return string(data)
}

func TestComputeSlice_ForwardClosureRegression(t *testing.T) {
	src := "int cp = foo(ep);\nint result = cp * 2;\nint unrelated = 100;\n"

	classes, err := ComputeSlice(src, Range{Start: 1, End: 3}, "ep", 1, Forward)
	require.NoError(t, err)

	assert.Equal(t, map[int]Class{1: Relevant, 2: Relevant, 3: Dimmed}, classes)
}

func TestComputeSlice_Fixtures(t *testing.T) {
	tests := []struct {
		name     string
		fixture  string
		rng      Range
		variable string
		line     int
		dir      Direction
		relevant []int
		dimmed   []int
	}{
		{
			name:     "simple backward",
			fixture:  "simple.c",
			rng:      Range{Start: 1, End: 11},
			variable: "c",
			line:     9,
			dir:      Backward,
			relevant: []int{3, 4, 5, 6, 9, 11},
			dimmed:   []int{1, 2, 7, 8, 10},
		},
		{
			name:     "branch merge",
			fixture:  "control_flow.c",
			rng:      Range{Start: 3, End: 16},
			variable: "result",
			line:     15,
			dir:      Backward,
			relevant: []int{3, 4, 5, 7, 8, 9, 10, 11, 15, 16},
			dimmed:   []int{6, 12, 13, 14},
		},
		{
			name:     "parameter forward",
			fixture:  "variable_flow.c",
			rng:      Range{Start: 12, End: 25},
			variable: "ep",
			line:     12,
			dir:      Forward,
			relevant: []int{12, 14, 16, 18, 22, 24, 25},
			dimmed:   []int{13, 15, 17, 19, 20, 21, 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := ComputeSlice(readFixture(t, tt.fixture), tt.rng, tt.variable, tt.line, tt.dir)
			require.NoError(t, err)

			assert.Len(t, classes, tt.rng.End-tt.rng.Start+1)
			assert.Equal(t, tt.relevant, partition.Lines(classes, Relevant))
			assert.Equal(t, tt.dimmed, partition.Lines(classes, Dimmed))
		})
	}
}

func TestComputeSlice_ReturnEndsFlow(t *testing.T) {
	src := "int f(int c) {\n" +
		"  int x = 0;\n" +
		"  if (c) {\n" +
		"    x = 1;\n" +
		"    return x;\n" +
		"  }\n" +
		"  int y = x;\n" +
		"  return y;\n" +
		"}\n"

	classes, err := ComputeSlice(src, Range{Start: 1, End: 9}, "y", 7, Backward)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 7, 9}, partition.Lines(classes, Relevant))
	assert.Equal(t, []int{3, 4, 5, 6, 8}, partition.Lines(classes, Dimmed))
}

func TestComputeSlice_BreakEndsFlow(t *testing.T) {
	src := "int g(int n) {\n" +
		"  int r = 0;\n" +
		"  while (n > 0) {\n" +
		"    r = 5;\n" +
		"    break;\n" +
		"    r = 7;\n" +
		"  }\n" +
		"  return r;\n" +
		"}\n"

	classes, err := ComputeSlice(src, Range{Start: 1, End: 9}, "r", 8, Backward)
	require.NoError(t, err)

	assert.Equal(t, Relevant, classes[2])
	assert.Equal(t, Relevant, classes[4])
	assert.Equal(t, Dimmed, classes[6], "assignment after break never reaches the return")
}

func TestComputeSlice_FocusOnFinal(t *testing.T) {
	src := readFixture(t, "variable_flow.c")

	classes, err := ComputeSlice(src, Range{Start: 12, End: 25}, "final", 22, Forward)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 22, 24, 25}, partition.Lines(classes, Relevant))

	classes, err = ComputeSlice(src, Range{Start: 12, End: 25}, "final", 24, Backward)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 14, 16, 18, 22, 24, 25}, partition.Lines(classes, Relevant))
}

func TestComputeSlice_StructuralInclusion(t *testing.T) {
	classes, err := ComputeSlice(readFixture(t, "complex.c"), Range{Start: 3, End: 17}, "sum", 9, Both)
	require.NoError(t, err)

	assert.Equal(t, Relevant, classes[8], "loop header of sum += i")
	assert.Equal(t, Relevant, classes[9])
	assert.Equal(t, Dimmed, classes[13])
}

func TestComputeSlice_Independence(t *testing.T) {
	src := readFixture(t, "control_flow.c")
	for _, dir := range []Direction{Backward, Forward, Both} {
		classes, err := ComputeSlice(src, Range{Start: 3, End: 16}, "result", 15, dir)
		require.NoError(t, err)
		assert.Equal(t, Dimmed, classes[13], "direction %s", dir)
	}
}

func TestComputeSlice_Idempotent(t *testing.T) {
	src := readFixture(t, "complex.c")

	first, err := ComputeSlice(src, Range{Start: 3, End: 17}, "sum", 15, Both)
	require.NoError(t, err)
	second, err := ComputeSlice(src, Range{Start: 3, End: 17}, "sum", 15, Both)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeSlice_Errors(t *testing.T) {
	simple := readFixture(t, "simple.c")

	t.Run("focus variable absent from line", func(t *testing.T) {
		_, err := ComputeSlice(simple, Range{Start: 3, End: 11}, "zzz", 9, Backward)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFocusNotFound))

		var fe *FocusNotFoundError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "zzz", fe.Variable)
		assert.Equal(t, 9, fe.Line)
	})

	t.Run("focus line outside range", func(t *testing.T) {
		_, err := ComputeSlice(simple, Range{Start: 3, End: 11}, "a", 1, Backward)
		assert.ErrorIs(t, err, ErrFocusNotFound)
	})

	t.Run("range past end of file", func(t *testing.T) {
		_, err := ComputeSlice(simple, Range{Start: 3, End: 40}, "a", 4, Backward)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := ComputeSlice(simple, Range{Start: 5, End: 4}, "a", 4, Backward)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("unbalanced parenthesis", func(t *testing.T) {
		_, err := ComputeSlice("int f() {\n    int a = (1;\n}\n", Range{Start: 1, End: 3}, "a", 2, Backward)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)

		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("unknown direction", func(t *testing.T) {
		_, err := ComputeSlice(simple, Range{Start: 3, End: 11}, "c", 9, Direction("sideways"))
		assert.Error(t, err)
	})
}

func TestRange_Cut(t *testing.T) {
	src := "a\nb\nc\n"

	text, err := Range{Start: 2, End: 3}.Cut(src)
	require.NoError(t, err)
	assert.Equal(t, "b\nc\n", text)

	text, err = Range{Start: 3, End: 3}.Cut("a\nb\nc")
	require.NoError(t, err)
	assert.Equal(t, "c\n", text)

	_, err = Range{Start: 0, End: 1}.Cut(src)
	assert.ErrorIs(t, err, ErrInvalidRange)

	assert.True(t, Range{Start: 2, End: 3}.Contains(3))
	assert.False(t, Range{Start: 2, End: 3}.Contains(1))
}
