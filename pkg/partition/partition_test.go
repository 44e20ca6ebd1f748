package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/stmt"
)

func sliceFixture(t *testing.T, name, variable string, line int, dir pdg.Direction) (*stmt.Body, *pdg.SliceResult) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "c", name))
	require.NoError(t, err)
	body, err := stmt.Extract(string(data), 1)
	require.NoError(t, err)
	res, err := pdg.Slice(pdg.Analyze(body), variable, line, dir)
	require.NoError(t, err)
	return body, res
}

func TestReport_Simple(t *testing.T) {
	body, res := sliceFixture(t, "simple.c", "c", 9, pdg.Backward)
	classes := Report(body, res, DefaultOptions())

	assert.Len(t, classes, 11)
	assert.Equal(t, []int{3, 4, 5, 6, 9, 11}, Lines(classes, Relevant))
	assert.Equal(t, []int{1, 2, 7, 8, 10}, Lines(classes, Dimmed))
}

func TestReport_LoopBlockLines(t *testing.T) {
	body, res := sliceFixture(t, "complex.c", "sum", 15, pdg.Both)
	classes := Report(body, res, DefaultOptions())

	assert.Equal(t, []int{3, 4, 6, 8, 9, 11, 15, 16, 17}, Lines(classes, Relevant))
	assert.Equal(t, Dimmed, classes[10])
	assert.Equal(t, Dimmed, classes[12], "blank line after the loop is outside any block")
}

func TestReport_ElseLineInheritsHeader(t *testing.T) {
	body, res := sliceFixture(t, "control_flow.c", "result", 15, pdg.Backward)
	classes := Report(body, res, DefaultOptions())

	assert.Equal(t, Relevant, classes[4], "declaration of the focus variable")
	assert.Equal(t, Relevant, classes[9], "'} else {' follows the if header")
	assert.Equal(t, Relevant, classes[11])
	assert.Equal(t, Dimmed, classes[13])
	assert.Equal(t, []int{3, 4, 5, 7, 8, 9, 10, 11, 15, 16}, Lines(classes, Relevant))
}

func TestReport_ForwardIntoConditionOnly(t *testing.T) {
	src := "int f(int t) {\n  int r = 0;\n  if (t > 2) {\n    r = 1;\n  }\n  return r;\n}\n"
	body, err := stmt.Extract(src, 1)
	require.NoError(t, err)
	res, err := pdg.Slice(pdg.Analyze(body), "t", 1, pdg.Forward)
	require.NoError(t, err)

	classes := Report(body, res, DefaultOptions())
	assert.Equal(t, []int{1, 3, 5, 7}, Lines(classes, Relevant))
	assert.Equal(t, []int{2, 4, 6}, Lines(classes, Dimmed), "governed assignment does not read t")
}

func TestReport_WithoutFrame(t *testing.T) {
	body, res := sliceFixture(t, "simple.c", "c", 9, pdg.Backward)
	classes := Report(body, res, Options{})

	assert.Equal(t, Dimmed, classes[3])
	assert.Equal(t, Dimmed, classes[11])
	assert.Equal(t, Relevant, classes[9])
}

func TestReport_ContinuationLines(t *testing.T) {
	body, err := stmt.Extract("int a = 1;\nint total = a +\n    2;\nint z = 0;\n", 1)
	require.NoError(t, err)
	res, err := pdg.Slice(pdg.Analyze(body), "a", 1, pdg.Forward)
	require.NoError(t, err)

	classes := Report(body, res, DefaultOptions())
	assert.Equal(t, map[int]Class{1: Relevant, 2: Relevant, 3: Relevant, 4: Dimmed}, classes)
}

func TestReport_NilInputs(t *testing.T) {
	assert.Empty(t, Report(nil, nil, DefaultOptions()))

	body, err := stmt.Extract("a = 1;\n", 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]Class{1: Dimmed}, Report(body, nil, DefaultOptions()))
}
