package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/pkg/stmt"
)

func build(t *testing.T, src string) *CFGInfo {
	t.Helper()
	body, err := stmt.Extract(src, 1)
	require.NoError(t, err)
	return Build(body)
}

func hasEdge(c *CFGInfo, from, to string, kind EdgeType) bool {
	for _, e := range c.Edges {
		if e.SourceID == from && e.TargetID == to && e.EdgeType == kind {
			return true
		}
	}
	return false
}

func TestBuild_Sequential(t *testing.T) {
	c := build(t, "int f(int a) {\n  int b = a;\n  return b;\n}\n")

	assert.Equal(t, "f", c.FunctionName)
	assert.Len(t, c.Blocks, 5)
	assert.True(t, hasEdge(c, "entry", BlockID(1), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(2), BlockID(3), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(3), "exit", EdgeTypeUnconditional))
	assert.Len(t, c.Edges, 4)
	assert.Equal(t, 1, c.CyclomaticComplexity)
	assert.Equal(t, BlockTypeReturn, c.Blocks[BlockID(3)].Type)
}

func TestBuild_Loop(t *testing.T) {
	src := "s = 0;\nfor (i = 0; i < n; i++) {\n  s += i;\n}\nr = s;\n"
	c := build(t, src)

	hdr := BlockID(2)
	assert.Equal(t, BlockTypeBranch, c.Blocks[hdr].Type)
	assert.Equal(t, BlockTypeLoopBody, c.Blocks[BlockID(3)].Type)
	assert.True(t, hasEdge(c, hdr, BlockID(3), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(3), hdr, EdgeTypeBackEdge))
	assert.True(t, hasEdge(c, hdr, BlockID(5), EdgeTypeFalse))
	assert.Equal(t, 2, c.CyclomaticComplexity)
	assert.Equal(t, []string{BlockID(1), BlockID(3)}, c.Blocks[hdr].Predecessors)
}

func TestBuild_IfElse(t *testing.T) {
	src := "if (x) {\n  a = 1;\n} else {\n  a = 2;\n}\nb = a;\n"
	c := build(t, src)

	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(4), EdgeTypeFalse))
	assert.True(t, hasEdge(c, BlockID(2), BlockID(6), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(4), BlockID(6), EdgeTypeUnconditional))
	assert.Equal(t, 2, c.CyclomaticComplexity)
}

func TestBuild_IfWithoutElse(t *testing.T) {
	c := build(t, "if (x)\n  a = 1;\nb = a;\n")

	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(3), EdgeTypeFalse))
	assert.True(t, hasEdge(c, BlockID(2), BlockID(3), EdgeTypeUnconditional))
}

func TestBuild_Jumps(t *testing.T) {
	src := "while (i < n) {\n  if (a)\n    continue;\n  if (b)\n    break;\n  if (c)\n    return i;\n  i++;\n}\nr = i;\n"
	c := build(t, src)

	assert.True(t, hasEdge(c, BlockID(3), BlockID(1), EdgeTypeContinue))
	assert.True(t, hasEdge(c, BlockID(5), BlockID(10), EdgeTypeBreak))
	assert.True(t, hasEdge(c, BlockID(7), "exit", EdgeTypeUnconditional))
	assert.False(t, hasEdge(c, BlockID(7), BlockID(8), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(8), BlockID(1), EdgeTypeBackEdge))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(10), EdgeTypeFalse))
}

func TestBuild_Switch(t *testing.T) {
	src := "switch (k) {\ncase 0:\n  a = 1;\n  break;\ncase 1:\n  a = 2;\ndefault:\n  a = 3;\n}\nb = a;\n"
	c := build(t, src)

	sw := BlockID(1)
	assert.True(t, hasEdge(c, sw, BlockID(3), EdgeTypeTrue))
	assert.True(t, hasEdge(c, sw, BlockID(6), EdgeTypeTrue))
	assert.True(t, hasEdge(c, sw, BlockID(8), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(6), BlockID(8), EdgeTypeUnconditional), "case 1 falls through")
	assert.True(t, hasEdge(c, BlockID(4), BlockID(10), EdgeTypeBreak))
	assert.True(t, hasEdge(c, BlockID(8), BlockID(10), EdgeTypeUnconditional))
	assert.False(t, hasEdge(c, sw, BlockID(10), EdgeTypeFalse), "default arm covers every value")
}

func TestBuild_DoWhile(t *testing.T) {
	c := build(t, "do {\n  n--;\n} while (n > 0);\nr = n;\n")

	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(2), BlockID(1), EdgeTypeBackEdge))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(4), EdgeTypeFalse))
}

func TestBuild_Empty(t *testing.T) {
	c := build(t, "")
	assert.Len(t, c.Blocks, 2)
	assert.True(t, hasEdge(c, "entry", "exit", EdgeTypeUnconditional))
	assert.Equal(t, 1, c.CyclomaticComplexity)
	assert.Empty(t, c.BlockForLine(1))
}

func TestBuild_PlainStatementsHaveNoBranchEdges(t *testing.T) {
	c := build(t, "a = 1;\nfoo(a);\nb = a;\n")

	for _, e := range c.Edges {
		assert.Equal(t, EdgeTypeUnconditional, e.EdgeType, "%s -> %s", e.SourceID, e.TargetID)
	}
	assert.Len(t, c.Edges, 4)
}

func TestBuild_EmptyIf(t *testing.T) {
	c := build(t, "if (x);\ny = x;\n")

	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeTrue))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeFalse))
}

func TestBuild_ReturnInsideIf(t *testing.T) {
	c := build(t, "if (c) {\n  x = 1;\n  return x;\n}\ny = x;\n")

	assert.True(t, hasEdge(c, BlockID(3), "exit", EdgeTypeUnconditional))
	assert.False(t, hasEdge(c, BlockID(3), BlockID(5), EdgeTypeUnconditional))
	assert.True(t, hasEdge(c, BlockID(1), BlockID(5), EdgeTypeFalse))
	assert.Equal(t, []string{BlockID(1)}, c.Blocks[BlockID(5)].Predecessors)
}

func TestBuild_CodeAfterBreakIsDisconnected(t *testing.T) {
	c := build(t, "while (n > 0) {\n  r = 5;\n  break;\n  r = 7;\n}\nreturn r;\n")

	assert.True(t, hasEdge(c, BlockID(3), BlockID(6), EdgeTypeBreak))
	assert.Empty(t, c.Blocks[BlockID(4)].Predecessors)
	for _, e := range c.Edges {
		assert.NotEqual(t, BlockID(4), e.SourceID, "unreachable statement must not flow anywhere")
	}
}

func TestBuild_JumpSharingLine(t *testing.T) {
	c := build(t, "x = 1; return x;\ny = x;\n")

	assert.True(t, hasEdge(c, BlockID(1), "exit", EdgeTypeUnconditional))
	assert.False(t, hasEdge(c, BlockID(1), BlockID(2), EdgeTypeUnconditional))
}
