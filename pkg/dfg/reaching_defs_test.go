package dfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/pkg/cfg"
	"github.com/l3aro/cflow/pkg/stmt"
)

func analyze(t *testing.T, src string) *DFGInfo {
	t.Helper()
	body, err := stmt.Extract(src, 1)
	require.NoError(t, err)
	return Analyze(body, cfg.Build(body))
}

type link struct {
	def, use int
	name     string
}

func links(info *DFGInfo) []link {
	out := make([]link, 0, len(info.DataflowEdges))
	for _, e := range info.DataflowEdges {
		out = append(out, link{e.DefRef.Line, e.UseRef.Line, e.VarName})
	}
	return out
}

func TestAnalyze_MostRecentDefinition(t *testing.T) {
	info := analyze(t, "x = 1;\nx = 2;\ny = x;\n")

	assert.Equal(t, []link{{2, 3, "x"}}, links(info))
	assert.Empty(t, info.Unresolved)
	assert.Len(t, info.Variables["x"], 3)
}

func TestAnalyze_BranchMerge(t *testing.T) {
	info := analyze(t, "x = 0;\nif (c) {\n  x = 1;\n} else {\n  x = 2;\n}\ny = x;\n")

	var defs []int
	for _, e := range info.DataflowEdges {
		if e.UseRef.Line == 7 {
			defs = append(defs, e.DefRef.Line)
		}
	}
	assert.Equal(t, []int{3, 5}, defs)
}

func TestAnalyze_IfWithoutElseKeepsEarlierDefinition(t *testing.T) {
	info := analyze(t, "x = 0;\nif (c)\n  x = 1;\ny = x;\n")
	assert.Contains(t, links(info), link{1, 4, "x"})
	assert.Contains(t, links(info), link{3, 4, "x"})
}

func TestAnalyze_LoopCarried(t *testing.T) {
	info := analyze(t, "sum = 0;\nfor (i = 0; i < n; i++) {\n  sum += i;\n}\nr = sum;\n")
	got := links(info)

	assert.Contains(t, got, link{3, 3, "sum"}, "self edge for a loop-carried value")
	assert.Contains(t, got, link{1, 3, "sum"})
	assert.Contains(t, got, link{2, 2, "i"}, "header update feeds its own condition")
	assert.Contains(t, got, link{2, 3, "i"})
	assert.Contains(t, got, link{1, 5, "sum"})
	assert.Contains(t, got, link{3, 5, "sum"})

	require.Len(t, info.Unresolved, 1)
	assert.Equal(t, VarRef{Name: "n", RefType: RefTypeUse, Line: 2}, info.Unresolved[0])
}

func TestAnalyze_ParametersResolveUses(t *testing.T) {
	info := analyze(t, "int f(int ep) {\n  int cp = g(ep);\n  return cp;\n}\n")

	assert.Equal(t, []link{{1, 2, "ep"}, {2, 3, "cp"}}, links(info))
	assert.Empty(t, info.Unresolved)
}

func TestAnalyze_ReturnStopsFlow(t *testing.T) {
	info := analyze(t, "x = 1;\nif (c) {\n  x = 2;\n  return x;\n}\ny = x;\n")
	assert.NotContains(t, links(info), link{3, 6, "x"})
	assert.Contains(t, links(info), link{1, 6, "x"})
}

func TestAnalyze_BreakSkipsDeadDefinition(t *testing.T) {
	info := analyze(t, "r = 0;\nwhile (n > 0) {\n  r = 5;\n  break;\n  r = 7;\n}\ny = r;\n")
	got := links(info)

	assert.Contains(t, got, link{3, 7, "r"})
	assert.Contains(t, got, link{1, 7, "r"})
	assert.NotContains(t, got, link{5, 7, "r"})
}

func TestCollectRefs(t *testing.T) {
	body, err := stmt.Extract("int a = b;\na += 1;\n", 1)
	require.NoError(t, err)

	assert.Equal(t, []VarRef{
		{Name: "b", RefType: RefTypeUse, Line: 1},
		{Name: "a", RefType: RefTypeDefinition, Line: 1},
		{Name: "a", RefType: RefTypeUse, Line: 2},
		{Name: "a", RefType: RefTypeUpdate, Line: 2},
	}, CollectRefs(body))
}

func TestComputeDefUseChains_NilCFG(t *testing.T) {
	assert.Nil(t, NewReachingDefsAnalyzer().ComputeDefUseChains(nil, nil))
}
