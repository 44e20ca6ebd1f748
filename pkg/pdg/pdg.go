// Package pdg provides functionality for building Program Dependence Graphs (PDGs)
// by merging Control Flow Graph (CFG) and Data Flow Graph (DFG) information.
package pdg

import (
	"sort"

	"github.com/l3aro/cflow/pkg/cfg"
	"github.com/l3aro/cflow/pkg/dfg"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Analyze runs the full pipeline over an extracted body: control flow,
// reaching definitions, then the dependence graph.
func Analyze(body *stmt.Body) *PDGInfo {
	flow := cfg.Build(body)
	return NewPDGBuilder(body, flow, dfg.Analyze(body, flow)).Build()
}

// PDGBuilder builds a Program Dependence Graph by merging CFG and DFG information.
type PDGBuilder struct {
	body *stmt.Body
	cfg  *cfg.CFGInfo
	dfg  *dfg.DFGInfo
}

// NewPDGBuilder creates a new PDGBuilder with the given statements, CFG and DFG information.
func NewPDGBuilder(body *stmt.Body, cfgInfo *cfg.CFGInfo, dfgInfo *dfg.DFGInfo) *PDGBuilder {
	return &PDGBuilder{
		body: body,
		cfg:  cfgInfo,
		dfg:  dfgInfo,
	}
}

// Build constructs the complete PDG. Nodes come from statements, control
// edges from the enclosing-header relation, and data edges from the DFG.
// Data self-loops are kept: they mark loop-carried dependencies.
func (b *PDGBuilder) Build() *PDGInfo {
	pdgInfo := &PDGInfo{
		Body:  b.body,
		CFG:   b.cfg,
		DFG:   b.dfg,
		Nodes: make(map[int]PDGNode),
		Edges: make([]PDGEdge, 0),
	}
	if b.body == nil {
		return pdgInfo
	}
	pdgInfo.FunctionName = b.body.Function

	b.createNodes(pdgInfo)
	b.addControlEdges(pdgInfo)
	b.addDataEdges(pdgInfo)

	sort.Slice(pdgInfo.Edges, func(i, j int) bool {
		a, c := pdgInfo.Edges[i], pdgInfo.Edges[j]
		if a.Source != c.Source {
			return a.Source < c.Source
		}
		if a.Target != c.Target {
			return a.Target < c.Target
		}
		if a.DepType != c.DepType {
			return a.DepType < c.DepType
		}
		return a.Label < c.Label
	})

	if b.dfg != nil {
		pdgInfo.Unresolved = b.dfg.Unresolved
	}
	return pdgInfo
}

func (b *PDGBuilder) createNodes(pdgInfo *PDGInfo) {
	for _, s := range b.body.Statements {
		node := PDGNode{
			Line:       s.Line,
			Type:       mapKindToNodeType(s.Kind),
			Kind:       s.Kind,
			StartLine:  s.Line,
			EndLine:    s.EndLine,
			Enclosing:  s.Enclosing,
			CFGBlockID: cfg.BlockID(s.Line),
		}

		if b.dfg != nil {
			for _, ref := range b.dfg.VarRefs {
				if ref.Line != s.Line {
					continue
				}
				if ref.IsDef() {
					node.Definitions = append(node.Definitions, ref)
				} else {
					node.Uses = append(node.Uses, ref)
				}
			}
		}
		pdgInfo.Nodes[s.Line] = node
	}
}

// mapKindToNodeType maps statement kinds to PDG NodeType.
func mapKindToNodeType(kind stmt.Kind) NodeType {
	switch kind {
	case stmt.KindLoopHeader:
		return NodeTypeLoop
	case stmt.KindBranchHeader:
		return NodeTypeBranch
	default:
		return NodeTypeStatement
	}
}

// addControlEdges links each header to the statements it directly governs.
func (b *PDGBuilder) addControlEdges(pdgInfo *PDGInfo) {
	for _, s := range b.body.Statements {
		if s.Enclosing == 0 {
			continue
		}
		if _, ok := pdgInfo.Nodes[s.Enclosing]; !ok {
			continue
		}
		pdgInfo.Edges = append(pdgInfo.Edges, PDGEdge{
			Source:  s.Enclosing,
			Target:  s.Line,
			DepType: DepTypeControl,
		})
	}
}

// addDataEdges adds data dependence edges from DFG dataflow edges.
func (b *PDGBuilder) addDataEdges(pdgInfo *PDGInfo) {
	if b.dfg == nil {
		return
	}

	for _, dataEdge := range b.dfg.DataflowEdges {
		if _, ok := pdgInfo.Nodes[dataEdge.DefRef.Line]; !ok {
			continue
		}
		if _, ok := pdgInfo.Nodes[dataEdge.UseRef.Line]; !ok {
			continue
		}
		pdgInfo.Edges = append(pdgInfo.Edges, PDGEdge{
			Source:  dataEdge.DefRef.Line,
			Target:  dataEdge.UseRef.Line,
			DepType: DepTypeData,
			Label:   dataEdge.VarName,
		})
	}
}
