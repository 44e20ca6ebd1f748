// Package dfg provides data flow analysis including reaching definitions.
package dfg

import (
	"container/list"
	"sort"

	"github.com/l3aro/cflow/pkg/cfg"
	"github.com/l3aro/cflow/pkg/stmt"
)

// Analyze collects the variable references of body and links every use to
// the definitions that reach it along the control flow graph.
func Analyze(body *stmt.Body, flow *cfg.CFGInfo) *DFGInfo {
	refs := CollectRefs(body)
	edges := NewReachingDefsAnalyzer().ComputeDefUseChains(flow, refs)

	info := &DFGInfo{
		FunctionName:  body.Function,
		VarRefs:       refs,
		DataflowEdges: edges,
		Variables:     make(map[string][]VarRef),
	}
	for _, ref := range refs {
		info.Variables[ref.Name] = append(info.Variables[ref.Name], ref)
	}

	type useKey struct {
		line int
		name string
	}
	resolved := make(map[useKey]bool, len(edges))
	for _, e := range edges {
		resolved[useKey{e.UseRef.Line, e.VarName}] = true
	}
	for _, ref := range refs {
		if ref.RefType == RefTypeUse && !resolved[useKey{ref.Line, ref.Name}] {
			info.Unresolved = append(info.Unresolved, ref)
		}
	}
	return info
}

// CollectRefs lists the references of every statement in line order: uses
// first, then definitions, matching evaluation order within a statement.
func CollectRefs(body *stmt.Body) []VarRef {
	var refs []VarRef
	for _, s := range body.Statements {
		for _, name := range s.Uses {
			refs = append(refs, VarRef{Name: name, RefType: RefTypeUse, Line: s.Line})
		}
		defType := RefTypeUpdate
		if s.Kind == stmt.KindDeclaration {
			defType = RefTypeDefinition
		}
		for _, name := range s.Defs {
			refs = append(refs, VarRef{Name: name, RefType: defType, Line: s.Line})
		}
	}
	return refs
}

// ReachingDefsAnalyzer performs reaching definitions analysis on a control flow graph.
// It uses a worklist-based algorithm to compute which definitions reach each point
// in the CFG, then builds def-use chains from these results.
type ReachingDefsAnalyzer struct {
	// blockGen maps block ID to set of definition IDs generated in that block
	blockGen map[string]map[int]struct{}
	// blockKill maps block ID to set of variable names killed in that block
	blockKill map[string]map[string]struct{}
	// defs holds every definition reference, indexed by definition ID
	defs []VarRef
}

// NewReachingDefsAnalyzer creates a new ReachingDefsAnalyzer.
func NewReachingDefsAnalyzer() *ReachingDefsAnalyzer {
	return &ReachingDefsAnalyzer{
		blockGen:  make(map[string]map[int]struct{}),
		blockKill: make(map[string]map[string]struct{}),
	}
}

// ComputeDefUseChains computes def-use chains using reaching definitions analysis.
// A definition that reaches its own statement through a loop back edge
// yields a self edge, which keeps loop-carried values connected.
func (r *ReachingDefsAnalyzer) ComputeDefUseChains(cfgInfo *cfg.CFGInfo, refs []VarRef) []DataflowEdge {
	if cfgInfo == nil || len(cfgInfo.Blocks) == 0 {
		return nil
	}

	r.initialize(cfgInfo, refs)

	preds := make(map[string][]string, len(cfgInfo.Blocks))
	succs := make(map[string][]string, len(cfgInfo.Blocks))
	for _, edge := range cfgInfo.Edges {
		preds[edge.TargetID] = append(preds[edge.TargetID], edge.SourceID)
		succs[edge.SourceID] = append(succs[edge.SourceID], edge.TargetID)
	}

	ids := make([]string, 0, len(cfgInfo.Blocks))
	for blockID := range cfgInfo.Blocks {
		ids = append(ids, blockID)
	}
	sort.Strings(ids)

	in := make(map[string]map[int]struct{}, len(ids))
	out := make(map[string]map[int]struct{}, len(ids))
	for _, blockID := range ids {
		in[blockID] = make(map[int]struct{})
		out[blockID] = make(map[int]struct{})
	}

	worklist := list.New()
	queued := make(map[string]bool, len(ids))
	for _, blockID := range ids {
		worklist.PushBack(blockID)
		queued[blockID] = true
	}

	for worklist.Len() > 0 {
		blockID := worklist.Remove(worklist.Front()).(string)
		queued[blockID] = false

		// in[block] = union of out[pred] for all predecessors
		in[blockID] = r.unionPreds(out, preds[blockID])

		// out[block] = gen[block] U (in[block] - kill[block])
		newOut := r.computeOut(in[blockID], blockID)
		if setsEqual(out[blockID], newOut) {
			continue
		}
		out[blockID] = newOut
		for _, succ := range succs[blockID] {
			if !queued[succ] {
				worklist.PushBack(succ)
				queued[succ] = true
			}
		}
	}

	return r.buildDefUseChains(cfgInfo, refs, in)
}

// initialize builds gen/kill sets and assigns definition IDs.
func (r *ReachingDefsAnalyzer) initialize(cfgInfo *cfg.CFGInfo, refs []VarRef) {
	r.blockGen = make(map[string]map[int]struct{})
	r.blockKill = make(map[string]map[string]struct{})
	r.defs = r.defs[:0]

	for _, ref := range refs {
		if !ref.IsDef() {
			continue
		}
		blockID := cfgInfo.BlockForLine(ref.Line)
		if blockID == "" {
			continue
		}
		defID := len(r.defs)
		r.defs = append(r.defs, ref)

		if r.blockGen[blockID] == nil {
			r.blockGen[blockID] = make(map[int]struct{})
			r.blockKill[blockID] = make(map[string]struct{})
		}
		r.blockGen[blockID][defID] = struct{}{}
		r.blockKill[blockID][ref.Name] = struct{}{}
	}
}

// unionPreds computes the union of out sets for all predecessors.
func (r *ReachingDefsAnalyzer) unionPreds(out map[string]map[int]struct{}, preds []string) map[int]struct{} {
	result := make(map[int]struct{})
	for _, predID := range preds {
		for defID := range out[predID] {
			result[defID] = struct{}{}
		}
	}
	return result
}

// computeOut computes out[block] = gen[block] U (in[block] - kill[block]).
func (r *ReachingDefsAnalyzer) computeOut(inSet map[int]struct{}, blockID string) map[int]struct{} {
	outSet := make(map[int]struct{})
	for defID := range r.blockGen[blockID] {
		outSet[defID] = struct{}{}
	}
	for defID := range inSet {
		if _, killed := r.blockKill[blockID][r.defs[defID].Name]; !killed {
			outSet[defID] = struct{}{}
		}
	}
	return outSet
}

// buildDefUseChains connects each use to the definitions reaching the
// entry of its statement. Uses are read before the statement's own
// definitions take effect.
func (r *ReachingDefsAnalyzer) buildDefUseChains(cfgInfo *cfg.CFGInfo, refs []VarRef, in map[string]map[int]struct{}) []DataflowEdge {
	var edges []DataflowEdge
	for _, ref := range refs {
		if ref.RefType != RefTypeUse {
			continue
		}
		blockID := cfgInfo.BlockForLine(ref.Line)
		for defID := range in[blockID] {
			if def := r.defs[defID]; def.Name == ref.Name {
				edges = append(edges, DataflowEdge{DefRef: def, UseRef: ref, VarName: ref.Name})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.UseRef.Line != b.UseRef.Line {
			return a.UseRef.Line < b.UseRef.Line
		}
		if a.VarName != b.VarName {
			return a.VarName < b.VarName
		}
		return a.DefRef.Line < b.DefRef.Line
	})
	return edges
}

// setsEqual checks if two sets are equal.
func setsEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
