// Package pdg defines data structures for representing Program Dependence Graphs (PDGs).
// It provides types for nodes, edges, and the complete PDG information,
// integrating control flow (CFG) and data flow (DFG) information.
package pdg

import (
	"sync"

	"github.com/l3aro/cflow/pkg/cfg"
	"github.com/l3aro/cflow/pkg/dfg"
	"github.com/l3aro/cflow/pkg/stmt"
)

// NodeType represents the type of a PDG node.
type NodeType string

const (
	NodeTypeStatement NodeType = "statement" // Regular statement node
	NodeTypeBranch    NodeType = "branch"    // if, else if or switch header
	NodeTypeLoop      NodeType = "loop"      // for, while or do header
)

// DepType represents the type of dependence in a PDG edge.
type DepType string

const (
	DepTypeControl DepType = "control" // Control dependence
	DepTypeData    DepType = "data"    // Data dependence
)

// PDGNode represents one statement in the Program Dependence Graph.
type PDGNode struct {
	Line        int          `json:"line" msgpack:"line"`               // Line of the statement, the node's identity
	Type        NodeType     `json:"type" msgpack:"type"`               // Type of node (statement, branch, loop)
	Kind        stmt.Kind    `json:"kind" msgpack:"kind"`               // Statement kind
	StartLine   int          `json:"start_line" msgpack:"start_line"`   // Starting line number in source
	EndLine     int          `json:"end_line" msgpack:"end_line"`       // Ending line number in source
	Enclosing   int          `json:"enclosing" msgpack:"enclosing"`     // Line of the governing header, 0 if none
	Definitions []dfg.VarRef `json:"definitions" msgpack:"definitions"` // Variable definitions in this node
	Uses        []dfg.VarRef `json:"uses" msgpack:"uses"`               // Variable uses in this node
	CFGBlockID  string       `json:"cfg_block_id" msgpack:"cfg_block_id"`
}

// PDGEdge represents a directed dependence between two statements.
// Data edges carry the variable name as label; control edges run from a
// header to a statement inside its body.
type PDGEdge struct {
	Source  int     `json:"source" msgpack:"source"`     // Line of the source statement
	Target  int     `json:"target" msgpack:"target"`     // Line of the target statement
	DepType DepType `json:"dep_type" msgpack:"dep_type"` // Type of dependence (control or data)
	Label   string  `json:"label" msgpack:"label"`       // Variable name for data edges
}

// PDGInfo represents the complete Program Dependence Graph for a function.
// A PDGInfo is immutable after Build and safe for concurrent readers.
type PDGInfo struct {
	FunctionName string          `json:"function_name" msgpack:"function_name"` // Name of the function
	Body         *stmt.Body      `json:"body" msgpack:"body"`                   // Extracted statements
	CFG          *cfg.CFGInfo    `json:"cfg" msgpack:"cfg"`                     // Control Flow Graph information
	DFG          *dfg.DFGInfo    `json:"dfg" msgpack:"dfg"`                     // Data Flow Graph information
	Nodes        map[int]PDGNode `json:"nodes" msgpack:"nodes"`                 // Map of statement line to node
	Edges        []PDGEdge       `json:"edges" msgpack:"edges"`                 // List of edges in the graph
	Unresolved   []dfg.VarRef    `json:"unresolved" msgpack:"unresolved"`       // Uses with no reaching definition

	// Cached edge maps for efficient traversal
	indexOnce     sync.Once
	incomingCache map[int][]PDGEdge
	outgoingCache map[int][]PDGEdge
}

// edgeMaps returns incoming and outgoing edges keyed by line, built once.
func (p *PDGInfo) edgeMaps() (incoming, outgoing map[int][]PDGEdge) {
	p.indexOnce.Do(func() {
		p.incomingCache, p.outgoingCache = buildEdgeMaps(p)
	})
	return p.incomingCache, p.outgoingCache
}

// NodeAt returns the node whose statement spans line.
func (p *PDGInfo) NodeAt(line int) (PDGNode, bool) {
	if n, ok := p.Nodes[line]; ok {
		return n, true
	}
	for _, n := range p.Nodes {
		if line >= n.StartLine && line <= n.EndLine {
			return n, true
		}
	}
	return PDGNode{}, false
}
