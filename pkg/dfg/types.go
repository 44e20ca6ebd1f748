// Package dfg defines data structures for representing Data Flow Graphs (DFGs).
// It provides types for variable references, data flow edges, and DFG information.
package dfg

// RefType represents the type of variable reference in data flow analysis.
type RefType string

const (
	RefTypeDefinition RefType = "definition" // Variable definition (declaration or parameter)
	RefTypeUpdate     RefType = "update"     // Variable update (reassignment)
	RefTypeUse        RefType = "use"        // Variable use (read)
)

// VarRef represents a variable reference made by one statement.
type VarRef struct {
	Name    string  `json:"name" msgpack:"name"`         // Variable name
	RefType RefType `json:"ref_type" msgpack:"ref_type"` // Type of reference (definition, update, use)
	Line    int     `json:"line" msgpack:"line"`         // Line of the statement making the reference
}

// IsDef reports whether the reference writes the variable.
func (r VarRef) IsDef() bool {
	return r.RefType == RefTypeDefinition || r.RefType == RefTypeUpdate
}

// DataflowEdge represents a data flow edge between two variable references.
// It connects a definition/update to a use of a variable.
type DataflowEdge struct {
	DefRef  VarRef `json:"def_ref" msgpack:"def_ref"`   // Definition or update reference
	UseRef  VarRef `json:"use_ref" msgpack:"use_ref"`   // Use reference
	VarName string `json:"var_name" msgpack:"var_name"` // Name of the variable being tracked
}

// DFGInfo represents the complete Data Flow Graph for a function.
// It contains all variable references, data flow edges, and grouped variables.
type DFGInfo struct {
	FunctionName  string              `json:"function_name" msgpack:"function_name"`   // Name of the function
	VarRefs       []VarRef            `json:"var_refs" msgpack:"var_refs"`             // All variable references in order
	DataflowEdges []DataflowEdge      `json:"dataflow_edges" msgpack:"dataflow_edges"` // Data flow edges between references
	Variables     map[string][]VarRef `json:"variables" msgpack:"variables"`           // Variables grouped by name
	Unresolved    []VarRef            `json:"unresolved" msgpack:"unresolved"`         // Uses no definition reaches
}
