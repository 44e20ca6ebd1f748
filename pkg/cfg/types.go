// Package cfg defines data structures for representing Control Flow Graphs (CFGs).
// It provides types for blocks, edges, and the complete CFG information.
// Each statement of a function body is one block.
package cfg

// BlockType represents the type of a CFG block.
type BlockType string

const (
	BlockTypeEntry    BlockType = "entry"     // Function entry point
	BlockTypeBranch   BlockType = "branch"    // Loop or branch header
	BlockTypeLoopBody BlockType = "loop_body" // Statement directly inside a loop
	BlockTypeReturn   BlockType = "return"    // Return statement
	BlockTypeExit     BlockType = "exit"      // Function exit point
	BlockTypePlain    BlockType = "plain"     // Regular statements
)

// EdgeType represents the type of a CFG edge.
type EdgeType string

const (
	EdgeTypeUnconditional EdgeType = "unconditional" // Unconditional jump
	EdgeTypeTrue          EdgeType = "true"          // True branch of conditional
	EdgeTypeFalse         EdgeType = "false"         // False branch of conditional
	EdgeTypeBackEdge      EdgeType = "back_edge"     // Back edge (loop continuation)
	EdgeTypeBreak         EdgeType = "break"         // Break from loop/switch
	EdgeTypeContinue      EdgeType = "continue"      // Continue to next iteration
)

// CFGBlock represents one statement in the Control Flow Graph.
type CFGBlock struct {
	ID           string    `json:"id" msgpack:"id"`                     // Unique identifier for the block
	Type         BlockType `json:"type" msgpack:"type"`                 // Type of block
	StartLine    int       `json:"start_line" msgpack:"start_line"`     // Starting line number in source
	EndLine      int       `json:"end_line" msgpack:"end_line"`         // Ending line number in source
	Stmt         int       `json:"stmt" msgpack:"stmt"`                 // Index into the statement list, -1 for entry and exit
	Predecessors []string  `json:"predecessors" msgpack:"predecessors"` // IDs of blocks that can precede this block
}

// CFGEdge represents a directed edge between two CFG blocks.
type CFGEdge struct {
	SourceID string   `json:"source_id" msgpack:"source_id"` // ID of the source block
	TargetID string   `json:"target_id" msgpack:"target_id"` // ID of the target block
	EdgeType EdgeType `json:"edge_type" msgpack:"edge_type"` // Type of edge (true, false, unconditional, etc.)
}

// CFGInfo represents the complete Control Flow Graph for a function.
type CFGInfo struct {
	FunctionName         string              `json:"function_name" msgpack:"function_name"`                 // Name of the function
	Blocks               map[string]CFGBlock `json:"blocks" msgpack:"blocks"`                               // Map of block ID to block
	Edges                []CFGEdge           `json:"edges" msgpack:"edges"`                                 // List of edges in the graph
	EntryBlockID         string              `json:"entry_block_id" msgpack:"entry_block_id"`               // ID of the entry block
	ExitBlockIDs         []string            `json:"exit_block_ids" msgpack:"exit_block_ids"`               // IDs of exit blocks
	CyclomaticComplexity int                 `json:"cyclomatic_complexity" msgpack:"cyclomatic_complexity"` // Cyclomatic complexity of the function
}

// BlockForLine returns the ID of the statement block starting at line.
func (c *CFGInfo) BlockForLine(line int) string {
	id := BlockID(line)
	if _, ok := c.Blocks[id]; ok {
		return id
	}
	return ""
}

// Successors returns the targets of all edges leaving id, in edge order.
func (c *CFGInfo) Successors(id string) []string {
	var out []string
	for _, e := range c.Edges {
		if e.SourceID == id {
			out = append(out, e.TargetID)
		}
	}
	return out
}
