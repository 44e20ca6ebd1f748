// Package stmt defines the statement model used by the slicer.
// It splits the body of one C-like function into line-addressed statements
// and records, for each statement, the variables it defines and uses and the
// loop or branch header that governs it.
package stmt

// Kind represents the syntactic kind of a statement.
type Kind string

const (
	KindDeclaration  Kind = "declaration"   // Declaration, or any line matching no other kind
	KindAssignment   Kind = "assignment"    // Assignment, compound update, increment
	KindCall         Kind = "call"          // Bare function invocation
	KindLoopHeader   Kind = "loop_header"   // for, while, do
	KindBranchHeader Kind = "branch_header" // if, else if, switch
	KindReturn       Kind = "return"        // return statement
)

// IsHeader reports whether statements of this kind govern a body.
func (k Kind) IsHeader() bool {
	return k == KindLoopHeader || k == KindBranchHeader
}

// Jump describes how a statement transfers control, if at all.
type Jump string

const (
	JumpNone     Jump = ""
	JumpBreak    Jump = "break"
	JumpContinue Jump = "continue"
	JumpReturn   Jump = "return"
)

// Statement is a single line-addressed statement of a function body.
// Statements are immutable once Extract returns.
type Statement struct {
	Line      int      `json:"line" msgpack:"line"`                     // Line number of the first token
	EndLine   int      `json:"end_line" msgpack:"end_line"`             // Last physical line of the statement
	Kind      Kind     `json:"kind" msgpack:"kind"`                     // Statement kind
	Defs      []string `json:"defs" msgpack:"defs"`                     // Variables defined, sorted
	Uses      []string `json:"uses" msgpack:"uses"`                     // Variables used, sorted
	Enclosing int      `json:"enclosing,omitempty" msgpack:"enclosing"` // Line of the governing header, 0 if none
	BlockEnd  int      `json:"block_end,omitempty" msgpack:"block_end"` // Headers only: last line of the lexical body
	Jump      Jump     `json:"jump,omitempty" msgpack:"jump"`           // Control transfer performed by the statement
	Signature bool     `json:"signature,omitempty" msgpack:"signature"` // Function signature line declaring parameters
}

// Defines reports whether the statement defines name.
func (s Statement) Defines(name string) bool {
	return contains(s.Defs, name)
}

// Reads reports whether the statement uses name.
func (s Statement) Reads(name string) bool {
	return contains(s.Uses, name)
}

// Covers reports whether line lies within the statement's physical span.
func (s Statement) Covers(line int) bool {
	return line >= s.Line && line <= s.EndLine
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Node is one element of the statement tree that mirrors the lexical
// nesting of the function body. Stmt indexes into Body.Statements and is
// -1 for plain compound blocks.
type Node struct {
	Stmt       int       `json:"stmt" msgpack:"stmt"`
	Branch     bool      `json:"branch,omitempty" msgpack:"branch"`
	Loop       bool      `json:"loop,omitempty" msgpack:"loop"`
	DoWhile    bool      `json:"do_while,omitempty" msgpack:"do_while"`
	Switch     bool      `json:"switch,omitempty" msgpack:"switch"`
	HasDefault bool      `json:"has_default,omitempty" msgpack:"has_default"`
	Body       []*Node   `json:"body,omitempty" msgpack:"body"`   // Loop body, then-arm, or block contents
	Else       []*Node   `json:"else,omitempty" msgpack:"else"`   // Else-arm of an if
	Cases      [][]*Node `json:"cases,omitempty" msgpack:"cases"` // Switch arms in source order
}

// IsBranch reports whether the node is an if statement.
func (n *Node) IsBranch() bool {
	return n.Branch
}

// Body is the extracted form of one function.
type Body struct {
	Function   string      `json:"function,omitempty" msgpack:"function"`     // Function name when a signature was found
	FirstLine  int         `json:"first_line" msgpack:"first_line"`           // First line of the analysed range
	LastLine   int         `json:"last_line" msgpack:"last_line"`             // Last line of the analysed range
	Signature  int         `json:"signature,omitempty" msgpack:"signature"`   // Line of the signature statement, 0 if none
	CloseLine  int         `json:"close_line,omitempty" msgpack:"close_line"` // Line of the function's closing brace, 0 if none
	Statements []Statement `json:"statements" msgpack:"statements"`           // Statements ordered by line
	Tree       []*Node     `json:"tree" msgpack:"tree"`                       // Lexical structure
}

// StatementAt returns the statement whose span covers line.
func (b *Body) StatementAt(line int) (Statement, bool) {
	for _, s := range b.Statements {
		if s.Covers(line) {
			return s, true
		}
	}
	return Statement{}, false
}

// Lines returns every line number of the analysed range.
func (b *Body) Lines() []int {
	if b.LastLine < b.FirstLine {
		return nil
	}
	lines := make([]int, 0, b.LastLine-b.FirstLine+1)
	for l := b.FirstLine; l <= b.LastLine; l++ {
		lines = append(lines, l)
	}
	return lines
}
