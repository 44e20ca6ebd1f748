package stmt

import "sort"

// refSet accumulates the variables a statement defines and uses.
type refSet struct {
	defs map[string]struct{}
	uses map[string]struct{}
}

func newRefSet() *refSet {
	return &refSet{
		defs: make(map[string]struct{}),
		uses: make(map[string]struct{}),
	}
}

func (r *refSet) def(name string) { r.defs[name] = struct{}{} }
func (r *refSet) use(name string) { r.uses[name] = struct{}{} }

func (r *refSet) merge(o *refSet) {
	for n := range o.defs {
		r.defs[n] = struct{}{}
	}
	for n := range o.uses {
		r.uses[n] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var keywords = set(
	"auto", "break", "case", "catch", "class", "const", "continue", "default", "delete",
	"do", "else", "enum", "extern", "false", "for", "goto", "if", "inline",
	"instanceof", "new", "null", "nullptr", "NULL", "operator", "private", "protected",
	"public", "register", "restrict", "return", "sizeof", "static", "struct", "switch",
	"template", "this", "throw", "true", "try", "typedef", "typename", "union",
	"virtual", "volatile", "while", "_Alignof", "alignof", "typeof",
)

var typeNames = set(
	"void", "char", "short", "int", "long", "float", "double", "signed", "unsigned",
	"bool", "_Bool", "boolean", "byte", "auto", "size_t", "ssize_t", "ptrdiff_t",
	"intptr_t", "uintptr_t", "int8_t", "int16_t", "int32_t", "int64_t", "uint8_t",
	"uint16_t", "uint32_t", "uint64_t", "wchar_t", "FILE", "String",
)

var qualifiers = set(
	"const", "volatile", "static", "extern", "register", "inline", "restrict",
	"signed", "unsigned", "short", "long",
)

var assignOps = set("=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=")

// boundaries end an lvalue when scanning backwards from an operator.
var boundaries = set(
	",", ";", "?", ":", "{", "}", "==", "!=", "<", ">", "<=", ">=", "&&", "||",
	"+", "-", "/", "%", "|", "^", "!", "~", "<<", ">>",
	"=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=",
)

// isVariableAt reports whether toks[i] names a variable rather than a
// keyword, type, callee or member.
func isVariableAt(toks []Token, i int) bool {
	t := toks[i]
	if t.Kind != TokenIdent || keywords[t.Text] || typeNames[t.Text] {
		return false
	}
	if i+1 < len(toks) && (toks[i+1].is("(") || toks[i+1].is("::")) {
		return false
	}
	if i > 0 && (toks[i-1].is(".") || toks[i-1].is("->") || toks[i-1].is("::")) {
		return false
	}
	return true
}

func isOperandEnd(t Token) bool {
	return t.Kind == TokenIdent || t.Kind == TokenNumber || t.is(")") || t.is("]")
}

// lvalueStart returns the index where the operand ending just before k begins.
func lvalueStart(toks []Token, k int) int {
	depth := 0
	for i := k - 1; i >= 0; i-- {
		t := toks[i]
		if t.Kind == TokenIdent && t.Text == "return" && depth == 0 {
			return i + 1
		}
		if t.Kind != TokenPunct {
			continue
		}
		switch t.Text {
		case ")", "]":
			depth++
			continue
		case "(", "[":
			if depth == 0 {
				return i + 1
			}
			depth--
			continue
		}
		if depth == 0 && boundaries[t.Text] {
			return i + 1
		}
	}
	return 0
}

func firstVariable(toks []Token, from, to int) int {
	for i := from; i < to; i++ {
		if isVariableAt(toks, i) {
			return i
		}
	}
	return -1
}

// insideCall reports whether position k is directly inside the argument
// list of a function call.
func insideCall(toks []Token, k int) bool {
	depth := 0
	for i := k - 1; i >= 0; i-- {
		switch {
		case toks[i].is(")"):
			depth++
		case toks[i].is("("):
			if depth == 0 {
				return i > 0 && toks[i-1].Kind == TokenIdent && !keywords[toks[i-1].Text]
			}
			depth--
		}
	}
	return false
}

// analyzeExpr records the definitions and uses of an expression. Assignment
// targets, increments and variables passed by address to a call are
// definitions; every other variable occurrence is a use. Element and member
// writes (a[i] = x) and compound updates also use their target.
func analyzeExpr(toks []Token, r *refSet) {
	pureDef := make(map[int]bool)

	for k, t := range toks {
		if t.Kind != TokenPunct {
			continue
		}
		switch {
		case assignOps[t.Text]:
			s := lvalueStart(toks, k)
			base := firstVariable(toks, s, k)
			if base < 0 {
				continue
			}
			r.def(toks[base].Text)
			if t.Text == "=" && k-s == 1 {
				pureDef[base] = true
			}

		case t.Text == "++" || t.Text == "--":
			if k > 0 && isOperandEnd(toks[k-1]) {
				if base := firstVariable(toks, lvalueStart(toks, k), k); base >= 0 {
					r.def(toks[base].Text)
				}
			} else if k+1 < len(toks) && isVariableAt(toks, k+1) {
				r.def(toks[k+1].Text)
			}

		case t.Text == "&":
			if k > 0 && k+1 < len(toks) && (toks[k-1].is("(") || toks[k-1].is(",")) &&
				isVariableAt(toks, k+1) && insideCall(toks, k) {
				r.def(toks[k+1].Text)
			}
		}
	}

	for i := range toks {
		if isVariableAt(toks, i) && !pureDef[i] {
			r.use(toks[i].Text)
		}
	}
}

// depthDelta returns the nesting change caused by t.
func depthDelta(t Token) int {
	if t.Kind != TokenPunct {
		return 0
	}
	switch t.Text {
	case "(", "[", "{":
		return 1
	case ")", "]", "}":
		return -1
	}
	return 0
}

// splitTop splits toks on sep occurring outside any brackets.
func splitTop(toks []Token, sep string) [][]Token {
	var parts [][]Token
	depth, start := 0, 0
	for i, t := range toks {
		if depth == 0 && t.is(sep) {
			parts = append(parts, toks[start:i])
			start = i + 1
			continue
		}
		depth += depthDelta(t)
	}
	return append(parts, toks[start:])
}

func indexTop(toks []Token, text string) int {
	depth := 0
	for i, t := range toks {
		if depth == 0 && t.is(text) {
			return i
		}
		depth += depthDelta(t)
	}
	return -1
}

func hasTopPunct(toks []Token, match func(string) bool) bool {
	depth := 0
	for _, t := range toks {
		if depth == 0 && t.Kind == TokenPunct && match(t.Text) {
			return true
		}
		depth += depthDelta(t)
	}
	return false
}

func hasCall(toks []Token) bool {
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].Kind == TokenIdent && !keywords[toks[i].Text] && !typeNames[toks[i].Text] && toks[i+1].is("(") {
			return true
		}
	}
	return false
}

// typePrefix returns the number of leading tokens that spell a type when
// toks is a declaration, or 0 when it is not.
func typePrefix(toks []Token) int {
	i, sawType := 0, false
scan:
	for i < len(toks) && toks[i].Kind == TokenIdent {
		w := toks[i].Text
		switch {
		case w == "struct" || w == "enum" || w == "union" || w == "class":
			i++
			if i < len(toks) && toks[i].Kind == TokenIdent {
				i++
			}
			sawType = true
		case typeNames[w]:
			i++
			sawType = true
		case qualifiers[w]:
			i++
			if w == "signed" || w == "unsigned" || w == "short" || w == "long" {
				sawType = true
			}
		case w == "final" && i+1 < len(toks) && toks[i+1].Kind == TokenIdent:
			// Java modifier; elsewhere final is an ordinary name.
			i++
		default:
			break scan
		}
	}

	if !sawType {
		// A typedef name: the identifier must be followed by a declarator.
		if i >= len(toks) || toks[i].Kind != TokenIdent || keywords[toks[i].Text] {
			return 0
		}
		j := i + 1
		for j+1 < len(toks) && toks[j].is("::") && toks[j+1].Kind == TokenIdent {
			j += 2
		}
		if j < len(toks) && toks[j].is("<") {
			end := matchAngle(toks, j)
			if end < 0 {
				return 0
			}
			j = end + 1
		}
		k := j
		for k < len(toks) && (toks[k].is("*") || toks[k].is("&")) {
			k++
		}
		if k >= len(toks) || toks[k].Kind != TokenIdent || keywords[toks[k].Text] || !declaratorFollows(toks, k+1) {
			return 0
		}
		return j
	}

	k := i
	for k < len(toks) && (toks[k].is("*") || toks[k].is("&") || toks[k].is("&&")) {
		k++
	}
	if k >= len(toks) {
		return 0
	}
	if toks[k].is("(") || (toks[k].Kind == TokenIdent && !keywords[toks[k].Text]) {
		return i
	}
	return 0
}

func declaratorFollows(toks []Token, k int) bool {
	if k >= len(toks) {
		return true
	}
	t := toks[k]
	return t.is("=") || t.is(",") || t.is("[") || t.is(";") || t.is(":")
}

func matchAngle(toks []Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.is("<"):
			depth++
		case t.is(">"):
			depth--
		case t.is(">>"):
			depth -= 2
		case t.Kind == TokenIdent || t.is("::") || t.is(",") || t.is("*"):
		default:
			return -1
		}
		if depth <= 0 {
			return i
		}
	}
	return -1
}

// parseDeclaration records the refs of toks if it is a declaration and
// reports whether it was one.
func parseDeclaration(toks []Token, r *refSet) bool {
	n := typePrefix(toks)
	if n == 0 {
		return false
	}

	local := newRefSet()
	for _, d := range splitTop(toks[n:], ",") {
		j := 0
		for j < len(d) && (d[j].is("*") || d[j].is("&") || d[j].is("&&") || (d[j].Kind == TokenIdent && qualifiers[d[j].Text])) {
			j++
		}
		if j >= len(d) {
			return false
		}

		var rest []Token
		switch {
		case d[j].Kind == TokenIdent && !keywords[d[j].Text]:
			local.def(d[j].Text)
			rest = d[j+1:]
		case d[j].is("("):
			// Function pointer declarator: (*name)(params)
			name := -1
			for k := j + 1; k < len(d) && !d[k].is(")"); k++ {
				if d[k].Kind == TokenIdent {
					name = k
					break
				}
			}
			if name < 0 {
				return false
			}
			local.def(d[name].Text)
			if eq := indexTop(d, "="); eq >= 0 {
				rest = d[eq:]
			}
		default:
			return false
		}

		if eq := indexTop(rest, "="); eq >= 0 {
			analyzeExpr(rest[:eq], local)
			analyzeExpr(rest[eq+1:], local)
		} else {
			analyzeExpr(rest, local)
		}
	}

	r.merge(local)
	return true
}

// classify determines the kind and refs of a simple statement.
func classify(toks []Token) (Kind, *refSet) {
	refs := newRefSet()
	if len(toks) == 0 {
		return KindDeclaration, refs
	}
	if parseDeclaration(toks, refs) {
		return KindDeclaration, refs
	}

	analyzeExpr(toks, refs)
	switch {
	case hasTopPunct(toks, func(p string) bool { return assignOps[p] || p == "++" || p == "--" }):
		return KindAssignment, refs
	case hasCall(toks):
		return KindCall, refs
	}
	return KindDeclaration, newRefSet()
}
