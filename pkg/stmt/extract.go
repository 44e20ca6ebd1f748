package stmt

import "strings"

// controlWords cannot begin a function signature.
var controlWords = set("if", "else", "for", "while", "do", "switch", "case", "default", "return")

type parser struct {
	toks  []Token
	pos   int
	stmts []Statement
	refs  []*refSet
	owner map[int]int // physical line -> index of the statement that starts or spans it
}

// Extract splits the text of one function (or a bare statement range) into
// statements. startLine is the source line number of the first line of src.
//
// When the text opens with a signature, the signature becomes a Declaration
// statement defining the parameters. Text without a recognizable signature
// is treated as an implicit body.
func Extract(src string, startLine int) (*Body, error) {
	toks, err := Lex(src, startLine)
	if err != nil {
		return nil, err
	}

	body := &Body{
		FirstLine: startLine,
		LastLine:  startLine + strings.Count(strings.TrimSuffix(src, "\n"), "\n"),
	}
	if src == "" {
		body.LastLine = startLine - 1
	}

	p := &parser{toks: toks, owner: make(map[int]int)}
	tree, err := p.parseFunction(body)
	if err != nil {
		return nil, err
	}

	for i := range p.stmts {
		p.stmts[i].Defs = sortedKeys(p.refs[i].defs)
		p.stmts[i].Uses = sortedKeys(p.refs[i].uses)
	}
	body.Statements = p.stmts
	body.Tree = tree
	return body, nil
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() Token {
	if p.eof() {
		return Token{}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return Token{}
	}
	return p.toks[p.pos+n]
}

func (p *parser) peekWord(w string) bool {
	t := p.peek()
	return !p.eof() && t.Kind == TokenIdent && t.Text == w
}

func (p *parser) next() Token {
	t := p.peek()
	p.pos++
	return t
}

// lastLine returns the line of the most recently consumed token.
func (p *parser) lastLine() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].Line
}

// record adds a statement, or merges it into the statement already owning
// line. The boolean result reports whether a merge happened.
func (p *parser) record(line, endLine int, kind Kind, refs *refSet, gov int) (int, bool) {
	if idx, ok := p.owner[line]; ok {
		s := &p.stmts[idx]
		if kind.IsHeader() && !s.Kind.IsHeader() {
			s.Kind = kind
		}
		p.refs[idx].merge(refs)
		p.claim(idx, line, endLine)
		return idx, true
	}

	idx := len(p.stmts)
	p.stmts = append(p.stmts, Statement{Line: line, EndLine: line, Kind: kind, Enclosing: gov})
	p.refs = append(p.refs, refs)
	p.claim(idx, line, endLine)
	return idx, false
}

func (p *parser) claim(idx, from, to int) {
	for l := from; l <= to; l++ {
		if _, ok := p.owner[l]; !ok {
			p.owner[l] = idx
		}
	}
	if to > p.stmts[idx].EndLine {
		p.stmts[idx].EndLine = to
	}
}

// appendNode adds n to nodes. A header that merged into the statement
// just before it replaces that statement's node.
func appendNode(nodes []*Node, n *Node) []*Node {
	if n == nil {
		return nodes
	}
	if last := len(nodes) - 1; last >= 0 && n.Stmt >= 0 && nodes[last].Stmt == n.Stmt {
		nodes[last] = n
		return nodes
	}
	return append(nodes, n)
}

func (p *parser) parseFunction(body *Body) ([]*Node, error) {
	if p.eof() {
		return nil, nil
	}

	var nodes []*Node
	hasSig := false
	if open := p.signatureEnd(); open > 0 {
		sig := p.toks[:open]
		if name, refs, ok := parseSignature(sig); ok {
			idx, _ := p.record(sig[0].Line, sig[len(sig)-1].Line, KindDeclaration, refs, 0)
			p.stmts[idx].Signature = true
			body.Function = name
			body.Signature = sig[0].Line
			nodes = append(nodes, &Node{Stmt: idx})
			p.pos = open
			hasSig = true
		}
	}

	if p.peek().is("{") && (hasSig || p.matching(p.pos) == len(p.toks)-1) {
		open := p.next()
		items, err := p.parseItems(0)
		if err != nil {
			return nil, err
		}
		closeTok, err := p.closeBrace(open)
		if err != nil {
			return nil, err
		}
		body.CloseLine = closeTok.Line
		if !p.eof() {
			return nil, parseErrorf(p.peek().Line, "unexpected %q after end of function", p.peek().Text)
		}
		return append(nodes, items...), nil
	}

	items, err := p.parseItems(0)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, parseErrorf(p.peek().Line, "unbalanced '}'")
	}
	return append(nodes, items...), nil
}

// matching returns the index of the token closing the bracket at open, or
// -1 when it is never closed.
func (p *parser) matching(open int) int {
	depth := 0
	for i := open; i < len(p.toks); i++ {
		depth += depthDelta(p.toks[i])
		if depth == 0 {
			return i
		}
	}
	return -1
}

// signatureEnd returns the index of the '{' that opens the function body
// when the tokens before it look like a signature, or 0.
func (p *parser) signatureEnd() int {
	first := p.toks[0]
	if first.Kind != TokenIdent || controlWords[first.Text] {
		return 0
	}
	depth, sawParen := 0, false
	for i, t := range p.toks {
		if depth == 0 {
			switch {
			case t.is("{"):
				if sawParen {
					return i
				}
				return 0
			case t.is(";"), t.is("="), t.is("}"):
				return 0
			case t.is("(") && i > 0 && p.toks[i-1].Kind == TokenIdent:
				sawParen = true
			}
		}
		depth += depthDelta(t)
		if depth < 0 {
			return 0
		}
	}
	return 0
}

// parseSignature extracts the function name and parameter definitions.
func parseSignature(sig []Token) (string, *refSet, bool) {
	open := -1
	for i := 1; i < len(sig); i++ {
		if sig[i].is("(") && sig[i-1].Kind == TokenIdent && !keywords[sig[i-1].Text] {
			open = i
			break
		}
	}
	if open < 0 {
		return "", nil, false
	}
	depth, end := 0, -1
	for i := open; i < len(sig); i++ {
		depth += depthDelta(sig[i])
		if depth == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, false
	}

	refs := newRefSet()
	for _, param := range splitTop(sig[open+1:end], ",") {
		if len(param) == 0 || (len(param) == 1 && (param[0].Text == "void" || param[0].is("..."))) {
			continue
		}
		if name := paramName(param); name != "" {
			refs.def(name)
		}
	}
	return sig[open-1].Text, refs, true
}

func paramName(param []Token) string {
	// Drop a default value.
	if eq := indexTop(param, "="); eq >= 0 {
		param = param[:eq]
	}
	name, depth := "", 0
	for i, t := range param {
		if depth == 0 && t.Kind == TokenIdent && !keywords[t.Text] && !typeNames[t.Text] && !qualifiers[t.Text] {
			name = t.Text
		}
		if t.is("(") && name == "" {
			// Function pointer parameter: int (*cb)(int)
			for k := i + 1; k < len(param) && !param[k].is(")"); k++ {
				if param[k].Kind == TokenIdent {
					return param[k].Text
				}
			}
		}
		depth += depthDelta(t)
	}
	return name
}

// parseItems parses statements until EOF or an unconsumed '}'.
func (p *parser) parseItems(gov int) ([]*Node, error) {
	var nodes []*Node
	for !p.eof() && !p.peek().is("}") {
		n, err := p.parseStatement(gov)
		if err != nil {
			return nil, err
		}
		nodes = appendNode(nodes, n)
	}
	return nodes, nil
}

func (p *parser) closeBrace(open Token) (Token, error) {
	if !p.peek().is("}") || p.eof() {
		return Token{}, parseErrorf(open.Line, "unclosed '{'")
	}
	return p.next(), nil
}

func (p *parser) parseStatement(gov int) (*Node, error) {
	t := p.peek()
	switch {
	case t.is("{"):
		open := p.next()
		items, err := p.parseItems(gov)
		if err != nil {
			return nil, err
		}
		if _, err := p.closeBrace(open); err != nil {
			return nil, err
		}
		return &Node{Stmt: -1, Body: items}, nil
	case t.is(";"):
		p.next()
		return nil, nil
	case t.is("}"):
		return nil, parseErrorf(t.Line, "unbalanced '}'")
	}

	if t.Kind == TokenIdent {
		switch t.Text {
		case "for":
			return p.parseFor(gov)
		case "while":
			return p.parseWhile(gov)
		case "do":
			return p.parseDo(gov)
		case "if":
			return p.parseIf(gov)
		case "switch":
			return p.parseSwitch(gov)
		case "else":
			return nil, parseErrorf(t.Line, "'else' without 'if'")
		case "case", "default":
			return nil, parseErrorf(t.Line, "'%s' outside switch", t.Text)
		case "return":
			return p.parseJump(gov, KindReturn, JumpReturn)
		case "break":
			return p.parseJump(gov, KindDeclaration, JumpBreak)
		case "continue":
			return p.parseJump(gov, KindDeclaration, JumpContinue)
		}
		// Labels carry no data and are skipped.
		if p.peekAt(1).is(":") && !keywords[t.Text] {
			p.pos += 2
			if p.eof() || p.peek().is("}") {
				return nil, nil
			}
			return p.parseStatement(gov)
		}
	}

	return p.parseSimple(gov)
}

// collect consumes tokens up to and including the ';' ending a simple
// statement. A '}' at depth zero ends the statement without being consumed.
func (p *parser) collect() ([]Token, int, error) {
	start := p.peek()
	var toks []Token
	depth := 0
	for !p.eof() {
		t := p.peek()
		if depth == 0 && t.is(";") {
			p.next()
			return toks, t.Line, nil
		}
		if depth == 0 && t.is("}") {
			break
		}
		depth += depthDelta(t)
		if depth < 0 {
			return nil, 0, parseErrorf(t.Line, "unbalanced '%s'", t.Text)
		}
		toks = append(toks, p.next())
	}
	if depth > 0 {
		return nil, 0, parseErrorf(start.Line, "unbalanced '%s'", openerOf(toks))
	}
	return toks, p.lastLine(), nil
}

func openerOf(toks []Token) string {
	for _, t := range toks {
		if depthDelta(t) > 0 {
			return t.Text
		}
	}
	return "("
}

func (p *parser) parseSimple(gov int) (*Node, error) {
	line := p.peek().Line
	toks, end, err := p.collect()
	if err != nil {
		return nil, err
	}
	kind, refs := classify(toks)
	idx, merged := p.record(line, end, kind, refs, gov)
	if merged {
		return nil, nil
	}
	return &Node{Stmt: idx}, nil
}

func (p *parser) parseJump(gov int, kind Kind, jump Jump) (*Node, error) {
	kw := p.next()
	toks, end, err := p.collect()
	if err != nil {
		return nil, err
	}
	refs := newRefSet()
	if jump == JumpReturn {
		analyzeExpr(toks, refs)
	}
	idx, merged := p.record(kw.Line, end, kind, refs, gov)
	if merged {
		// A jump sharing a line with a plain statement ends that statement.
		if !p.stmts[idx].Kind.IsHeader() {
			p.stmts[idx].Jump = jump
		}
		return nil, nil
	}
	p.stmts[idx].Jump = jump
	return &Node{Stmt: idx}, nil
}

// condition consumes a parenthesised header expression following kw.
func (p *parser) condition(kw Token) ([]Token, int, error) {
	if !p.peek().is("(") || p.eof() {
		return nil, 0, parseErrorf(kw.Line, "expected '(' after '%s'", kw.Text)
	}
	open := p.pos
	end := p.matching(open)
	if end < 0 {
		return nil, 0, parseErrorf(kw.Line, "unbalanced '('")
	}
	inner := p.toks[open+1 : end]
	p.pos = end + 1
	return inner, p.toks[end].Line, nil
}

// parseBody parses the statement governed by a header. Braces are
// unwrapped; a braceless body is exactly one statement.
func (p *parser) parseBody(kw Token, gov int) ([]*Node, error) {
	if p.eof() {
		return nil, parseErrorf(kw.Line, "missing body after '%s'", kw.Text)
	}
	if p.peek().is(";") {
		p.next()
		return nil, nil
	}
	n, err := p.parseStatement(gov)
	if err != nil || n == nil {
		return nil, err
	}
	if n.Stmt < 0 {
		return n.Body, nil
	}
	return []*Node{n}, nil
}

func (p *parser) parseFor(gov int) (*Node, error) {
	kw := p.next()
	inner, closeLine, err := p.condition(kw)
	if err != nil {
		return nil, err
	}

	refs := newRefSet()
	clauses := splitTop(inner, ";")
	switch len(clauses) {
	case 3:
		if !parseDeclaration(clauses[0], refs) {
			analyzeExpr(clauses[0], refs)
		}
		analyzeExpr(clauses[1], refs)
		analyzeExpr(clauses[2], refs)
	case 1:
		// Range form: for (T x : xs)
		colon := indexTop(inner, ":")
		if colon < 0 {
			return nil, parseErrorf(kw.Line, "malformed for header")
		}
		if !parseDeclaration(inner[:colon], refs) {
			analyzeExpr(inner[:colon], refs)
		}
		analyzeExpr(inner[colon+1:], refs)
	default:
		return nil, parseErrorf(kw.Line, "malformed for header")
	}

	idx, _ := p.record(kw.Line, closeLine, KindLoopHeader, refs, gov)
	node := &Node{Stmt: idx, Loop: true}
	if node.Body, err = p.parseBody(kw, p.stmts[idx].Line); err != nil {
		return nil, err
	}
	p.stmts[idx].BlockEnd = p.lastLine()
	return node, nil
}

func (p *parser) parseWhile(gov int) (*Node, error) {
	kw := p.next()
	cond, closeLine, err := p.condition(kw)
	if err != nil {
		return nil, err
	}
	refs := newRefSet()
	analyzeExpr(cond, refs)

	idx, _ := p.record(kw.Line, closeLine, KindLoopHeader, refs, gov)
	node := &Node{Stmt: idx, Loop: true}
	if node.Body, err = p.parseBody(kw, p.stmts[idx].Line); err != nil {
		return nil, err
	}
	p.stmts[idx].BlockEnd = p.lastLine()
	return node, nil
}

// parseDo handles do { ... } while (cond); The condition's uses belong to
// the do header.
func (p *parser) parseDo(gov int) (*Node, error) {
	kw := p.next()
	idx, _ := p.record(kw.Line, kw.Line, KindLoopHeader, newRefSet(), gov)
	node := &Node{Stmt: idx, Loop: true, DoWhile: true}

	var err error
	if node.Body, err = p.parseBody(kw, p.stmts[idx].Line); err != nil {
		return nil, err
	}
	if !p.peekWord("while") {
		return nil, parseErrorf(kw.Line, "expected 'while' after do body")
	}
	w := p.next()
	cond, _, err := p.condition(w)
	if err != nil {
		return nil, err
	}
	analyzeExpr(cond, p.refs[idx])
	if p.peek().is(";") && !p.eof() {
		p.next()
	}
	p.stmts[idx].BlockEnd = p.lastLine()
	return node, nil
}

func (p *parser) parseIf(gov int) (*Node, error) {
	kw := p.next()
	cond, closeLine, err := p.condition(kw)
	if err != nil {
		return nil, err
	}
	refs := newRefSet()
	analyzeExpr(cond, refs)

	idx, _ := p.record(kw.Line, closeLine, KindBranchHeader, refs, gov)
	header := p.stmts[idx].Line
	node := &Node{Stmt: idx, Branch: true}
	if node.Body, err = p.parseBody(kw, header); err != nil {
		return nil, err
	}

	if p.peekWord("else") {
		elseTok := p.next()
		if p.peekWord("if") {
			elseIf, err := p.parseIf(header)
			if err != nil {
				return nil, err
			}
			node.Else = []*Node{elseIf}
		} else if node.Else, err = p.parseBody(elseTok, header); err != nil {
			return nil, err
		}
	}
	p.stmts[idx].BlockEnd = p.lastLine()
	return node, nil
}

func (p *parser) parseSwitch(gov int) (*Node, error) {
	kw := p.next()
	cond, closeLine, err := p.condition(kw)
	if err != nil {
		return nil, err
	}
	refs := newRefSet()
	analyzeExpr(cond, refs)

	idx, _ := p.record(kw.Line, closeLine, KindBranchHeader, refs, gov)
	header := p.stmts[idx].Line
	if !p.peek().is("{") || p.eof() {
		return nil, parseErrorf(kw.Line, "expected '{' after switch")
	}
	open := p.next()

	node := &Node{Stmt: idx, Switch: true}
	var arm []*Node
	started := false
	for {
		if p.eof() {
			return nil, parseErrorf(open.Line, "unclosed '{'")
		}
		t := p.peek()
		if t.is("}") {
			p.next()
			break
		}
		if t.Kind == TokenIdent && (t.Text == "case" || t.Text == "default") {
			if started {
				node.Cases = append(node.Cases, arm)
			}
			arm, started = nil, true
			if t.Text == "default" {
				node.HasDefault = true
			}
			for !p.eof() && !p.peek().is(":") && !p.peek().is("->") {
				p.next()
			}
			if p.eof() {
				return nil, parseErrorf(t.Line, "expected ':' after '%s'", t.Text)
			}
			p.next()
			continue
		}
		n, err := p.parseStatement(header)
		if err != nil {
			return nil, err
		}
		arm = appendNode(arm, n)
	}
	if started || len(arm) > 0 {
		node.Cases = append(node.Cases, arm)
	}
	p.stmts[idx].BlockEnd = p.lastLine()
	return node, nil
}
