package locate

import (
	"github.com/l3aro/cflow/pkg/stmt"
)

// Braces finds function definitions by brace matching: a top-level '{'
// preceded by a parenthesised parameter list opens a function body that
// runs to the matching '}'. The definition starts at the first token after
// the previous top-level ';' or '}'.
func Braces(src []byte) ([]Function, error) {
	toks, err := stmt.Lex(string(src), 1)
	if err != nil {
		return nil, err
	}

	var funcs []Function
	depth, stmtStart := 0, 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != stmt.TokenPunct {
			continue
		}
		switch t.Text {
		case "{":
			if depth == 0 && i > stmtStart && toks[i-1].Kind == stmt.TokenPunct && toks[i-1].Text == ")" {
				end := closing(toks, i)
				if end < 0 {
					return funcs, nil
				}
				funcs = append(funcs, Function{
					Name:  calleeName(toks[stmtStart:i]),
					Start: toks[stmtStart].Line,
					End:   toks[end].Line,
				})
				i = end
				stmtStart = end + 1
				continue
			}
			depth++
		case "}":
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				stmtStart = i + 1
			}
		case ";":
			if depth == 0 {
				stmtStart = i + 1
			}
		}
	}
	return funcs, nil
}

// closing returns the index of the '}' matching the '{' at open, or -1.
func closing(toks []stmt.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != stmt.TokenPunct {
			continue
		}
		switch toks[i].Text {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// calleeName returns the identifier directly before the first top-level '('.
func calleeName(toks []stmt.Token) string {
	for i := 1; i < len(toks); i++ {
		if toks[i].Kind == stmt.TokenPunct && toks[i].Text == "(" && toks[i-1].Kind == stmt.TokenIdent {
			return toks[i-1].Text
		}
	}
	return ""
}
