package stmt

import "strings"

// TokenKind classifies lexical tokens.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenPunct
)

// Token is a lexical token with the source line it starts on.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

func (t Token) is(text string) bool {
	return t.Kind == TokenPunct && t.Text == text
}

// punctuators ordered longest first so the lexer can take the longest match.
var punctuators = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "::",
}

// Lex splits src into tokens. Comments, preprocessor directives and the
// contents of string and character literals are discarded. startLine is the
// line number assigned to the first line of src.
func Lex(src string, startLine int) ([]Token, error) {
	var (
		toks      []Token
		line      = startLine
		lineStart = true
	)

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case c == '\n':
			line++
			lineStart = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		}

		// Preprocessor directives run to the end of the line, honouring
		// backslash continuations.
		if c == '#' && lineStart {
			for i < len(src) && src[i] != '\n' {
				if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' {
					line++
					i += 2
					continue
				}
				i++
			}
			continue
		}
		lineStart = false

		switch {
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case strings.HasPrefix(src[i:], "/*"):
			open := line
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, parseErrorf(open, "unterminated block comment")
			}
			comment := src[i : i+2+end+2]
			line += strings.Count(comment, "\n")
			i += len(comment)

		case c == '"' || c == '\'':
			start := line
			j := i + 1
			for ; j < len(src) && src[j] != c; j++ {
				if src[j] == '\\' {
					j++
					continue
				}
				if src[j] == '\n' {
					return nil, parseErrorf(start, "unterminated literal")
				}
			}
			if j >= len(src) {
				return nil, parseErrorf(start, "unterminated literal")
			}
			kind := TokenString
			if c == '\'' {
				kind = TokenNumber
			}
			toks = append(toks, Token{Kind: kind, Text: string(c) + string(c), Line: start})
			i = j + 1

		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, Token{Kind: TokenIdent, Text: src[i:j], Line: line})
			i = j

		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (isIdentPart(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, Token{Kind: TokenNumber, Text: src[i:j], Line: line})
			i = j

		default:
			text := string(c)
			for _, p := range punctuators {
				if strings.HasPrefix(src[i:], p) {
					text = p
					break
				}
			}
			toks = append(toks, Token{Kind: TokenPunct, Text: text, Line: line})
			i += len(text)
		}
	}

	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
