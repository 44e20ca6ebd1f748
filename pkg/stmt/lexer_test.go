package stmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestLex_Basic(t *testing.T) {
	toks, err := Lex("x += y->z++;", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "+=", "y", "->", "z", "++", ";"}, texts(toks))
	assert.Equal(t, TokenIdent, toks[0].Kind)
	assert.Equal(t, TokenPunct, toks[1].Kind)
}

func TestLex_LineNumbers(t *testing.T) {
	src := "a = 1;\n\n/* multi\nline */ b = 2;\n// c = 3;\nd = 4;"
	toks, err := Lex(src, 10)
	require.NoError(t, err)

	lines := map[string]int{}
	for _, tok := range toks {
		if tok.Kind == TokenIdent {
			lines[tok.Text] = tok.Line
		}
	}
	assert.Equal(t, map[string]int{"a": 10, "b": 13, "d": 15}, lines)
}

func TestLex_DiscardsLiteralContents(t *testing.T) {
	toks, err := Lex(`printf("x = %d\n", x); c = '\'';`, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"printf", "(", `""`, ",", "x", ")", ";", "c", "=", "''", ";"}, texts(toks))
	assert.Equal(t, TokenString, toks[2].Kind)
	assert.Equal(t, TokenNumber, toks[9].Kind)
}

func TestLex_Preprocessor(t *testing.T) {
	src := "#include <stdio.h>\n#define MAX(a, b) \\\n  ((a) > (b))\nint x;"
	toks, err := Lex(src, 1)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 4, toks[0].Line)
}

func TestLex_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unterminated comment", "a = 1;\n/* open", 2},
		{"unterminated string", "s = \"abc\n\";", 1},
		{"unterminated char", "c = 'a", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.src, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}
