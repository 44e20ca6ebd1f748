package stmt

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every *ParseError through errors.Is.
var ErrParse = errors.New("parse error")

// ParseError reports unbalanced delimiters or structurally unrecognizable
// input. Analysis of the function stops at the first ParseError.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
}

// Is makes errors.Is(err, ErrParse) hold for any ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseErrorf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
