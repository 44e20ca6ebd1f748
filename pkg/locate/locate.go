// Package locate finds the line range of function definitions so a host can
// turn a cursor position into the function range the slicer analyses.
// C, C++ and Java are parsed with tree-sitter; other text falls back to
// brace matching.
package locate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrNotFound is returned when no function matches.
var ErrNotFound = errors.New("function not found")

// Function is a located function definition. Lines are 1-based and
// inclusive.
type Function struct {
	Name     string   `json:"name"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Language Language `json:"language,omitempty"`
}

// Contains reports whether line lies within the function.
func (f Function) Contains(line int) bool {
	return line >= f.Start && line <= f.End
}

// Functions lists every function definition in src in source order. The
// grammar is chosen from the path extension; files without a grammar use
// brace matching.
func Functions(ctx context.Context, path string, src []byte) ([]Function, error) {
	lang := DetectLanguage(path)
	parser := lang.newParser()
	if parser == nil {
		return Braces(src)
	}
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing %s failed", path)
	}
	defer tree.Close()

	var funcs []Function
	walk(tree.RootNode(), func(n *sitter.Node) {
		if !functionTypes[lang][n.Type()] {
			return
		}
		body := n.ChildByFieldName("body")
		if body == nil {
			return
		}
		funcs = append(funcs, Function{
			Name:     functionName(lang, n, src),
			Start:    startLine(lang, n),
			End:      int(body.EndPoint().Row) + 1,
			Language: lang,
		})
	})

	sort.SliceStable(funcs, func(i, j int) bool { return funcs[i].Start < funcs[j].Start })
	return funcs, nil
}

// Enclosing returns the innermost function containing line.
func Enclosing(ctx context.Context, path string, src []byte, line int) (*Function, error) {
	funcs, err := Functions(ctx, path, src)
	if err != nil {
		return nil, err
	}

	var best *Function
	for i := range funcs {
		f := &funcs[i]
		if !f.Contains(line) {
			continue
		}
		if best == nil || f.End-f.Start < best.End-best.Start {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no function encloses line %d of %s", ErrNotFound, line, path)
	}
	return best, nil
}

// ByName returns the first function called name. Qualified C++ names match
// either in full ("Stack::push") or by their last component ("push").
func ByName(ctx context.Context, path string, src []byte, name string) (*Function, error) {
	funcs, err := Functions(ctx, path, src)
	if err != nil {
		return nil, err
	}
	for i := range funcs {
		if funcs[i].Name == name {
			return &funcs[i], nil
		}
	}
	for i := range funcs {
		if lastComponent(funcs[i].Name) == name {
			return &funcs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrNotFound, name, path)
}

// walk visits n and its named descendants depth first.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

// startLine is the first line of the definition. Java annotations on their
// own lines are not part of the analysed range.
func startLine(lang Language, n *sitter.Node) int {
	start := int(n.StartPoint().Row)
	if lang == Java {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			mods := n.NamedChild(i)
			if mods.Type() != "modifiers" {
				continue
			}
			for j := 0; j < int(mods.NamedChildCount()); j++ {
				a := mods.NamedChild(j)
				if a.Type() == "annotation" || a.Type() == "marker_annotation" {
					if row := int(a.EndPoint().Row) + 1; row > start {
						start = row
					}
				}
			}
		}
		if name := n.ChildByFieldName("name"); name != nil && start > int(name.StartPoint().Row) {
			start = int(name.StartPoint().Row)
		}
	}
	return start + 1
}

// functionName resolves the declared name through nested declarators.
func functionName(lang Language, n *sitter.Node, src []byte) string {
	if lang == Java {
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
		return ""
	}

	for d := n.ChildByFieldName("declarator"); d != nil; {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "template_function":
			return d.Content(src)
		case "parenthesized_declarator":
			d = d.NamedChild(0)
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return ""
}

func lastComponent(name string) string {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == ':' && name[i-1] == ':' {
			return name[i+1:]
		}
	}
	return name
}
