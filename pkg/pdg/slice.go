// Package pdg provides slicing algorithms for Program Dependence Graphs.
// These algorithms enable backward and forward slice analysis to find
// data and control dependencies between lines of code.
package pdg

import (
	"container/list"
	"errors"
	"fmt"
	"sort"
)

// Direction selects which side of the dependence graph a slice follows.
type Direction string

const (
	Backward Direction = "backward" // Lines that may affect the focus
	Forward  Direction = "forward"  // Lines the focus may affect
	Both     Direction = "both"     // Union of both slices
)

// ErrInvalidDirection is returned for an unknown direction name.
var ErrInvalidDirection = errors.New("invalid direction")

// ParseDirection converts a user supplied direction name.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Backward, Forward, Both:
		return Direction(s), nil
	case "":
		return Both, nil
	}
	return "", fmt.Errorf("%w %q: want backward, forward or both", ErrInvalidDirection, s)
}

// ErrFocusNotFound is matched by every *FocusNotFoundError through errors.Is.
var ErrFocusNotFound = errors.New("focus not found")

// FocusNotFoundError reports that no statement at the focus line defines
// or uses the focus variable.
type FocusNotFoundError struct {
	Variable string
	Line     int
}

func (e *FocusNotFoundError) Error() string {
	return fmt.Sprintf("variable %q is not defined or used at line %d", e.Variable, e.Line)
}

// Is makes errors.Is(err, ErrFocusNotFound) hold for any FocusNotFoundError.
func (e *FocusNotFoundError) Is(target error) bool {
	return target == ErrFocusNotFound
}

// SliceResult is the relevance set computed for one focus.
type SliceResult struct {
	Variable  string    `json:"variable" msgpack:"variable"`   // Focus variable
	Line      int       `json:"line" msgpack:"line"`           // Focus line as requested
	Anchor    int       `json:"anchor" msgpack:"anchor"`       // Line of the statement the slice starts from
	Direction Direction `json:"direction" msgpack:"direction"` // Direction the slice was computed in
	Lines     []int     `json:"lines" msgpack:"lines"`         // Relevant statement lines, sorted
}

// Contains reports whether line is in the relevance set.
func (r *SliceResult) Contains(line int) bool {
	i := sort.SearchInts(r.Lines, line)
	return i < len(r.Lines) && r.Lines[i] == line
}

// DependencyInfo contains the control and data dependencies for a specific line.
// It separates incoming and outgoing edges for both control and data dependence types.
type DependencyInfo struct {
	ControlIn  []PDGEdge `json:"control_in"`  // Edges representing control dependence into this line
	ControlOut []PDGEdge `json:"control_out"` // Edges representing control dependence from this line
	DataIn     []PDGEdge `json:"data_in"`     // Edges representing data dependence into this line
	DataOut    []PDGEdge `json:"data_out"`    // Edges representing data dependence from this line
}

// buildEdgeMaps creates incoming and outgoing edge maps for efficient traversal.
// incoming[line] contains all edges pointing TO that statement
// outgoing[line] contains all edges originating FROM that statement
func buildEdgeMaps(pdg *PDGInfo) (incoming map[int][]PDGEdge, outgoing map[int][]PDGEdge) {
	incoming = make(map[int][]PDGEdge)
	outgoing = make(map[int][]PDGEdge)

	for _, edge := range pdg.Edges {
		outgoing[edge.Source] = append(outgoing[edge.Source], edge)
		incoming[edge.Target] = append(incoming[edge.Target], edge)
	}
	return
}

// Slice computes the relevance set of variable at line.
//
// The anchor is the statement spanning line that defines or uses variable.
// The backward slice follows every incoming data and control edge; the
// forward slice follows outgoing data edges, so every variable defined by a
// reached statement propagates further. Headers governing any relevant
// statement are added recursively, and the focus line is always included.
func Slice(g *PDGInfo, variable string, line int, dir Direction) (*SliceResult, error) {
	if g == nil {
		return nil, &FocusNotFoundError{Variable: variable, Line: line}
	}
	node, ok := g.NodeAt(line)
	if !ok || !nodeRefers(node, variable) {
		return nil, &FocusNotFoundError{Variable: variable, Line: line}
	}

	relevant := map[int]struct{}{node.Line: {}}
	if dir == Backward || dir == Both {
		for _, l := range BackwardSlice(g, node.Line) {
			relevant[l] = struct{}{}
		}
	}
	if dir == Forward || dir == Both {
		for _, l := range ForwardSlice(g, node.Line) {
			relevant[l] = struct{}{}
		}
	}

	// Structural inclusion: walk the enclosing-header chain of each member.
	for l := range relevant {
		for h := g.Nodes[l].Enclosing; h != 0; h = g.Nodes[h].Enclosing {
			if _, seen := relevant[h]; seen {
				break
			}
			relevant[h] = struct{}{}
		}
	}
	relevant[line] = struct{}{}

	return &SliceResult{
		Variable:  variable,
		Line:      line,
		Anchor:    node.Line,
		Direction: dir,
		Lines:     sortedLines(relevant),
	}, nil
}

func nodeRefers(n PDGNode, variable string) bool {
	for _, r := range n.Definitions {
		if r.Name == variable {
			return true
		}
	}
	for _, r := range n.Uses {
		if r.Name == variable {
			return true
		}
	}
	return false
}

// BackwardSlice returns the statement lines that may affect the statement
// at line, following incoming data and control edges.
func BackwardSlice(pdg *PDGInfo, line int) []int {
	if pdg == nil {
		return nil
	}
	if _, ok := pdg.Nodes[line]; !ok {
		return nil
	}
	incoming, _ := pdg.edgeMaps()
	return bfs(line, func(l int) []int {
		var next []int
		for _, e := range incoming[l] {
			next = append(next, e.Source)
		}
		return next
	})
}

// ForwardSlice returns the statement lines that may be affected by the
// statement at line, following outgoing data edges.
func ForwardSlice(pdg *PDGInfo, line int) []int {
	if pdg == nil {
		return nil
	}
	if _, ok := pdg.Nodes[line]; !ok {
		return nil
	}
	_, outgoing := pdg.edgeMaps()
	return bfs(line, func(l int) []int {
		var next []int
		for _, e := range outgoing[l] {
			if e.DepType == DepTypeData {
				next = append(next, e.Target)
			}
		}
		return next
	})
}

// bfs visits every line reachable from start and returns them sorted.
func bfs(start int, neighbours func(int) []int) []int {
	visited := map[int]struct{}{start: {}}
	queue := list.New()
	queue.PushBack(start)

	for queue.Len() > 0 {
		current := queue.Remove(queue.Front()).(int)
		for _, n := range neighbours(current) {
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			queue.PushBack(n)
		}
	}
	return sortedLines(visited)
}

func sortedLines(set map[int]struct{}) []int {
	lines := make([]int, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// GetDependencies returns all dependencies for a specific line.
// It separates control and data dependencies into incoming and outgoing categories.
func GetDependencies(pdg *PDGInfo, line int) DependencyInfo {
	if pdg == nil {
		return DependencyInfo{}
	}
	node, ok := pdg.NodeAt(line)
	if !ok {
		return DependencyInfo{}
	}

	incoming, outgoing := pdg.edgeMaps()
	var info DependencyInfo
	for _, edge := range incoming[node.Line] {
		if edge.DepType == DepTypeControl {
			info.ControlIn = append(info.ControlIn, edge)
		} else {
			info.DataIn = append(info.DataIn, edge)
		}
	}
	for _, edge := range outgoing[node.Line] {
		if edge.DepType == DepTypeControl {
			info.ControlOut = append(info.ControlOut, edge)
		} else {
			info.DataOut = append(info.DataOut, edge)
		}
	}
	return info
}

// GetVariableNames returns all unique variable names referenced by the
// graph's statements, sorted.
func GetVariableNames(pdg *PDGInfo) []string {
	if pdg == nil {
		return nil
	}

	varSet := make(map[string]bool)
	for _, node := range pdg.Nodes {
		for _, r := range node.Definitions {
			varSet[r.Name] = true
		}
		for _, r := range node.Uses {
			varSet[r.Name] = true
		}
	}

	variables := make([]string, 0, len(varSet))
	for v := range varSet {
		variables = append(variables, v)
	}
	sort.Strings(variables)
	return variables
}

// FindNodesByVariable returns the lines of statements that define or use
// varName, sorted.
func FindNodesByVariable(pdg *PDGInfo, varName string) []int {
	if pdg == nil {
		return nil
	}

	set := make(map[int]struct{})
	for line, node := range pdg.Nodes {
		if nodeRefers(node, varName) {
			set[line] = struct{}{}
		}
	}
	return sortedLines(set)
}
