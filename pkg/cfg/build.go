package cfg

import (
	"fmt"
	"sort"

	"github.com/l3aro/cflow/pkg/stmt"
)

const (
	entryID = "entry"
	exitID  = "exit"
)

// BlockID returns the block identifier of the statement starting at line.
func BlockID(line int) string {
	return fmt.Sprintf("block_%d", line)
}

// pending is an edge whose target is not known yet.
type pending struct {
	from string
	kind EdgeType
}

// frame collects the break edges leaving the innermost loop or switch.
type frame struct {
	header string
	loop   bool
	breaks []pending
}

type builder struct {
	body   *stmt.Body
	blocks map[string]*CFGBlock
	edges  []CFGEdge
	frames []*frame
}

// Build derives the statement-level Control Flow Graph of an extracted body.
func Build(body *stmt.Body) *CFGInfo {
	b := &builder{
		body:   body,
		blocks: make(map[string]*CFGBlock),
	}

	b.blocks[entryID] = &CFGBlock{ID: entryID, Type: BlockTypeEntry, StartLine: body.FirstLine, EndLine: body.FirstLine, Stmt: -1}
	b.blocks[exitID] = &CFGBlock{ID: exitID, Type: BlockTypeExit, StartLine: body.LastLine, EndLine: body.LastLine, Stmt: -1}
	for i, s := range body.Statements {
		b.blocks[BlockID(s.Line)] = &CFGBlock{
			ID:        BlockID(s.Line),
			Type:      b.blockType(s),
			StartLine: s.Line,
			EndLine:   s.EndLine,
			Stmt:      i,
		}
	}

	out := b.sequence(body.Tree, []pending{{from: entryID, kind: EdgeTypeUnconditional}})
	b.connect(out, exitID, "")

	for _, e := range b.edges {
		tgt := b.blocks[e.TargetID]
		if !containsID(tgt.Predecessors, e.SourceID) {
			tgt.Predecessors = append(tgt.Predecessors, e.SourceID)
		}
	}

	blocks := make(map[string]CFGBlock, len(b.blocks))
	for id, blk := range b.blocks {
		sort.Strings(blk.Predecessors)
		blocks[id] = *blk
	}

	return &CFGInfo{
		FunctionName:         body.Function,
		Blocks:               blocks,
		Edges:                b.edges,
		EntryBlockID:         entryID,
		ExitBlockIDs:         []string{exitID},
		CyclomaticComplexity: len(b.edges) - len(blocks) + 2,
	}
}

func (b *builder) blockType(s stmt.Statement) BlockType {
	switch {
	case s.Kind.IsHeader():
		return BlockTypeBranch
	case s.Kind == stmt.KindReturn:
		return BlockTypeReturn
	}
	if s.Enclosing > 0 {
		if h, ok := b.body.StatementAt(s.Enclosing); ok && h.Kind == stmt.KindLoopHeader {
			return BlockTypeLoopBody
		}
	}
	return BlockTypePlain
}

func (b *builder) addEdge(from, to string, kind EdgeType) {
	b.edges = append(b.edges, CFGEdge{SourceID: from, TargetID: to, EdgeType: kind})
}

// connect links every pending edge to target. A non-empty kind overrides
// the pending edge kinds.
func (b *builder) connect(in []pending, target string, kind EdgeType) {
	for _, p := range in {
		k := p.kind
		if kind != "" {
			k = kind
		}
		b.addEdge(p.from, target, k)
	}
}

func (b *builder) sequence(nodes []*stmt.Node, in []pending) []pending {
	for _, n := range nodes {
		if len(in) == 0 {
			// Statements after a jump are unreachable and stay disconnected.
			return nil
		}
		in = b.node(n, in)
	}
	return in
}

func (b *builder) node(n *stmt.Node, in []pending) []pending {
	if n.Stmt < 0 {
		return b.sequence(n.Body, in)
	}

	s := b.body.Statements[n.Stmt]
	id := BlockID(s.Line)
	b.connect(in, id, "")

	switch {
	case n.Loop:
		f := &frame{header: id, loop: true}
		b.frames = append(b.frames, f)
		out := b.sequence(n.Body, []pending{{from: id, kind: EdgeTypeTrue}})
		b.connect(out, id, EdgeTypeBackEdge)
		b.frames = b.frames[:len(b.frames)-1]
		return append([]pending{{from: id, kind: EdgeTypeFalse}}, f.breaks...)

	case n.Switch:
		f := &frame{header: id}
		b.frames = append(b.frames, f)
		var fall []pending
		for _, arm := range n.Cases {
			fall = b.sequence(arm, append([]pending{{from: id, kind: EdgeTypeTrue}}, fall...))
		}
		b.frames = b.frames[:len(b.frames)-1]
		out := append(fall, f.breaks...)
		if !n.HasDefault {
			out = append(out, pending{from: id, kind: EdgeTypeFalse})
		}
		return out

	case n.IsBranch():
		out := b.sequence(n.Body, []pending{{from: id, kind: EdgeTypeTrue}})
		return append(out, b.sequence(n.Else, []pending{{from: id, kind: EdgeTypeFalse}})...)
	}

	switch s.Jump {
	case stmt.JumpReturn:
		b.addEdge(id, exitID, EdgeTypeUnconditional)
		return nil
	case stmt.JumpBreak:
		if len(b.frames) > 0 {
			f := b.frames[len(b.frames)-1]
			f.breaks = append(f.breaks, pending{from: id, kind: EdgeTypeBreak})
			return nil
		}
	case stmt.JumpContinue:
		for i := len(b.frames) - 1; i >= 0; i-- {
			if b.frames[i].loop {
				b.addEdge(id, b.frames[i].header, EdgeTypeContinue)
				return nil
			}
		}
	}
	return []pending{{from: id, kind: EdgeTypeUnconditional}}
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
