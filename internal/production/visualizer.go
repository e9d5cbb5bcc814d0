package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

// LevelInfo describes one active interpreter level.
type LevelInfo struct {
	Level int                      `json:"level"`
	Kind  primitives.TransformKind `json:"kind"`
}

// DefaultVisualizer renders the interpreter stack and the wrapper nesting of
// named values.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source. Levels render as nested clusters,
// outermost first; each wrapper sits in the cluster of its level and points at
// the value it wraps. Dead wrappers are dashed.
func (v *DefaultVisualizer) ExportDOT(levels []core.Interpreter, values map[string]primitives.Array) string {
	var buf bytes.Buffer
	buf.WriteString("digraph Dispatch {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, fontsize=10, style=rounded];\n")

	active := make(map[int]bool, len(levels))
	for _, in := range levels {
		active[in.Level()] = true
	}
	g := &graph{
		byLevel: make(map[int][]string),
		raw:     make(map[primitives.Array]string),
		seen:    make(map[string]bool),
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g.top = append(g.top, fmt.Sprintf("  %q [shape=plaintext];", name))
		g.walk(name, values[name], active)
	}

	for _, line := range g.top {
		buf.WriteString(line + "\n")
	}
	renderLevels(&buf, levels, g.byLevel, 1)
	for _, e := range g.edges {
		buf.WriteString(e + "\n")
	}
	buf.WriteString("}\n")
	return buf.String()
}

// ExportJSON serializes the active levels, outermost first.
func (v *DefaultVisualizer) ExportJSON(levels []core.Interpreter) ([]byte, error) {
	info := make([]LevelInfo, 0, len(levels))
	for _, in := range levels {
		info = append(info, LevelInfo{Level: in.Level(), Kind: in.Kind()})
	}
	return json.MarshalIndent(info, "", "  ")
}

type graph struct {
	top     []string
	byLevel map[int][]string
	edges   []string
	raw     map[primitives.Array]string
	seen    map[string]bool
}

func (g *graph) walk(from string, a primitives.Array, active map[int]bool) {
	for a != nil {
		w, ok := primitives.MaybeWrapped(a)
		if !ok {
			break
		}
		id := "w_" + w.ID().String()[:8]
		if !g.seen[id] {
			g.seen[id] = true
			style := ""
			if !w.IsAlive() {
				style = " style=dashed"
			}
			node := fmt.Sprintf("    %q [label=\"L%d alias=%t %v\"%s];", id, w.Level(), w.AliasOfUnwrapped(), w.Shape(), style)
			if active[w.Level()] {
				g.byLevel[w.Level()] = append(g.byLevel[w.Level()], node)
			} else {
				g.top = append(g.top, node[2:])
			}
		}
		g.edges = append(g.edges, fmt.Sprintf("  %q -> %q;", from, id))
		from, a = id, w.Value()
	}
	if a == nil {
		return
	}
	id, ok := g.raw[a]
	if !ok {
		id = fmt.Sprintf("raw_%d", len(g.raw))
		g.raw[a] = id
		g.top = append(g.top, fmt.Sprintf("  %q [label=\"raw %v\" shape=ellipse];", id, a.Shape()))
	}
	g.edges = append(g.edges, fmt.Sprintf("  %q -> %q;", from, id))
}

func renderLevels(buf *bytes.Buffer, levels []core.Interpreter, nodes map[int][]string, depth int) {
	if len(levels) == 0 {
		return
	}
	in := levels[0]
	indent := bytes.Repeat([]byte("  "), depth)
	fmt.Fprintf(buf, "%ssubgraph cluster_level_%d {\n", indent, in.Level())
	fmt.Fprintf(buf, "%s  label=\"level %d (%s)\";\n", indent, in.Level(), in.Kind())
	for _, n := range nodes[in.Level()] {
		buf.WriteString(n + "\n")
	}
	renderLevels(buf, levels[1:], nodes, depth+1)
	fmt.Fprintf(buf, "%s}\n", indent)
}
