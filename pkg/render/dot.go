// Package render generates Graphviz visualizations of factory graphs.
// Nodes are styled by group (item, machine, collector) and edges carry the
// transfer-rate labels computed by the last recompute pass.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/chainflow/pkg/factory"
)

// Options configures factory graph rendering.
type Options struct {
	// ShowHidden includes hidden nodes, drawn dimmed, instead of omitting
	// them.
	ShowHidden bool

	// Detailed includes base rates and overflow amounts in edge labels.
	Detailed bool
}

// group styling mirrors the item/machine/collector display groups of the
// interactive view.
var groupAttrs = map[factory.Group]string{
	factory.GroupItem:      `shape=ellipse, fillcolor="#dae8fc"`,
	factory.GroupMachine:   `shape=box, fillcolor="#d5e8d4"`,
	factory.GroupCollector: `shape=box, fillcolor="#ffe6cc"`,
}

// ToDOT converts a factory graph to Graphviz DOT format.
// Hidden nodes and their edges are omitted unless opts.ShowHidden is set.
// The resulting DOT string can be rendered with [SVG] or [PNG].
func ToDOT(s *factory.Store, opts Options) string {
	visible := make(map[string]bool, s.NodeCount())
	for _, id := range s.VisibleIDs() {
		visible[id] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph factory {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=\"filled\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=11];\n")
	buf.WriteString("\n")

	for _, n := range s.Nodes() {
		if n.Hidden && !opts.ShowHidden {
			continue
		}
		attrs := []string{fmt.Sprintf("label=%q", n.DisplayLabel())}
		if ga, ok := groupAttrs[n.Group]; ok {
			attrs = append(attrs, ga)
		}
		if n.Hidden {
			attrs = append(attrs, `style="filled,dashed"`, `fillcolor=lightgrey`, `fontcolor=grey40`)
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range s.Edges() {
		if !opts.ShowHidden && (!visible[e.From] || !visible[e.To]) {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, edgeLabel(e, opts))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func edgeLabel(e *factory.Edge, opts Options) string {
	label := e.Label
	if label == "" {
		label = fmt.Sprintf("%.3f/s", e.Rate)
	}
	if opts.Detailed {
		label = fmt.Sprintf("%s (base %.3f/s)", label, e.BaseRate)
	}
	return label
}
