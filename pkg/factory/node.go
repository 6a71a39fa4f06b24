package factory

import "fmt"

// Group classifies a node by its role in the production chain.
type Group string

const (
	// GroupItem is a material node. Demand from its consumers is balanced
	// against supply from its producers.
	GroupItem Group = "item"

	// GroupMachine is a transformer node that consumes input items and
	// produces output items at a single shared utilization.
	GroupMachine Group = "machine"

	// GroupCollector is a source node (miner, pump) that produces items
	// without consuming any. It follows the same balancing rule as machines.
	GroupCollector Group = "collector"
)

// Valid reports whether g is one of the known node groups.
func (g Group) Valid() bool {
	switch g {
	case GroupItem, GroupMachine, GroupCollector:
		return true
	}
	return false
}

// IsProducer reports whether nodes of this group run at a utilization
// multiplier (machines and collectors).
func (g Group) IsProducer() bool {
	return g == GroupMachine || g == GroupCollector
}

// Node is a vertex in the production-chain graph.
//
// The zero value is not usable - ID and Group must be set before adding to
// a Store.
type Node struct {
	ID    string // Unique identifier, stable across the session
	Group Group  // item, machine, or collector
	Label string // Display name

	// Hidden excludes the node (and all its incident edges) from recompute
	// passes and from rendering. Toggled by the interaction layer.
	Hidden bool

	// DesiredOutput is the user-set production target in items per second.
	// Only meaningful for item nodes with no visible consumers; nil means
	// unset. The rate engine reads it but never writes it.
	DesiredOutput *float64

	// Multiplier is the effective utilization computed by the last recompute
	// pass. Only meaningful for machine and collector nodes.
	Multiplier float64
}

// DisplayLabel returns the node's label with the utilization suffix for
// machine and collector nodes, e.g. "Stone Furnace [x0.50]".
// The multiplier is kept as a structured field so repeated passes never
// have to parse or strip a previous suffix.
func (n *Node) DisplayLabel() string {
	if !n.Group.IsProducer() {
		return n.Label
	}
	return fmt.Sprintf("%s [x%.2f]", n.Label, n.Multiplier)
}

// Visible reports whether the node participates in recompute passes.
func (n *Node) Visible() bool { return !n.Hidden }
