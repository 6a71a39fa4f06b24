package factory

import (
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidNodeID is returned by [Store.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrInvalidGroup is returned by [Store.AddNode] when the node's group
	// is not item, machine, or collector.
	ErrInvalidGroup = errors.New("unknown node group")

	// ErrDuplicateNodeID is returned by [Store.AddNode] when a node with the
	// same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Store.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Store.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrUnknownNode is returned by mutation helpers when the node ID is not
	// present in the store.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNegativeRate is returned by [Store.AddEdge] for a negative base rate
	// and by [Store.SetDesiredOutput] for a negative target.
	ErrNegativeRate = errors.New("rate must not be negative")
)

// Direction selects which side of a node's incident edges to follow.
type Direction string

const (
	// DirectionIn follows incoming edges, toward the node's producers.
	DirectionIn Direction = "in"

	// DirectionOut follows outgoing edges, toward the node's consumers.
	DirectionOut Direction = "out"
)

// Store is the keyed, mutable collection of nodes and edges that every
// component reads and writes. It maintains adjacency indices so incident
// edges can be partitioned by direction in O(degree).
//
// The zero value is not usable - use New to create a Store.
// Store is not safe for concurrent use.
type Store struct {
	nodes    map[string]*Node
	edges    map[string]*Edge
	incoming map[string][]string // nodeID -> incoming edge IDs
	outgoing map[string][]string // nodeID -> outgoing edge IDs
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		incoming: make(map[string][]string),
		outgoing: make(map[string][]string),
	}
}

// AddNode adds a node to the store.
// Returns ErrInvalidNodeID for an empty ID, ErrInvalidGroup for an unknown
// group, or ErrDuplicateNodeID if the ID is already in use.
func (s *Store) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if !n.Group.Valid() {
		return ErrInvalidGroup
	}
	if _, exists := s.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Label == "" {
		n.Label = n.ID
	}
	s.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a directed edge between two existing nodes and returns its ID.
// If e.ID is empty a UUID is minted. The edge's Rate starts at BaseRate -
// full utilization until a recompute pass balances it.
//
// Returns ErrUnknownSourceNode or ErrUnknownTargetNode for missing
// endpoints, or ErrNegativeRate for a negative base rate.
func (s *Store) AddEdge(e Edge) (string, error) {
	if _, ok := s.nodes[e.From]; !ok {
		return "", ErrUnknownSourceNode
	}
	if _, ok := s.nodes[e.To]; !ok {
		return "", ErrUnknownTargetNode
	}
	if e.BaseRate < 0 {
		return "", ErrNegativeRate
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Rate == 0 {
		e.Rate = e.BaseRate
	}
	s.edges[e.ID] = &e
	s.outgoing[e.From] = append(s.outgoing[e.From], e.ID)
	s.incoming[e.To] = append(s.incoming[e.To], e.ID)
	return e.ID, nil
}

// Node returns the node with the given ID and true, or nil and false if not
// found. The returned pointer refers to the stored node, so mutations are
// visible to all readers.
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Edge returns the edge with the given ID and true, or nil and false if not
// found. The returned pointer refers to the stored edge.
func (s *Store) Edge(id string) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// Nodes returns all nodes sorted by ID for deterministic iteration.
func (s *Store) Nodes() []*Node {
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return strings.Compare(a.ID, b.ID) })
	return nodes
}

// Edges returns all edges sorted by (From, To, ID) for deterministic
// iteration.
func (s *Store) Edges() []*Edge {
	edges := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e)
	}
	sortEdges(edges)
	return edges
}

// NodeCount returns the number of nodes in the store.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges in the store.
func (s *Store) EdgeCount() int { return len(s.edges) }

// RemoveNode removes a node and all its incident edges.
// Removing an unknown ID is a no-op.
func (s *Store) RemoveNode(id string) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	for _, eid := range slices.Clone(s.incoming[id]) {
		s.RemoveEdge(eid)
	}
	for _, eid := range slices.Clone(s.outgoing[id]) {
		s.RemoveEdge(eid)
	}
	delete(s.nodes, id)
	delete(s.incoming, id)
	delete(s.outgoing, id)
}

// RemoveEdge removes the edge with the given ID if it exists.
func (s *Store) RemoveEdge(id string) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.edges, id)
	s.outgoing[e.From] = slices.DeleteFunc(s.outgoing[e.From], func(eid string) bool { return eid == id })
	s.incoming[e.To] = slices.DeleteFunc(s.incoming[e.To], func(eid string) bool { return eid == id })
}

// InEdges returns the node's incoming edges (from its producers), sorted by
// (From, To, ID).
func (s *Store) InEdges(id string) []*Edge { return s.edgeList(s.incoming[id]) }

// OutEdges returns the node's outgoing edges (to its consumers), sorted by
// (From, To, ID).
func (s *Store) OutEdges(id string) []*Edge { return s.edgeList(s.outgoing[id]) }

// ConnectedEdges returns all edges incident to the node, incoming first.
func (s *Store) ConnectedEdges(id string) []*Edge {
	return append(s.InEdges(id), s.OutEdges(id)...)
}

// ConnectedNodes returns the IDs of nodes adjacent to id in the given
// direction: producers for DirectionIn, consumers for DirectionOut.
// The result is sorted and contains no duplicates.
func (s *Store) ConnectedNodes(id string, dir Direction) []string {
	var edgeIDs []string
	switch dir {
	case DirectionIn:
		edgeIDs = s.incoming[id]
	case DirectionOut:
		edgeIDs = s.outgoing[id]
	}

	seen := make(map[string]bool, len(edgeIDs))
	var ids []string
	for _, eid := range edgeIDs {
		e := s.edges[eid]
		other := e.From
		if dir == DirectionOut {
			other = e.To
		}
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	slices.Sort(ids)
	return ids
}

// VisibleIDs returns the sorted IDs of all nodes whose Hidden flag is false.
// This is the working set for a recompute pass: a pure function of store
// state with no side effects.
func (s *Store) VisibleIDs() []string {
	var ids []string
	for id, n := range s.nodes {
		if n.Visible() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// SetHidden updates a node's visibility flag.
// Returns ErrUnknownNode if the ID is not present.
func (s *Store) SetHidden(id string, hidden bool) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Hidden = hidden
	return nil
}

// ResetVisibility clears the Hidden flag on every node.
func (s *Store) ResetVisibility() {
	for _, n := range s.nodes {
		n.Hidden = false
	}
}

// SetDesiredOutput sets a node's desired output rate in items per second.
// Returns ErrUnknownNode if the ID is not present or ErrNegativeRate for a
// negative rate.
func (s *Store) SetDesiredOutput(id string, rate float64) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if rate < 0 {
		return ErrNegativeRate
	}
	n.DesiredOutput = &rate
	return nil
}

// ClearDesiredOutput removes a node's desired output override.
// Clearing an unknown ID is a no-op.
func (s *Store) ClearDesiredOutput(id string) {
	if n, ok := s.nodes[id]; ok {
		n.DesiredOutput = nil
	}
}

func (s *Store) edgeList(ids []string) []*Edge {
	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, s.edges[id])
	}
	sortEdges(edges)
	return edges
}

func sortEdges(edges []*Edge) {
	slices.SortFunc(edges, func(a, b *Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		if c := strings.Compare(a.To, b.To); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
