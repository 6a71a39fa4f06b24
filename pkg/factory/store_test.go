package factory

import (
	"errors"
	"testing"
)

func addNode(t *testing.T, s *Store, id string, group Group) {
	t.Helper()
	if err := s.AddNode(Node{ID: id, Group: group}); err != nil {
		t.Fatalf("AddNode(%s): %v", id, err)
	}
}

func addEdge(t *testing.T, s *Store, from, to string, baseRate float64) string {
	t.Helper()
	id, err := s.AddEdge(Edge{From: from, To: to, BaseRate: baseRate})
	if err != nil {
		t.Fatalf("AddEdge(%s->%s): %v", from, to, err)
	}
	return id
}

func TestAddNode(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		setup   func(s *Store)
		wantErr error
	}{
		{
			name: "Valid",
			node: Node{ID: "iron", Group: GroupItem},
		},
		{
			name:    "EmptyID",
			node:    Node{Group: GroupItem},
			wantErr: ErrInvalidNodeID,
		},
		{
			name:    "UnknownGroup",
			node:    Node{ID: "x", Group: Group("factory")},
			wantErr: ErrInvalidGroup,
		},
		{
			name: "DuplicateID",
			node: Node{ID: "iron", Group: GroupItem},
			setup: func(s *Store) {
				s.AddNode(Node{ID: "iron", Group: GroupItem})
			},
			wantErr: ErrDuplicateNodeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if tt.setup != nil {
				tt.setup(s)
			}
			err := s.AddNode(tt.node)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddNode: err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddNodeDefaultsLabel(t *testing.T) {
	s := New()
	addNode(t, s, "iron_plate", GroupItem)

	n, ok := s.Node("iron_plate")
	if !ok {
		t.Fatal("node not found")
	}
	if n.Label != "iron_plate" {
		t.Errorf("label = %q, want %q", n.Label, "iron_plate")
	}
}

func TestAddEdge(t *testing.T) {
	tests := []struct {
		name    string
		edge    Edge
		wantErr error
	}{
		{
			name: "Valid",
			edge: Edge{From: "a", To: "b", BaseRate: 2.5},
		},
		{
			name:    "UnknownSource",
			edge:    Edge{From: "missing", To: "b", BaseRate: 1},
			wantErr: ErrUnknownSourceNode,
		},
		{
			name:    "UnknownTarget",
			edge:    Edge{From: "a", To: "missing", BaseRate: 1},
			wantErr: ErrUnknownTargetNode,
		},
		{
			name:    "NegativeBaseRate",
			edge:    Edge{From: "a", To: "b", BaseRate: -1},
			wantErr: ErrNegativeRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			addNode(t, s, "a", GroupItem)
			addNode(t, s, "b", GroupMachine)

			id, err := s.AddEdge(tt.edge)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddEdge: err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if id == "" {
				t.Error("AddEdge returned empty ID")
			}
			e, ok := s.Edge(id)
			if !ok {
				t.Fatal("edge not found after AddEdge")
			}
			if e.Rate != e.BaseRate {
				t.Errorf("initial rate = %v, want base rate %v", e.Rate, e.BaseRate)
			}
		})
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	s := New()
	addNode(t, s, "ore", GroupItem)
	addNode(t, s, "furnace", GroupMachine)
	addNode(t, s, "plate", GroupItem)
	addEdge(t, s, "ore", "furnace", 2)
	addEdge(t, s, "furnace", "plate", 1)

	s.RemoveNode("furnace")

	if s.NodeCount() != 2 {
		t.Errorf("nodes = %d, want 2", s.NodeCount())
	}
	if s.EdgeCount() != 0 {
		t.Errorf("edges = %d, want 0", s.EdgeCount())
	}
	if got := len(s.OutEdges("ore")); got != 0 {
		t.Errorf("ore outgoing = %d, want 0", got)
	}
	if got := len(s.InEdges("plate")); got != 0 {
		t.Errorf("plate incoming = %d, want 0", got)
	}
}

func TestRemoveNodeUnknownIsNoop(t *testing.T) {
	s := New()
	addNode(t, s, "a", GroupItem)
	s.RemoveNode("missing")
	if s.NodeCount() != 1 {
		t.Errorf("nodes = %d, want 1", s.NodeCount())
	}
}

func TestConnectedNodes(t *testing.T) {
	s := New()
	addNode(t, s, "ore", GroupItem)
	addNode(t, s, "coal", GroupItem)
	addNode(t, s, "furnace", GroupMachine)
	addNode(t, s, "plate", GroupItem)
	addEdge(t, s, "ore", "furnace", 2)
	addEdge(t, s, "coal", "furnace", 1)
	addEdge(t, s, "furnace", "plate", 1)

	in := s.ConnectedNodes("furnace", DirectionIn)
	if len(in) != 2 || in[0] != "coal" || in[1] != "ore" {
		t.Errorf("producers = %v, want [coal ore]", in)
	}

	out := s.ConnectedNodes("furnace", DirectionOut)
	if len(out) != 1 || out[0] != "plate" {
		t.Errorf("consumers = %v, want [plate]", out)
	}
}

func TestConnectedNodesDeduplicatesParallelEdges(t *testing.T) {
	s := New()
	addNode(t, s, "a", GroupCollector)
	addNode(t, s, "b", GroupItem)
	addEdge(t, s, "a", "b", 1)
	addEdge(t, s, "a", "b", 2)

	out := s.ConnectedNodes("a", DirectionOut)
	if len(out) != 1 {
		t.Errorf("consumers = %v, want a single entry", out)
	}
}

func TestVisibleIDs(t *testing.T) {
	s := New()
	addNode(t, s, "b", GroupItem)
	addNode(t, s, "a", GroupItem)
	addNode(t, s, "c", GroupItem)

	if err := s.SetHidden("b", true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}

	ids := s.VisibleIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("visible = %v, want [a c]", ids)
	}

	s.ResetVisibility()
	if got := len(s.VisibleIDs()); got != 3 {
		t.Errorf("visible after reset = %d, want 3", got)
	}
}

func TestSetHiddenUnknownNode(t *testing.T) {
	s := New()
	if err := s.SetHidden("missing", true); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

func TestSetDesiredOutput(t *testing.T) {
	s := New()
	addNode(t, s, "plate", GroupItem)

	if err := s.SetDesiredOutput("plate", 5); err != nil {
		t.Fatalf("SetDesiredOutput: %v", err)
	}
	n, _ := s.Node("plate")
	if n.DesiredOutput == nil || *n.DesiredOutput != 5 {
		t.Errorf("desired output = %v, want 5", n.DesiredOutput)
	}

	if err := s.SetDesiredOutput("plate", -1); !errors.Is(err, ErrNegativeRate) {
		t.Errorf("negative rate err = %v, want ErrNegativeRate", err)
	}
	if err := s.SetDesiredOutput("missing", 1); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown node err = %v, want ErrUnknownNode", err)
	}

	s.ClearDesiredOutput("plate")
	if n.DesiredOutput != nil {
		t.Errorf("desired output after clear = %v, want nil", *n.DesiredOutput)
	}
}

func TestDisplayLabel(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{
			name: "Item",
			node: Node{ID: "iron", Group: GroupItem, Label: "Iron Plate"},
			want: "Iron Plate",
		},
		{
			name: "Machine",
			node: Node{ID: "furnace", Group: GroupMachine, Label: "Stone Furnace", Multiplier: 0.5},
			want: "Stone Furnace [x0.50]",
		},
		{
			name: "Collector",
			node: Node{ID: "drill", Group: GroupCollector, Label: "Mining Drill", Multiplier: 1.25},
			want: "Mining Drill [x1.25]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.DisplayLabel(); got != tt.want {
				t.Errorf("DisplayLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEdgeOrderingDeterministic(t *testing.T) {
	s := New()
	addNode(t, s, "a", GroupItem)
	addNode(t, s, "b", GroupMachine)
	addNode(t, s, "c", GroupMachine)
	addEdge(t, s, "a", "c", 1)
	addEdge(t, s, "a", "b", 1)

	edges := s.Edges()
	if len(edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(edges))
	}
	if edges[0].To != "b" || edges[1].To != "c" {
		t.Errorf("edge order = [%s %s], want [b c]", edges[0].To, edges[1].To)
	}
}
