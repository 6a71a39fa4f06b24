package control

import (
	"errors"
	"testing"

	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
)

// buildFixture builds two chains feeding a shared assembler:
//
//	drill -> ore -> furnace -> plate -> assembler -> gear
//	pump -> water -> assembler
func buildFixture(t *testing.T) (*factory.Store, *Controller) {
	t.Helper()
	s := factory.New()

	nodes := []struct {
		id    string
		group factory.Group
		label string
	}{
		{"drill", factory.GroupCollector, "Mining Drill"},
		{"ore", factory.GroupItem, "Iron Ore"},
		{"furnace", factory.GroupMachine, "Stone Furnace"},
		{"plate", factory.GroupItem, "Iron Plate"},
		{"assembler", factory.GroupMachine, "Assembler"},
		{"gear", factory.GroupItem, "Iron Gear"},
		{"pump", factory.GroupCollector, "Water Pump"},
		{"water", factory.GroupItem, "Water"},
	}
	for _, n := range nodes {
		if err := s.AddNode(factory.Node{ID: n.id, Group: n.group, Label: n.label}); err != nil {
			t.Fatalf("AddNode(%s): %v", n.id, err)
		}
	}

	edges := []struct {
		from, to string
		base     float64
	}{
		{"drill", "ore", 2},
		{"ore", "furnace", 2},
		{"furnace", "plate", 1},
		{"plate", "assembler", 2},
		{"pump", "water", 10},
		{"water", "assembler", 5},
		{"assembler", "gear", 1},
	}
	for _, e := range edges {
		if _, err := s.AddEdge(factory.Edge{From: e.from, To: e.to, BaseRate: e.base}); err != nil {
			t.Fatalf("AddEdge(%s->%s): %v", e.from, e.to, err)
		}
	}

	engine := rate.New(s, nil)
	if err := engine.Recompute(); err != nil {
		t.Fatalf("initial Recompute: %v", err)
	}
	return s, New(s, engine)
}

func TestRemoveNode(t *testing.T) {
	s, c := buildFixture(t)

	if err := c.RemoveNode("water"); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if _, ok := s.Node("water"); ok {
		t.Error("water still present after removal")
	}
	if got := len(s.InEdges("assembler")); got != 1 {
		t.Errorf("assembler incoming = %d, want 1", got)
	}
}

func TestSetHiddenRecomputes(t *testing.T) {
	s, c := buildFixture(t)

	if err := c.SetHidden("gear", true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}
	n, _ := s.Node("gear")
	if !n.Hidden {
		t.Error("gear not hidden")
	}

	if err := c.SetHidden("missing", true); !errors.Is(err, factory.ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

func TestShowOnlyAncestors(t *testing.T) {
	s, c := buildFixture(t)

	if err := c.ShowOnlyAncestors("plate"); err != nil {
		t.Fatalf("ShowOnlyAncestors: %v", err)
	}

	wantVisible := map[string]bool{"drill": true, "ore": true, "furnace": true, "plate": true}
	for _, n := range s.Nodes() {
		if wantVisible[n.ID] == n.Hidden {
			t.Errorf("node %s hidden = %v, want %v", n.ID, n.Hidden, !wantVisible[n.ID])
		}
	}

	if err := c.ShowOnlyAncestors("missing"); !errors.Is(err, factory.ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

func TestResetVisibility(t *testing.T) {
	s, c := buildFixture(t)

	if err := c.ShowOnlyAncestors("plate"); err != nil {
		t.Fatalf("ShowOnlyAncestors: %v", err)
	}
	if err := c.ResetVisibility(); err != nil {
		t.Fatalf("ResetVisibility: %v", err)
	}
	if got := len(s.VisibleIDs()); got != s.NodeCount() {
		t.Errorf("visible = %d, want %d", got, s.NodeCount())
	}
}

func TestSetDesiredOutputRebalances(t *testing.T) {
	s, c := buildFixture(t)

	if err := c.SetDesiredOutput([]string{"gear"}, 3); err != nil {
		t.Fatalf("SetDesiredOutput: %v", err)
	}

	assembler, _ := s.Node("assembler")
	if assembler.Multiplier != 3 {
		t.Errorf("assembler multiplier = %v, want 3", assembler.Multiplier)
	}

	if err := c.ClearDesiredOutput([]string{"gear"}); err != nil {
		t.Fatalf("ClearDesiredOutput: %v", err)
	}
	gear, _ := s.Node("gear")
	if gear.DesiredOutput != nil {
		t.Error("desired output not cleared")
	}
}

func TestSearch(t *testing.T) {
	_, c := buildFixture(t)

	tests := []struct {
		name    string
		query   string
		after   string
		wantID  string
		wantHit bool
	}{
		{"CaseInsensitive", "IRON", "", "gear", true},
		{"FirstMatch", "iron", "", "gear", true},
		{"NextMatch", "iron", "gear", "ore", true},
		{"WrapsAround", "iron", "plate", "gear", true},
		{"NoMatch", "uranium", "", "", false},
		{"EmptyQuery", "", "", "", false},
	}

	// "Iron" appears in the labels of gear, ore, and plate; sorted ID order
	// is [assembler, drill, furnace, gear, ore, plate, pump, water].
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := c.Search(tt.query, tt.after)
			if ok != tt.wantHit {
				t.Fatalf("ok = %v, want %v", ok, tt.wantHit)
			}
			if ok && id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestSearchSkipsHiddenNodes(t *testing.T) {
	_, c := buildFixture(t)

	if err := c.SetHidden("gear", true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}

	id, ok := c.Search("iron", "")
	if !ok || id != "ore" {
		t.Errorf("Search = (%q, %v), want (ore, true)", id, ok)
	}
}
