package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
)

func buildStore(t *testing.T) *factory.Store {
	t.Helper()
	s := factory.New()
	if err := s.AddNode(factory.Node{ID: "ore", Group: factory.GroupItem}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := s.AddNode(factory.Node{ID: "furnace", Group: factory.GroupMachine, Multiplier: 2}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := s.AddEdge(factory.Edge{From: "ore", To: "furnace", BaseRate: 1, Rate: 2}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	return s
}

func TestTakeAndRestore(t *testing.T) {
	store := buildStore(t)
	if err := store.SetHidden("ore", true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}

	snap, err := Take(store, "before-cleanup")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if snap.ID == "" {
		t.Error("snapshot ID empty")
	}
	if snap.Name != "before-cleanup" {
		t.Errorf("name = %q", snap.Name)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.NodeCount() != 2 || restored.EdgeCount() != 1 {
		t.Errorf("counts = %d/%d, want 2/1", restored.NodeCount(), restored.EdgeCount())
	}
	ore, _ := restored.Node("ore")
	if !ore.Hidden {
		t.Error("hidden flag lost through snapshot")
	}
	furnace, _ := restored.Node("furnace")
	if furnace.Multiplier != 2 {
		t.Errorf("multiplier = %v, want 2", furnace.Multiplier)
	}
}

func TestRestoreCorruptSnapshot(t *testing.T) {
	_, err := Restore(&Snapshot{ID: "bad", Graph: []byte("{not json")})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeInvalidGraph {
		t.Errorf("code = %v, want %v", code, errors.ErrCodeInvalidGraph)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()

	store := buildStore(t)
	first, err := Take(store, "first")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	first.CreatedAt = time.Now().Add(-time.Hour)
	second, err := Take(store, "second")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	if err := ms.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := ms.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := ms.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Graph) == 0 {
		t.Error("Get returned no graph payload")
	}

	list, err := ms.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("list[0] = %s, want newest first (%s)", list[0].ID, second.ID)
	}
	for _, snap := range list {
		if len(snap.Graph) != 0 {
			t.Error("List leaked graph payloads")
		}
	}

	if err := ms.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ms.Get(ctx, first.ID); errors.GetCode(err) != errors.ErrCodeSnapshotNotFound {
		t.Errorf("Get after delete: err = %v, want SNAPSHOT_NOT_FOUND", err)
	}

	// Deleting a missing ID is not an error.
	if err := ms.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}
