package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/pipeline"
	"github.com/matzehuels/chainflow/pkg/snapshot"
)

// newTestServer builds a server over drill -> ore -> furnace -> plate with
// an in-memory snapshot store.
func newTestServer(t *testing.T) (*Server, http.Handler, *factory.Store) {
	t.Helper()
	s := factory.New()
	for _, n := range []factory.Node{
		{ID: "drill", Group: factory.GroupCollector, Label: "Mining Drill"},
		{ID: "ore", Group: factory.GroupItem, Label: "Iron Ore"},
		{ID: "furnace", Group: factory.GroupMachine, Label: "Stone Furnace"},
		{ID: "plate", Group: factory.GroupItem, Label: "Iron Plate"},
	} {
		if err := s.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range []factory.Edge{
		{From: "drill", To: "ore", BaseRate: 2},
		{From: "ore", To: "furnace", BaseRate: 2},
		{From: "furnace", To: "plate", BaseRate: 1},
	} {
		if _, err := s.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s->%s): %v", e.From, e.To, err)
		}
	}

	logger := log.NewWithOptions(io.Discard, log.Options{})
	srv := New(Config{
		Store:     s,
		Runner:    pipeline.NewRunner(nil, nil, logger),
		Snapshots: snapshot.NewMemoryStore(),
		Logger:    logger,
	})
	return srv, srv.Router(), s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGetGraph(t *testing.T) {
	_, h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/api/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var doc struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Nodes) != 4 || len(doc.Edges) != 3 {
		t.Errorf("counts = %d/%d, want 4/3", len(doc.Nodes), len(doc.Edges))
	}
}

func TestRecompute(t *testing.T) {
	_, h, s := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/recompute", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	for _, e := range s.Edges() {
		if e.Label == "" {
			t.Errorf("edge %s->%s unlabeled after recompute", e.From, e.To)
		}
	}
}

func TestPatchNode(t *testing.T) {
	_, h, s := newTestServer(t)

	hidden := true
	w := doJSON(t, h, http.MethodPatch, "/api/nodes/ore", patchNodeRequest{Hidden: &hidden})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	ore, _ := s.Node("ore")
	if !ore.Hidden {
		t.Error("ore not hidden after patch")
	}

	desired := 5.0
	w = doJSON(t, h, http.MethodPatch, "/api/nodes/plate", patchNodeRequest{DesiredOutput: &desired})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	plate, _ := s.Node("plate")
	if plate.DesiredOutput == nil || *plate.DesiredOutput != 5 {
		t.Errorf("desired output = %v, want 5", plate.DesiredOutput)
	}
	// The patch triggers a recompute; the visible chain rebalances.
	furnace, _ := s.Node("furnace")
	if furnace.Multiplier != 5 {
		t.Errorf("furnace multiplier = %v, want 5", furnace.Multiplier)
	}

	w = doJSON(t, h, http.MethodPatch, "/api/nodes/plate", patchNodeRequest{ClearDesiredOutput: true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if plate.DesiredOutput != nil {
		t.Error("desired output not cleared")
	}

	w = doJSON(t, h, http.MethodPatch, "/api/nodes/missing", patchNodeRequest{Hidden: &hidden})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteNode(t *testing.T) {
	_, h, s := newTestServer(t)

	w := doJSON(t, h, http.MethodDelete, "/api/nodes/plate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if _, ok := s.Node("plate"); ok {
		t.Error("plate still present")
	}

	w = doJSON(t, h, http.MethodDelete, "/api/nodes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestShowOnlyAncestorsAndReset(t *testing.T) {
	_, h, s := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/nodes/furnace/ancestors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	plate, _ := s.Node("plate")
	if !plate.Hidden {
		t.Error("plate should be hidden after narrowing to furnace ancestors")
	}
	drill, _ := s.Node("drill")
	if drill.Hidden {
		t.Error("drill is an ancestor and should stay visible")
	}

	w = doJSON(t, h, http.MethodPost, "/api/visibility/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !plate.Visible() {
		t.Error("plate still hidden after reset")
	}

	w = doJSON(t, h, http.MethodPost, "/api/nodes/missing/ancestors", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSearch(t *testing.T) {
	_, h, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/search?q=iron", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res struct {
		ID    string `json:"id"`
		Found bool   `json:"found"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Found || res.ID != "ore" {
		t.Errorf("result = %+v, want ore", res)
	}

	w = doJSON(t, h, http.MethodGet, "/api/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRenderDOT(t *testing.T) {
	_, h, _ := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/render.dot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "digraph factory") {
		t.Errorf("body is not DOT:\n%s", w.Body.String())
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	_, h, s := newTestServer(t)

	// Empty name is rejected.
	w := doJSON(t, h, http.MethodPost, "/api/snapshots", createSnapshotRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/snapshots", createSnapshotRequest{Name: "baseline"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Mutate the live graph, then restore the snapshot.
	if w := doJSON(t, h, http.MethodDelete, "/api/nodes/plate", nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, ok := s.Node("plate"); ok {
		t.Fatal("plate still present before restore")
	}

	w = doJSON(t, h, http.MethodGet, "/api/snapshots", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []snapshot.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "baseline" {
		t.Fatalf("list = %+v, want one baseline entry", list)
	}

	w = doJSON(t, h, http.MethodPost, "/api/snapshots/"+created.ID+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d: %s", w.Code, w.Body.String())
	}

	// The restored graph is served, including the deleted node.
	w = doJSON(t, h, http.MethodGet, "/api/graph", nil)
	var doc struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal graph: %v", err)
	}
	found := false
	for _, n := range doc.Nodes {
		if n.ID == "plate" {
			found = true
		}
	}
	if !found {
		t.Error("plate missing after restore")
	}

	w = doJSON(t, h, http.MethodDelete, "/api/snapshots/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete snapshot status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/snapshots/"+created.ID+"/restore", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("restore deleted snapshot status = %d, want 404", w.Code)
	}
}
