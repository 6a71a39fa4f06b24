package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory/control"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
	"github.com/matzehuels/chainflow/pkg/snapshot"
)

type createSnapshotRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if req.Name == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "snapshot name is required"))
		return
	}

	s.mu.Lock()
	snap, err := snapshot.Take(s.store, req.Name)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.snapshots.Save(r.Context(), snap); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": snap.ID, "name": snap.Name})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.snapshots.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.snapshots.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	store, err := snapshot.Restore(snap)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Swap in the restored graph and rebuild the collaborators around it,
	// then recompute so responses reflect the restored state immediately.
	s.mu.Lock()
	s.store = store
	s.engine = rate.New(store, s.logger)
	s.controller = control.New(store, s.engine)
	err = s.engine.Recompute()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "id": id})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.snapshots.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
