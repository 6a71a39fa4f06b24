// Package snapshot provides named, persisted copies of a factory graph for
// serve mode, so a session's visibility and desired-output tweaks can be
// saved and restored.
//
// Two backends are provided:
//   - memory: In-memory storage for development and tests
//   - mongo: MongoDB-backed storage for deployments
//
// The engine itself never touches snapshot storage; snapshots are taken and
// restored by the interaction layer around complete recompute passes.
package snapshot

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
	chainio "github.com/matzehuels/chainflow/pkg/io"
)

// Snapshot is a named copy of a factory graph at a point in time.
// The graph is stored as its JSON export so backends never depend on the
// in-memory representation.
type Snapshot struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Graph     []byte    `json:"graph" bson:"graph"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Store is the interface for snapshot storage backends.
type Store interface {
	// Save persists a snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Get retrieves a snapshot by ID.
	// Returns a SNAPSHOT_NOT_FOUND error if it does not exist.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns all snapshots, newest first, without graph payloads.
	List(ctx context.Context) ([]*Snapshot, error)

	// Delete removes a snapshot. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Take captures the current state of a factory graph as a new snapshot.
func Take(s *factory.Store, name string) (*Snapshot, error) {
	data, err := chainio.MarshalJSON(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot")
	}
	return &Snapshot{
		ID:        uuid.NewString(),
		Name:      name,
		Graph:     data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Restore decodes a snapshot's graph back into a factory Store.
func Restore(snap *Snapshot) (*factory.Store, error) {
	store, err := chainio.ReadJSON(bytes.NewReader(snap.Graph))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode snapshot %s", snap.ID)
	}
	return store, nil
}
