// Package cache provides pluggable byte-level caching with file, Redis and
// null backends, plus key derivation for the chainflow pipeline stages.
//
// The pipeline caches two kinds of content:
//   - built graphs, keyed by the blueprint's content hash
//   - rendered artifacts (SVG, PNG, DOT), keyed by the graph's content hash
//     and the render options
//
// Keys are derived through a [Keyer] so multi-tenant deployments can
// namespace them with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache is the interface for cache backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ArtifactKeyOpts are the render options that distinguish cached artifacts.
type ArtifactKeyOpts struct {
	Format     string `json:"format"`
	ShowHidden bool   `json:"show_hidden"`
	Detailed   bool   `json:"detailed"`
}

// Keyer derives cache keys for the pipeline stages.
type Keyer interface {
	// GraphKey generates a key for a built graph from its blueprint hash.
	GraphKey(blueprintHash string) string

	// ArtifactKey generates a key for a rendered artifact.
	ArtifactKey(graphHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key derivation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// GraphKey generates a key for a built graph.
func (k *DefaultKeyer) GraphKey(blueprintHash string) string {
	return "graph:" + blueprintHash
}

// ArtifactKey generates a key for a rendered artifact.
// Options are hashed into the key so distinct renders never collide.
func (k *DefaultKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", graphHash, opts)
}
