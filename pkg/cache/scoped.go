package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// Serve mode uses it to give each session its own cache namespace while
// sharing one backend.
//
// Example usage:
//
//	// Session-specific keys
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "session:abc123:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphKey generates a prefixed key for a built graph.
func (k *ScopedKeyer) GraphKey(blueprintHash string) string {
	return k.prefix + k.inner.GraphKey(blueprintHash)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, opts)
}
