package factory

// Edge is a directed material-flow connection between two nodes.
// The edge references its endpoints by ID; it does not own them.
type Edge struct {
	ID   string // Unique identifier (UUID minted at construction)
	From string // Source node ID
	To   string // Target node ID

	// BaseRate is the nominal rate in items per second this edge carries at
	// 100% utilization of its machine endpoint. Fixed at construction time.
	BaseRate float64

	// Rate is the current computed transfer rate. Rewritten by every
	// recompute pass; always non-negative.
	Rate float64

	// Overflow is the unused capacity detected by the last pass: the rate
	// this edge could carry at the machine's forced utilization minus what
	// its consumer actually claimed. Zero when there is no surplus.
	Overflow float64

	// Label is the display string derived from Rate (and Overflow when
	// present). A pure projection of the final rate, never stale after a
	// pass.
	Label string
}
