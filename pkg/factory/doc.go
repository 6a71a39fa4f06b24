// Package factory defines the production-chain graph model: items, machines
// and collectors connected by directed material-flow edges, held in a mutable
// in-memory [Store].
//
// The Store is the single shared resource between the rate engine
// (pkg/factory/rate), the interaction layer (pkg/factory/control) and any
// rendering consumer. It is mutated in place and read back after each
// recompute pass. There is exactly one writer at a time; the Store performs
// no locking and is not safe for concurrent use.
//
// Nodes and edges are created once at graph-construction time (see
// pkg/blueprint) and subsequently only mutated - visibility, desired output,
// computed rate and label - or removed. Edge identifiers are minted as UUIDs
// at construction; node identifiers are stable caller-chosen strings.
package factory
