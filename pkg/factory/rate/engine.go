// Package rate implements the cumulative-rate propagation engine.
//
// A recompute pass traverses the currently visible subgraph once, finalizing
// every visible node in dependency order (consumers before producers), and
// rewrites each visible edge's transfer rate and label. Demand flows
// downstream-to-upstream: a consumer fixes what it claims, and each producer
// is then balanced to meet exactly the claims accumulated on its outgoing
// edges.
//
// The traversal is an explicit two-phase work stack rather than recursion,
// so arbitrarily deep or cyclic graphs cannot overflow the call stack. On a
// cyclic subgraph a node already finalized is skipped when revisited; the
// pass still terminates in O(V+E) and finalizes every visible node exactly
// once, but the rates inside a cycle depend on pop order and are not a
// unique fixed point. The engine keeps pop order deterministic (sorted
// seeds, sorted consumer pushes) so repeated passes over an unchanged graph
// agree byte for byte.
package rate

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/observability"
)

// OverflowTolerance is the minimum surplus, in items per second, that
// counts as real overflow rather than floating-point noise.
const OverflowTolerance = 0.001

// fallbackOutput is the assumed demand for an item node with no visible
// consumers and no desired-output override.
const fallbackOutput = 1.0

// Engine recomputes balanced transfer rates over a Store's visible subgraph.
// A single Engine is driven by one control thread; passes run synchronously
// to completion and are never reentered.
type Engine struct {
	store  *factory.Store
	logger *log.Logger
}

// New creates an Engine over the given store.
// A nil logger falls back to log.Default().
func New(store *factory.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Recompute runs one full balancing pass over the current visible subgraph.
//
// Every visible node is finalized exactly once; every edge whose endpoints
// are both visible ends the pass with an up-to-date Rate, Overflow and
// Label. Edges touching a hidden node are left untouched. An empty visible
// set is a no-op.
//
// A missing node or edge lookup mid-pass means the store was mutated by
// someone else while the pass ran, which the single-writer contract rules
// out; Recompute fails fast with an INTERNAL_ERROR instead of skipping.
func (e *Engine) Recompute() error {
	visibleIDs := e.store.VisibleIDs()
	if len(visibleIDs) == 0 {
		e.logger.Debug("recompute: no visible nodes, skipping")
		return nil
	}

	ctx := context.Background()
	start := time.Now()
	observability.Engine().OnRecomputeStart(ctx, len(visibleIDs))
	err := e.recompute(visibleIDs)
	observability.Engine().OnRecomputeComplete(ctx, len(visibleIDs), time.Since(start), err)
	return err
}

func (e *Engine) recompute(visibleIDs []string) error {
	visible := make(map[string]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		visible[id] = true
	}

	discovered := make(map[string]bool, len(visibleIDs))
	finalized := make(map[string]bool, len(visibleIDs))

	// Seed in reverse-sorted order so sorted IDs pop first.
	stack := slices.Clone(visibleIDs)
	slices.Reverse(stack)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if finalized[id] {
			// Re-pops of already-finalized nodes are expected on cyclic or
			// diamond-shaped subgraphs.
			continue
		}

		if !discovered[id] {
			// First visit: reschedule this node behind its consumers so it
			// finalizes only after everything it feeds has been finalized.
			discovered[id] = true
			stack = append(stack, id)
			consumers := e.store.ConnectedNodes(id, factory.DirectionOut)
			for i := len(consumers) - 1; i >= 0; i-- {
				c := consumers[i]
				if visible[c] && !discovered[c] {
					stack = append(stack, c)
				}
			}
			continue
		}

		if err := e.finalize(id, visible); err != nil {
			return err
		}
		finalized[id] = true
	}

	e.logger.Debug("recompute complete", "nodes", len(visibleIDs))
	return nil
}

// finalize applies the variant-specific balancing rule to one node and
// refreshes the labels on its incident visible edges.
func (e *Engine) finalize(id string, visible map[string]bool) error {
	node, ok := e.store.Node(id)
	if !ok {
		return errors.New(errors.ErrCodeInternal, "node %q vanished during recompute pass", id)
	}

	incoming := e.visibleEdges(e.store.InEdges(id), visible)
	outgoing := e.visibleEdges(e.store.OutEdges(id), visible)

	if node.Group.IsProducer() {
		e.balanceProducer(node, incoming, outgoing)
	} else {
		e.balanceItem(node, incoming, outgoing)
	}

	// Labels are a pure projection of the final Rate and Overflow, applied
	// after rate mutation so they are never stale.
	for _, edge := range incoming {
		edge.Label = formatEdge(edge)
	}
	for _, edge := range outgoing {
		edge.Label = formatEdge(edge)
	}
	return nil
}

// balanceItem scales the item's supply to exactly match the demand its
// consumers already claimed, or its manual override when it has none.
// Outgoing edges were set by consumers that finalized earlier and are left
// as-is.
func (e *Engine) balanceItem(node *factory.Node, incoming, outgoing []*factory.Edge) {
	output := 0.0
	for _, edge := range outgoing {
		output += edge.Rate
	}
	if len(outgoing) == 0 || output == 0 {
		output = fallbackOutput
		if node.DesiredOutput != nil {
			output = *node.DesiredOutput
		}
	}

	input := 0.0
	for _, edge := range incoming {
		input += edge.Rate
	}

	if len(incoming) == 0 {
		return
	}

	multiplier := 0.0
	if input > 0 {
		multiplier = output / input
	} else {
		// All suppliers are at zero; scaling cannot recover demand. Clamp
		// instead of propagating NaN and keep the pass going.
		e.logger.Debug("item has zero cumulative input, clamping multiplier", "node", node.ID)
	}

	for _, edge := range incoming {
		edge.Rate *= multiplier
	}
}

// balanceProducer runs a machine or collector at the single utilization
// forced by its most-demanding output and throttles every input to match.
// Outputs that claim less than the forced capacity carry the surplus as
// overflow.
func (e *Engine) balanceProducer(node *factory.Node, incoming, outgoing []*factory.Edge) {
	biggest := 0.0
	for _, edge := range outgoing {
		if edge.BaseRate <= 0 {
			continue
		}
		if m := edge.Rate / edge.BaseRate; m > biggest {
			biggest = m
		}
	}
	node.Multiplier = biggest

	for _, edge := range incoming {
		edge.Rate = edge.BaseRate * biggest
	}

	for _, edge := range outgoing {
		capacity := edge.BaseRate * biggest
		if overflow := capacity - edge.Rate; overflow > OverflowTolerance {
			edge.Overflow = overflow
		} else {
			edge.Overflow = 0
		}
	}
}

// visibleEdges filters edges to those whose endpoints are both visible.
func (e *Engine) visibleEdges(edges []*factory.Edge, visible map[string]bool) []*factory.Edge {
	var out []*factory.Edge
	for _, edge := range edges {
		if visible[edge.From] && visible[edge.To] {
			out = append(out, edge)
		}
	}
	return out
}
