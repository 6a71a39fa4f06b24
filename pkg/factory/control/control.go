// Package control implements the interaction layer over a factory store:
// the UI-facing mutations (hide, remove, desired output, visibility reset)
// that each end by invoking the rate engine's recompute entry point, plus
// label search with cyclic next-match.
package control

import (
	"strings"

	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
)

// Controller mutates a Store on behalf of a user interface and keeps the
// computed rates current. Every mutating action runs one full recompute
// pass before returning, so callers always read a balanced labeling.
type Controller struct {
	store  *factory.Store
	engine *rate.Engine
}

// New creates a Controller over the given store and engine.
func New(store *factory.Store, engine *rate.Engine) *Controller {
	return &Controller{store: store, engine: engine}
}

// RemoveNode deletes a node and its incident edges, then recomputes.
func (c *Controller) RemoveNode(id string) error {
	c.store.RemoveNode(id)
	return c.engine.Recompute()
}

// SetHidden toggles a node's visibility flag, then recomputes.
func (c *Controller) SetHidden(id string, hidden bool) error {
	if err := c.store.SetHidden(id, hidden); err != nil {
		return err
	}
	return c.engine.Recompute()
}

// ShowOnlyAncestors hides every currently visible node that is not reachable
// from id by following incoming-edge chains (its supply tree). The node
// itself stays visible. Recomputes after narrowing.
func (c *Controller) ShowOnlyAncestors(id string) error {
	if _, ok := c.store.Node(id); !ok {
		return factory.ErrUnknownNode
	}

	keep := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, producer := range c.store.ConnectedNodes(cur, factory.DirectionIn) {
			if !keep[producer] {
				keep[producer] = true
				queue = append(queue, producer)
			}
		}
	}

	for _, vid := range c.store.VisibleIDs() {
		if !keep[vid] {
			if err := c.store.SetHidden(vid, true); err != nil {
				return err
			}
		}
	}
	return c.engine.Recompute()
}

// ResetVisibility restores every node to visible, then recomputes.
func (c *Controller) ResetVisibility() error {
	c.store.ResetVisibility()
	return c.engine.Recompute()
}

// SetDesiredOutput sets the desired output rate on each of the given nodes,
// then recomputes once.
func (c *Controller) SetDesiredOutput(ids []string, perSecond float64) error {
	for _, id := range ids {
		if err := c.store.SetDesiredOutput(id, perSecond); err != nil {
			return err
		}
	}
	return c.engine.Recompute()
}

// ClearDesiredOutput removes the desired output override from each of the
// given nodes, then recomputes once.
func (c *Controller) ClearDesiredOutput(ids []string) error {
	for _, id := range ids {
		c.store.ClearDesiredOutput(id)
	}
	return c.engine.Recompute()
}

// Search finds the next visible node whose label contains query
// (case-insensitive), scanning in sorted ID order and wrapping around. The
// search starts strictly after the node with ID after; pass "" to start
// from the beginning. Returns the matched ID and true, or "" and false when
// nothing matches.
//
// Search is read-only and does not trigger a recompute.
func (c *Controller) Search(query, after string) (string, bool) {
	if query == "" {
		return "", false
	}
	q := strings.ToLower(query)
	ids := c.store.VisibleIDs()
	if len(ids) == 0 {
		return "", false
	}

	start := 0
	if after != "" {
		for i, id := range ids {
			if id == after {
				start = i + 1
				break
			}
		}
	}

	for i := 0; i < len(ids); i++ {
		id := ids[(start+i)%len(ids)]
		node, ok := c.store.Node(id)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(node.Label), q) {
			return id, true
		}
	}
	return "", false
}
