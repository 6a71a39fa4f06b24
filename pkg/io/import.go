package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/chainflow/pkg/factory"
)

// ReadJSON decodes a JSON graph from r into a factory Store.
//
// The input must be a JSON object with "nodes" and "edges" arrays:
//
//	{
//	  "nodes": [{"id": "iron-ore", "group": "item"}],
//	  "edges": [{"from": "iron-ore", "to": "furnace", "base_transfer_rate": 2}]
//	}
//
// Each node must have "id" and "group" fields; group is one of "item",
// "machine" or "collector". Optional node fields: label, hidden,
// desired_output_per_s, multiplier. Each edge must reference existing node
// IDs; edges without an "id" get a fresh UUID.
//
// ReadJSON returns an error for malformed JSON, duplicate node IDs, edges
// referencing unknown nodes, or negative base rates. Errors are wrapped
// with the offending node or edge for context.
//
// The returned Store is independent of r and safe to mutate after ReadJSON
// returns. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*factory.Store, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	s := factory.New()
	for _, n := range data.Nodes {
		err := s.AddNode(factory.Node{
			ID:            n.ID,
			Group:         n.Group,
			Label:         n.Label,
			Hidden:        n.Hidden,
			DesiredOutput: n.DesiredOutput,
			Multiplier:    n.Multiplier,
		})
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range data.Edges {
		_, err := s.AddEdge(factory.Edge{
			ID:       e.ID,
			From:     e.From,
			To:       e.To,
			BaseRate: e.BaseRate,
			Rate:     e.Rate,
			Overflow: e.Overflow,
			Label:    e.Label,
		})
		if err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
	}

	return s, nil
}

// ImportJSON reads a JSON file at path and returns the decoded Store.
// It returns the same validation errors as [ReadJSON], wrapped with the
// file path for context.
func ImportJSON(path string) (*factory.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
