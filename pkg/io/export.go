// Package io provides JSON import and export for factory graphs, including
// the computed rates, overflow and labels of the last recompute pass. The
// format round-trips through [ReadJSON] and [WriteJSON].
package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/chainflow/pkg/factory"
)

type graph struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID            string        `json:"id"`
	Group         factory.Group `json:"group"`
	Label         string        `json:"label,omitempty"`
	Hidden        bool          `json:"hidden,omitempty"`
	DesiredOutput *float64      `json:"desired_output_per_s,omitempty"`
	Multiplier    float64       `json:"multiplier,omitempty"`
}

type edge struct {
	ID       string  `json:"id,omitempty"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	BaseRate float64 `json:"base_transfer_rate"`
	Rate     float64 `json:"transfer_rate"`
	Overflow float64 `json:"overflow,omitempty"`
	Label    string  `json:"label,omitempty"`
}

// WriteJSON encodes a factory graph as JSON and writes it to w.
// Nodes and edges are emitted in sorted order for deterministic output.
func WriteJSON(s *factory.Store, w io.Writer) error {
	out := graph{
		Nodes: make([]node, 0, s.NodeCount()),
		Edges: make([]edge, 0, s.EdgeCount()),
	}

	for _, n := range s.Nodes() {
		out.Nodes = append(out.Nodes, node{
			ID:            n.ID,
			Group:         n.Group,
			Label:         n.Label,
			Hidden:        n.Hidden,
			DesiredOutput: n.DesiredOutput,
			Multiplier:    n.Multiplier,
		})
	}
	for _, e := range s.Edges() {
		out.Edges = append(out.Edges, edge{
			ID:       e.ID,
			From:     e.From,
			To:       e.To,
			BaseRate: e.BaseRate,
			Rate:     e.Rate,
			Overflow: e.Overflow,
			Label:    e.Label,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// MarshalJSON converts a factory graph to JSON bytes.
// This is a convenience wrapper around [WriteJSON] for in-memory use.
func MarshalJSON(s *factory.Store) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(s, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON writes a factory graph to a JSON file at path.
func ExportJSON(s *factory.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(s, f)
}
