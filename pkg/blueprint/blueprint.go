// Package blueprint parses TOML factory definitions and builds the
// production-chain graph they describe.
//
// A blueprint lists items, machines (and collectors) with a crafting speed,
// and recipes with a crafting time and ingredient/result counts. Building a
// graph turns every machine into a machine node wired between its
// ingredient and result items, with each edge's base transfer rate derived
// as count / time_s * crafting_speed - the rate at 100% utilization.
//
// Example:
//
//	name = "iron smelting"
//
//	[[items]]
//	id = "iron-plate"
//	desired_output_per_s = 2.0
//
//	[[machines]]
//	id = "furnace"
//	label = "Stone Furnace"
//	crafting_speed = 1.0
//
//	[[recipes]]
//	machine = "furnace"
//	time_s = 3.2
//	inputs = [{ item = "iron-ore", count = 1 }]
//	outputs = [{ item = "iron-plate", count = 1 }]
package blueprint

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
)

// Blueprint is the top-level TOML document describing a factory.
type Blueprint struct {
	Name     string    `toml:"name"`
	Items    []Item    `toml:"items"`
	Machines []Machine `toml:"machines"`
	Recipes  []Recipe  `toml:"recipes"`
}

// Item declares a material node.
type Item struct {
	ID     string `toml:"id"`
	Label  string `toml:"label"`
	Hidden bool   `toml:"hidden"`

	// DesiredOutput is the user target in items per second for items with
	// no consumers. Nil means unset.
	DesiredOutput *float64 `toml:"desired_output_per_s"`
}

// Machine declares a machine or collector node.
type Machine struct {
	ID    string `toml:"id"`
	Label string `toml:"label"`

	// Collector marks source machines (miners, pumps) that produce without
	// consuming. They render and balance as collectors.
	Collector bool `toml:"collector"`

	// CraftingSpeed scales every recipe this machine executes. Defaults
	// to 1.
	CraftingSpeed float64 `toml:"crafting_speed"`
}

// Recipe wires a machine between its ingredient and result items.
type Recipe struct {
	Machine string   `toml:"machine"`
	TimeS   float64  `toml:"time_s"`
	Inputs  []Stack  `toml:"inputs"`
	Outputs []Stack  `toml:"outputs"`
}

// Stack is an item count within a recipe.
type Stack struct {
	Item  string  `toml:"item"`
	Count float64 `toml:"count"`
}

// Parse decodes a TOML blueprint from a byte slice.
func Parse(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := toml.Unmarshal(data, &bp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidBlueprint, err, "parse blueprint")
	}
	return &bp, nil
}

// ParseFile reads and decodes a TOML blueprint file.
func ParseFile(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "blueprint %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read blueprint %s", path)
	}
	return Parse(data)
}

// Validate checks the blueprint for structural problems: missing IDs,
// duplicate IDs, recipes referencing unknown machines or items, and
// nonpositive counts, times, or speeds.
func (bp *Blueprint) Validate() error {
	items := make(map[string]bool, len(bp.Items))
	for _, it := range bp.Items {
		if err := errors.ValidateNodeID(it.ID); err != nil {
			return err
		}
		if items[it.ID] {
			return errors.New(errors.ErrCodeInvalidBlueprint, "duplicate item %q", it.ID)
		}
		if it.DesiredOutput != nil && *it.DesiredOutput < 0 {
			return errors.New(errors.ErrCodeInvalidBlueprint, "item %q: desired_output_per_s must not be negative", it.ID)
		}
		items[it.ID] = true
	}

	machines := make(map[string]bool, len(bp.Machines))
	for _, m := range bp.Machines {
		if err := errors.ValidateNodeID(m.ID); err != nil {
			return err
		}
		if items[m.ID] || machines[m.ID] {
			return errors.New(errors.ErrCodeInvalidBlueprint, "duplicate machine %q", m.ID)
		}
		if m.CraftingSpeed < 0 {
			return errors.New(errors.ErrCodeInvalidBlueprint, "machine %q: crafting_speed must not be negative", m.ID)
		}
		machines[m.ID] = true
	}

	for i, r := range bp.Recipes {
		if !machines[r.Machine] {
			return errors.New(errors.ErrCodeInvalidBlueprint, "recipe %d references unknown machine %q", i, r.Machine)
		}
		if r.TimeS <= 0 {
			return errors.New(errors.ErrCodeInvalidBlueprint, "recipe %d: time_s must be positive", i)
		}
		if len(r.Outputs) == 0 {
			return errors.New(errors.ErrCodeInvalidBlueprint, "recipe %d has no outputs", i)
		}
		for _, st := range append(append([]Stack{}, r.Inputs...), r.Outputs...) {
			if !items[st.Item] {
				return errors.New(errors.ErrCodeInvalidBlueprint, "recipe %d references unknown item %q", i, st.Item)
			}
			if st.Count <= 0 {
				return errors.New(errors.ErrCodeInvalidBlueprint, "recipe %d: count for %q must be positive", i, st.Item)
			}
		}
	}

	return nil
}

// Build validates the blueprint and constructs the factory graph.
//
// Every item becomes an item node, every machine a machine or collector
// node, and every recipe stack a directed edge: ingredient item -> machine
// for inputs, machine -> result item for outputs. Edge base rates are
// count / time_s * crafting_speed.
func (bp *Blueprint) Build() (*factory.Store, error) {
	if err := bp.Validate(); err != nil {
		return nil, err
	}

	s := factory.New()

	for _, it := range bp.Items {
		node := factory.Node{
			ID:            it.ID,
			Group:         factory.GroupItem,
			Label:         it.Label,
			Hidden:        it.Hidden,
			DesiredOutput: it.DesiredOutput,
		}
		if err := s.AddNode(node); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidBlueprint, err, "item %s", it.ID)
		}
	}

	for _, m := range bp.Machines {
		group := factory.GroupMachine
		if m.Collector {
			group = factory.GroupCollector
		}
		node := factory.Node{ID: m.ID, Group: group, Label: m.Label}
		if err := s.AddNode(node); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidBlueprint, err, "machine %s", m.ID)
		}
	}

	speeds := make(map[string]float64, len(bp.Machines))
	for _, m := range bp.Machines {
		speed := m.CraftingSpeed
		if speed == 0 {
			speed = 1
		}
		speeds[m.ID] = speed
	}

	for i, r := range bp.Recipes {
		speed := speeds[r.Machine]
		for _, st := range r.Inputs {
			edge := factory.Edge{
				From:     st.Item,
				To:       r.Machine,
				BaseRate: st.Count / r.TimeS * speed,
			}
			if _, err := s.AddEdge(edge); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidBlueprint, err, "recipe %d input %s", i, st.Item)
			}
		}
		for _, st := range r.Outputs {
			edge := factory.Edge{
				From:     r.Machine,
				To:       st.Item,
				BaseRate: st.Count / r.TimeS * speed,
			}
			if _, err := s.AddEdge(edge); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidBlueprint, err, "recipe %d output %s", i, st.Item)
			}
		}
	}

	return s, nil
}
