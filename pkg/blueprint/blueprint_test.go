package blueprint

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
)

const smeltingTOML = `
name = "iron smelting"

[[items]]
id = "iron-ore"

[[items]]
id = "iron-plate"
label = "Iron Plate"
desired_output_per_s = 2.0

[[machines]]
id = "drill"
label = "Mining Drill"
collector = true
crafting_speed = 0.5

[[machines]]
id = "furnace"
label = "Stone Furnace"

[[recipes]]
machine = "drill"
time_s = 1.0
outputs = [{ item = "iron-ore", count = 1 }]

[[recipes]]
machine = "furnace"
time_s = 3.2
inputs = [{ item = "iron-ore", count = 1 }]
outputs = [{ item = "iron-plate", count = 1 }]
`

func TestParse(t *testing.T) {
	bp, err := Parse([]byte(smeltingTOML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if bp.Name != "iron smelting" {
		t.Errorf("name = %q, want %q", bp.Name, "iron smelting")
	}
	if len(bp.Items) != 2 || len(bp.Machines) != 2 || len(bp.Recipes) != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/2/2", len(bp.Items), len(bp.Machines), len(bp.Recipes))
	}
	if bp.Items[1].DesiredOutput == nil || *bp.Items[1].DesiredOutput != 2.0 {
		t.Errorf("iron-plate desired output = %v, want 2.0", bp.Items[1].DesiredOutput)
	}
	if !bp.Machines[0].Collector {
		t.Error("drill not marked as collector")
	}
}

func TestParseInvalidTOML(t *testing.T) {
	_, err := Parse([]byte("items = [[[["))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeInvalidBlueprint {
		t.Errorf("code = %v, want %v", code, errors.ErrCodeInvalidBlueprint)
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeFileNotFound {
		t.Errorf("code = %v, want %v", code, errors.ErrCodeFileNotFound)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smelting.toml")
	if err := os.WriteFile(path, []byte(smeltingTOML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	bp, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if bp.Name != "iron smelting" {
		t.Errorf("name = %q", bp.Name)
	}
}

func TestBuild(t *testing.T) {
	bp, err := Parse([]byte(smeltingTOML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store, err := bp.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if store.NodeCount() != 4 {
		t.Errorf("nodes = %d, want 4", store.NodeCount())
	}
	if store.EdgeCount() != 3 {
		t.Errorf("edges = %d, want 3", store.EdgeCount())
	}

	drill, ok := store.Node("drill")
	if !ok {
		t.Fatal("drill missing")
	}
	if drill.Group != factory.GroupCollector {
		t.Errorf("drill group = %v, want collector", drill.Group)
	}

	plate, _ := store.Node("iron-plate")
	if plate.DesiredOutput == nil || *plate.DesiredOutput != 2.0 {
		t.Errorf("plate desired output = %v, want 2.0", plate.DesiredOutput)
	}

	// Base rate is count / time_s * crafting_speed.
	for _, tt := range []struct {
		from, to string
		want     float64
	}{
		{"drill", "iron-ore", 0.5},          // 1 / 1.0 * 0.5
		{"iron-ore", "furnace", 1.0 / 3.2},  // speed defaults to 1
		{"furnace", "iron-plate", 1.0 / 3.2},
	} {
		found := false
		for _, e := range store.Edges() {
			if e.From == tt.from && e.To == tt.to {
				found = true
				if math.Abs(e.BaseRate-tt.want) > 1e-9 {
					t.Errorf("%s->%s base rate = %v, want %v", tt.from, tt.to, e.BaseRate, tt.want)
				}
			}
		}
		if !found {
			t.Errorf("edge %s->%s missing", tt.from, tt.to)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Blueprint {
		bp, err := Parse([]byte(smeltingTOML))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		return bp
	}

	tests := []struct {
		name   string
		mutate func(bp *Blueprint)
	}{
		{
			name:   "DuplicateItem",
			mutate: func(bp *Blueprint) { bp.Items = append(bp.Items, Item{ID: "iron-ore"}) },
		},
		{
			name:   "DuplicateMachine",
			mutate: func(bp *Blueprint) { bp.Machines = append(bp.Machines, Machine{ID: "furnace"}) },
		},
		{
			name:   "MachineShadowsItem",
			mutate: func(bp *Blueprint) { bp.Machines = append(bp.Machines, Machine{ID: "iron-ore"}) },
		},
		{
			name:   "EmptyItemID",
			mutate: func(bp *Blueprint) { bp.Items = append(bp.Items, Item{}) },
		},
		{
			name:   "NegativeDesiredOutput",
			mutate: func(bp *Blueprint) { neg := -1.0; bp.Items[0].DesiredOutput = &neg },
		},
		{
			name:   "NegativeCraftingSpeed",
			mutate: func(bp *Blueprint) { bp.Machines[0].CraftingSpeed = -1 },
		},
		{
			name:   "UnknownRecipeMachine",
			mutate: func(bp *Blueprint) { bp.Recipes[0].Machine = "smelter" },
		},
		{
			name:   "UnknownRecipeItem",
			mutate: func(bp *Blueprint) { bp.Recipes[1].Inputs[0].Item = "coal" },
		},
		{
			name:   "ZeroTime",
			mutate: func(bp *Blueprint) { bp.Recipes[0].TimeS = 0 },
		},
		{
			name:   "ZeroCount",
			mutate: func(bp *Blueprint) { bp.Recipes[1].Outputs[0].Count = 0 },
		},
		{
			name:   "NoOutputs",
			mutate: func(bp *Blueprint) { bp.Recipes[0].Outputs = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp := base()
			tt.mutate(bp)
			err := bp.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if code := errors.GetCode(err); code != errors.ErrCodeInvalidBlueprint && code != errors.ErrCodeInvalidInput {
				t.Errorf("code = %v, want an invalid-blueprint or invalid-input code", code)
			}
		})
	}
}

func TestValidateAcceptsValid(t *testing.T) {
	bp, err := Parse([]byte(smeltingTOML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := bp.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
