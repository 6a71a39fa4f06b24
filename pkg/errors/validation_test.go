package errors

import (
	"testing"
)

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "iron-plate", false},
		{"valid with underscore", "iron_plate", false},
		{"valid with dot", "furnace.1", false},
		{"valid with colon", "machine:smelter", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal ..", "foo..bar", true},
		{"slash", "foo/bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBlueprintFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid toml", "factory.toml", false},
		{"valid with dash", "iron-smelting.toml", false},

		{"empty", "", true},
		{"with path", "dir/factory.toml", true},
		{"traversal", "..factory.toml", true},
		{"backslash", "dir\\factory.toml", true},
		{"control char", "fac\x01tory.toml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlueprintFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBlueprintFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
