// Package pipeline provides the core visualization pipeline for Chainflow.
//
// This package implements the complete load -> balance -> render pipeline
// shared by the CLI, the TUI and the HTTP API. Centralizing it keeps
// behavior consistent across entry points and avoids duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Build the factory graph from a TOML blueprint or a graph JSON
//     file
//  2. Balance: Run one recompute pass so every visible edge carries its
//     balanced transfer rate and label
//  3. Render: Generate output in various formats (DOT, SVG, PNG, JSON)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Blueprint: "factory.toml",
//	    Formats:   []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chainflow/pkg/factory"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, TUI, and API
// =============================================================================

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatJSON: true,
}

// DefaultArtifactTTL is how long rendered artifacts stay cached.
const DefaultArtifactTTL = 24 * time.Hour

// DefaultGraphTTL is how long built graphs stay cached. Graph entries are
// keyed by blueprint content hash and never go stale; the TTL only bounds
// how long entries for abandoned blueprints linger.
const DefaultGraphTTL = 7 * 24 * time.Hour

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the visualization pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Load options. Exactly one of Blueprint or Graph must be set.
	Blueprint string `json:"blueprint,omitempty"` // Path to a TOML blueprint
	Graph     string `json:"graph,omitempty"`     // Path to a graph JSON file

	// Render options
	Formats    []string `json:"formats,omitempty"`
	ShowHidden bool     `json:"show_hidden,omitempty"`
	Detailed   bool     `json:"detailed,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"` // Bypass the artifact cache

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Store is the loaded, balanced factory graph.
	Store *factory.Store

	// GraphHash is the content hash of the balanced graph.
	GraphHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which artifacts hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	LoadTime    time.Duration
	BalanceTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for the load and render stages.
type CacheInfo struct {
	GraphHit     bool            // whether the built graph came from cache
	ArtifactHits map[string]bool // format -> whether it came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: dot, svg, png, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.Blueprint == "" && o.Graph == "" {
		return fmt.Errorf("blueprint or graph is required")
	}
	if o.Blueprint != "" && o.Graph != "" {
		return fmt.Errorf("blueprint and graph are mutually exclusive")
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// Source returns the configured input path, whichever of Blueprint or Graph
// is set.
func (o *Options) Source() string {
	if o.Blueprint != "" {
		return o.Blueprint
	}
	return o.Graph
}
