package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chainflow/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file path (or base path for multiple formats)
	formats    []string // output formats: "dot", "svg", "png", "json"
	showHidden bool     // include hidden nodes in the rendered output
	detailed   bool     // include base rates and multipliers in labels
	noCache    bool     // disable caching
	refresh    bool     // bypass cached artifacts
	redisAddr  string   // optional Redis cache backend
}

// renderCommand creates the render command for generating visualizations.
// It balances the production chain first, then renders the result in one or
// more formats (SVG, PNG, DOT, or graph JSON).
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a production chain to SVG, PNG, or DOT",
		Long: `Render a production chain to SVG, PNG, or DOT.

The render command loads a TOML blueprint or an exported graph JSON file,
balances the transfer rates, and renders the chain as a directed graph.
Edges are labeled with their balanced rates, machines with their required
multipliers.

Rendered artifacts are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, dot, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.showHidden, "show-hidden", false, "include hidden nodes (drawn dashed)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show base rates and multipliers in labels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached artifacts")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the artifact cache (e.g. localhost:6379)")

	return cmd
}

// runRender executes the pipeline and writes one file per requested format.
func (c *CLI) runRender(ctx context.Context, input string, opts *renderOpts) error {
	runner, err := c.newRunner(ctx, opts.noCache, opts.redisAddr)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts := sourceOptions(input)
	pipeOpts.Formats = opts.formats
	pipeOpts.ShowHidden = opts.showHidden
	pipeOpts.Detailed = opts.detailed
	pipeOpts.Refresh = opts.refresh
	pipeOpts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Rendering production chain...")
	spinner.Start()

	result, err := runner.Execute(ctx, pipeOpts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return err
	}
	spinner.Stop()

	printSuccess("Rendered %d format(s)", len(opts.formats))
	cached := true
	for _, f := range opts.formats {
		if !result.CacheInfo.ArtifactHits[f] {
			cached = false
		}
	}
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, cached)

	return writeArtifacts(result.Artifacts, opts.formats, input, opts.output)
}

// writeArtifacts writes each rendered artifact to its own file. With a
// single format the output path is used as-is; with multiple formats it is
// treated as a base path and the format extension is appended.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) error {
	base := basePath(output, input)

	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}

		path := output
		if path == "" || len(formats) > 1 {
			path = base + "." + format
		}

		out, err := openOutput(path)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .png, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
