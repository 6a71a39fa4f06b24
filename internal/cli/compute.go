package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/pipeline"
)

// computeOpts holds the command-line flags for the compute command.
type computeOpts struct {
	output     string // output file path for the balanced graph JSON
	noCache    bool   // disable caching
	refresh    bool   // bypass cached artifacts
	redisAddr  string // optional Redis cache backend
	showHidden bool   // include hidden nodes in the rate table
	quiet      bool   // suppress the rate table
}

// computeCommand creates the compute command for balancing transfer rates.
// It loads a TOML blueprint or an exported graph JSON file, propagates
// transfer rates through the production chain, prints the resulting rates,
// and optionally writes the balanced graph as JSON.
func (c *CLI) computeCommand() *cobra.Command {
	var opts computeOpts

	cmd := &cobra.Command{
		Use:   "compute [file]",
		Short: "Balance transfer rates for a blueprint or saved graph",
		Long: `Balance transfer rates for a blueprint or saved graph.

The compute command loads a factory description (a TOML blueprint or a
previously exported graph JSON file), propagates cumulative transfer rates
from consumers back to producers, and prints the balanced rates per edge.

Use --output to write the balanced graph as JSON for later rendering or
serving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompute(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write balanced graph JSON to file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached artifacts")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the artifact cache (e.g. localhost:6379)")
	cmd.Flags().BoolVar(&opts.showHidden, "show-hidden", false, "include hidden nodes in the rate table")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the rate table")

	return cmd
}

// runCompute executes the balance pipeline and reports the results.
func (c *CLI) runCompute(ctx context.Context, input string, opts *computeOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	runner, err := c.newRunner(ctx, opts.noCache, opts.redisAddr)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts := sourceOptions(input)
	pipeOpts.Formats = []string{pipeline.FormatJSON}
	pipeOpts.ShowHidden = opts.showHidden
	pipeOpts.Refresh = opts.refresh
	pipeOpts.Logger = logger

	result, err := runner.Execute(ctx, pipeOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Balanced %d nodes with %d edges", result.Stats.NodeCount, result.Stats.EdgeCount))
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.ArtifactHits[pipeline.FormatJSON])

	if !opts.quiet {
		printNewline()
		printRates(result.Store, opts.showHidden)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, result.Artifacts[pipeline.FormatJSON], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		printFile(opts.output)
	}
	return nil
}

// printRates prints the balanced rate for every visible edge, grouped by
// source node in sorted order.
func printRates(store *factory.Store, showHidden bool) {
	fmt.Println(StyleTitle.Render("Transfer rates"))
	for _, e := range store.Edges() {
		from, okFrom := store.Node(e.From)
		to, okTo := store.Node(e.To)
		if !okFrom || !okTo {
			continue
		}
		if !showHidden && (from.Hidden || to.Hidden) {
			continue
		}
		line := fmt.Sprintf("%s %s %s", from.Label, iconArrow, to.Label)
		fmt.Println("  " + StyleValue.Render(line) + "  " + StyleNumber.Render(e.Label))
	}

	multipliers := false
	for _, n := range store.Nodes() {
		if n.Group.IsProducer() && (showHidden || !n.Hidden) {
			if !multipliers {
				printNewline()
				fmt.Println(StyleTitle.Render("Machine utilization"))
				multipliers = true
			}
			fmt.Println("  " + StyleValue.Render(n.Label) + "  " + StyleNumber.Render(fmt.Sprintf("x%.2f", n.Multiplier)))
		}
	}
}

// sourceOptions builds pipeline options from an input path, treating .json
// files as exported graphs and everything else as TOML blueprints.
func sourceOptions(input string) pipeline.Options {
	if strings.EqualFold(filepath.Ext(input), ".json") {
		return pipeline.Options{Graph: input}
	}
	return pipeline.Options{Blueprint: input}
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
