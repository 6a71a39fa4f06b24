package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/chainflow/internal/api"
	"github.com/matzehuels/chainflow/pkg/observability"
	"github.com/matzehuels/chainflow/pkg/pipeline"
	"github.com/matzehuels/chainflow/pkg/snapshot"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string // listen address
	noCache   bool   // disable artifact caching
	redisAddr string // optional Redis cache backend
	mongoURI  string // optional MongoDB snapshot store
}

// serveCommand creates the serve command for exposing the graph over HTTP.
// The server loads the chain once at startup and then serves graph state,
// rendered views, and mutation endpoints from memory.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve the production chain over HTTP",
		Long: `Serve the production chain over HTTP.

The serve command loads a TOML blueprint or an exported graph JSON file,
balances the transfer rates, and exposes the graph through a JSON API with
rendered SVG/PNG/DOT views, node mutations, visibility controls, search,
and Prometheus metrics at /metrics.

With --mongo, snapshots of the current graph can be saved and restored
across restarts; without it, snapshots are kept in memory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable artifact caching")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the artifact cache (e.g. localhost:6379)")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI for persistent snapshots (e.g. mongodb://localhost:27017)")

	return cmd
}

// runServe loads the graph, wires metrics hooks, and blocks serving HTTP
// until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, input string, opts *serveOpts) error {
	runner, err := c.newRunner(ctx, opts.noCache, opts.redisAddr)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts := sourceOptions(input)
	pipeOpts.Formats = []string{pipeline.FormatJSON}
	pipeOpts.Logger = c.Logger

	store, _, err := runner.Load(ctx, pipeOpts)
	if err != nil {
		return err
	}
	c.Logger.Info("loaded factory graph", "source", input, "nodes", store.NodeCount(), "edges", store.EdgeCount())

	snapshots, err := newSnapshotStore(ctx, opts.mongoURI)
	if err != nil {
		return err
	}
	defer snapshots.Close(context.Background())

	metrics := api.NewMetricsHooks()
	observability.SetEngineHooks(metrics)
	observability.SetCacheHooks(metrics)

	server := api.New(api.Config{
		Store:     store,
		Runner:    runner,
		Snapshots: snapshots,
		Logger:    c.Logger,
	})

	httpServer := &http.Server{
		Addr:              opts.addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("serving HTTP", "addr", opts.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newSnapshotStore picks the snapshot backend: MongoDB when a URI is given,
// otherwise an in-memory store.
func newSnapshotStore(ctx context.Context, mongoURI string) (snapshot.Store, error) {
	if mongoURI == "" {
		return snapshot.NewMemoryStore(), nil
	}
	return snapshot.NewMongoStore(ctx, snapshot.MongoConfig{URI: mongoURI})
}
