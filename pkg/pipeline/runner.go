package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/chainflow/pkg/blueprint"
	"github.com/matzehuels/chainflow/pkg/cache"
	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
	chainio "github.com/matzehuels/chainflow/pkg/io"
	"github.com/matzehuels/chainflow/pkg/observability"
	"github.com/matzehuels/chainflow/pkg/render"
)

// Runner encapsulates pipeline execution with caching.
// CLI, TUI and API all use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Close releases resources held by the runner, including the cache backend.
func (r *Runner) Close() error {
	return r.Cache.Close()
}

// Execute runs the complete load -> balance -> render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
		CacheInfo: CacheInfo{ArtifactHits: make(map[string]bool)},
	}

	// Stage 1: Load
	loadStart := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Source())
	store, graphHit, err := r.Load(ctx, opts)
	result.Stats.LoadTime = time.Since(loadStart)
	result.CacheInfo.GraphHit = graphHit
	nodeCount := 0
	if store != nil {
		nodeCount = store.NodeCount()
	}
	observability.Pipeline().OnLoadComplete(ctx, opts.Source(), nodeCount, result.Stats.LoadTime, err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Store = store
	result.Stats.NodeCount = store.NodeCount()
	result.Stats.EdgeCount = store.EdgeCount()

	r.Logger.Info("loaded factory graph",
		"source", opts.Source(),
		"nodes", store.NodeCount(),
		"edges", store.EdgeCount(),
		"duration", result.Stats.LoadTime)

	// Stage 2: Balance
	balanceStart := time.Now()
	engine := rate.New(store, r.Logger)
	if err := engine.Recompute(); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	result.Stats.BalanceTime = time.Since(balanceStart)

	// Hash the balanced graph for artifact cache keys and API responses.
	graphData, err := chainio.MarshalJSON(store)
	if err != nil {
		return nil, fmt.Errorf("hash graph: %w", err)
	}
	result.GraphHash = cache.Hash(graphData)

	r.Logger.Info("balanced transfer rates",
		"nodes", len(store.VisibleIDs()),
		"duration", result.Stats.BalanceTime)

	// Stage 3: Render
	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	err = r.renderAll(ctx, store, graphData, opts, result)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, result.Stats.RenderTime, err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	r.Logger.Info("rendered outputs",
		"formats", strings.Join(opts.Formats, ","),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load builds the factory graph from the configured source: a TOML
// blueprint or a previously exported graph JSON file.
//
// Blueprint builds are cached as graph JSON keyed by the blueprint's
// content hash, so reloading an unchanged blueprint skips parsing and
// construction. The returned bool reports whether the graph came from the
// cache. Graph JSON sources are already on disk and are never cached.
func (r *Runner) Load(ctx context.Context, opts Options) (*factory.Store, bool, error) {
	if opts.Blueprint == "" {
		store, err := chainio.ImportJSON(opts.Graph)
		return store, false, err
	}

	data, err := os.ReadFile(opts.Blueprint)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, errors.Wrap(errors.ErrCodeFileNotFound, err, "blueprint %s", opts.Blueprint)
		}
		return nil, false, errors.Wrap(errors.ErrCodeInvalidPath, err, "read blueprint %s", opts.Blueprint)
	}

	key := r.Keyer.GraphKey(cache.Hash(data))
	if !opts.Refresh {
		if cached, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if store, err := chainio.ReadJSON(bytes.NewReader(cached)); err == nil {
				observability.Cache().OnCacheHit(ctx, "graph")
				r.Logger.Debug("graph cache hit", "blueprint", opts.Blueprint)
				return store, true, nil
			}
			// A cached graph that no longer decodes is dropped and rebuilt.
			_ = r.Cache.Delete(ctx, key)
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	bp, err := blueprint.Parse(data)
	if err != nil {
		return nil, false, err
	}
	store, err := bp.Build()
	if err != nil {
		return nil, false, err
	}

	if graphData, err := chainio.MarshalJSON(store); err == nil {
		if err := r.Cache.Set(ctx, key, graphData, DefaultGraphTTL); err != nil {
			r.Logger.Debug("graph cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "graph", len(graphData))
		}
	}
	return store, false, nil
}

// Render generates the requested formats for an already-balanced graph,
// consulting the artifact cache per format.
func (r *Runner) Render(ctx context.Context, store *factory.Store, opts Options) (map[string][]byte, error) {
	graphData, err := chainio.MarshalJSON(store)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Artifacts: make(map[string][]byte),
		CacheInfo: CacheInfo{ArtifactHits: make(map[string]bool)},
	}
	if err := r.renderAll(ctx, store, graphData, opts, result); err != nil {
		return nil, err
	}
	return result.Artifacts, nil
}

func (r *Runner) renderAll(ctx context.Context, store *factory.Store, graphData []byte, opts Options, result *Result) error {
	graphHash := cache.Hash(graphData)
	renderOpts := render.Options{ShowHidden: opts.ShowHidden, Detailed: opts.Detailed}

	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(graphHash, cache.ArtifactKeyOpts{
			Format:     format,
			ShowHidden: opts.ShowHidden,
			Detailed:   opts.Detailed,
		})

		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				result.Artifacts[format] = data
				result.CacheInfo.ArtifactHits[format] = true
				r.Logger.Debug("artifact cache hit", "format", format)
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "artifact")
		}

		data, err := r.renderFormat(ctx, store, graphData, format, renderOpts)
		if err != nil {
			return fmt.Errorf("%s: %w", format, err)
		}
		result.Artifacts[format] = data
		result.CacheInfo.ArtifactHits[format] = false

		if err := r.Cache.Set(ctx, key, data, DefaultArtifactTTL); err != nil {
			r.Logger.Debug("artifact cache write failed", "format", format, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	return nil
}

func (r *Runner) renderFormat(ctx context.Context, store *factory.Store, graphData []byte, format string, opts render.Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		return graphData, nil
	case FormatDOT:
		return []byte(render.ToDOT(store, opts)), nil
	case FormatSVG:
		return render.SVG(ctx, render.ToDOT(store, opts))
	case FormatPNG:
		return render.PNG(ctx, render.ToDOT(store, opts))
	default:
		return nil, fmt.Errorf("invalid format: %q", format)
	}
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger != nil {
		r.Logger = opts.Logger
	}
}
