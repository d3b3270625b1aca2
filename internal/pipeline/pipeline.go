// Package pipeline runs one acquisition: fetch the catalog, assemble the
// topology table, gate on staleness and replace the stored table.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/config"
	"github.com/xkilldash9x/navitron/internal/esi"
	"github.com/xkilldash9x/navitron/internal/graph"
	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/store"
	"github.com/xkilldash9x/navitron/internal/topology"
)

// Resource labels used in logs and metrics.
const (
	ResourceSystems        = "systems"
	ResourceConstellations = "constellations"
	ResourceRegions        = "regions"
	ResourceStargates      = "stargates"
)

// Options controls a single run.
type Options struct {
	Paths      config.CatalogPaths
	Collection string
	// Timeout bounds the whole acquisition. Zero means no bound.
	Timeout time.Duration
	// DryRun assembles everything but never writes the store.
	DryRun bool
	// Force rewrites the store even when nothing changed.
	Force bool
	Rules graph.ExclusionRules
	Risk  graph.RiskFunc
}

// Result describes what a run did.
type Result struct {
	RunID   string
	Nodes   []topology.NodeRecord
	Report  topology.Report
	Stale   topology.StaleResult
	Graph   *graph.Graph
	Written bool
}

// Pipeline wires the fetcher to the store.
type Pipeline struct {
	fetcher *esi.Fetcher
	store   store.Store
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates a pipeline. metrics may be nil.
func New(fetcher *esi.Fetcher, st store.Store, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   st,
		opts:    opts,
		logger:  logger.Named("pipeline"),
		metrics: metrics,
	}
}

// Run executes one acquisition. Acquisition failures, including an empty
// systems list, abort the run before the store is touched. The graph is built
// from the fresh table after the write decision.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", res.RunID))
	start := time.Now()

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	log.Info("Starting universe acquisition", zap.String("collection", p.opts.Collection))
	systems, constellations, regions, stargates, err := p.acquire(ctx, log)
	if err != nil {
		return nil, err
	}

	nodes, report := topology.Assemble(systems, constellations, regions, stargates, log)
	res.Nodes, res.Report = nodes, report

	if p.metrics != nil {
		p.metrics.AssembledNodes.Set(float64(len(nodes)))
		p.metrics.IncompleteRecords.Add(float64(len(report.Incomplete)))
	}

	current, err := p.readCurrent(ctx)
	if err != nil {
		return nil, err
	}
	res.Stale = topology.DetectStale(current, nodes, topology.NodeID)
	log.Info("Compared with stored table",
		zap.Stringer("baseline", res.Stale.Baseline),
		zap.Int("changed_ids", len(res.Stale.IDs)),
	)

	switch {
	case p.opts.DryRun:
		log.Info("Dry run, store left untouched")
	case !res.Stale.NeedsRebuild() && !p.opts.Force:
		log.Info("Stored table is current, skipping rebuild")
	default:
		docs, err := store.Encode(nodes)
		if err != nil {
			return nil, err
		}
		if err := p.store.Replace(ctx, p.opts.Collection, docs); err != nil {
			return nil, fmt.Errorf("failed to replace collection %s: %w", p.opts.Collection, err)
		}
		res.Written = true
		if p.metrics != nil {
			p.metrics.StoreRebuilds.Inc()
		}
	}

	g, err := graph.Build(nodes, p.opts.Rules, p.opts.Risk, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	res.Graph = g

	if p.metrics != nil {
		p.metrics.GraphNodes.Set(float64(g.Len()))
		p.metrics.GraphEdges.Set(float64(g.EdgeCount()))
		p.metrics.LastSuccessSeconds.SetToCurrentTime()
	}
	log.Info("Universe acquisition complete",
		zap.Int("systems", len(nodes)),
		zap.Int("graph_nodes", g.Len()),
		zap.Int("graph_edges", g.EdgeCount()),
		zap.Bool("written", res.Written),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) acquire(ctx context.Context, log *zap.Logger) ([]topology.SystemRecord, []topology.ConstellationRecord, []topology.RegionRecord, []topology.StargateRecord, error) {
	paths := p.opts.Paths

	systemIDs, err := p.fetcher.FetchIDs(ctx, ResourceSystems, paths.Systems)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(systemIDs) == 0 {
		return nil, nil, nil, nil, &EmptyCatalogError{Resource: ResourceSystems}
	}
	systems, err := esi.FetchBulk[topology.SystemRecord](ctx, p.fetcher, ResourceSystems, paths.Systems, systemIDs)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	constellationIDs, err := p.fetcher.FetchIDs(ctx, ResourceConstellations, paths.Constellations)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	constellations, err := esi.FetchBulk[topology.ConstellationRecord](ctx, p.fetcher, ResourceConstellations, paths.Constellations, constellationIDs)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	regionIDs, err := p.fetcher.FetchIDs(ctx, ResourceRegions, paths.Regions)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	regions, err := esi.FetchBulk[topology.RegionRecord](ctx, p.fetcher, ResourceRegions, paths.Regions, regionIDs)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// The catalog has no stargate index; the systems list their own gates.
	stargateIDs := topology.StargateIDs(systems)
	stargates, err := esi.FetchBulk[topology.StargateRecord](ctx, p.fetcher, ResourceStargates, paths.Stargates, stargateIDs)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log.Info("Catalog acquired",
		zap.Int(ResourceSystems, len(systems)),
		zap.Int(ResourceConstellations, len(constellations)),
		zap.Int(ResourceRegions, len(regions)),
		zap.Int(ResourceStargates, len(stargates)),
	)
	return systems, constellations, regions, stargates, nil
}

func (p *Pipeline) readCurrent(ctx context.Context) ([]topology.NodeRecord, error) {
	raw, err := p.store.ReadAll(ctx, p.opts.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored collection %s: %w", p.opts.Collection, err)
	}
	return store.Decode[topology.NodeRecord](raw)
}

// LoadGraph reads the stored table and builds a graph from it. An empty
// collection yields *NoTableError.
func LoadGraph(ctx context.Context, st store.Store, collection string, rules graph.ExclusionRules, risk graph.RiskFunc, logger *zap.Logger) (*graph.Graph, error) {
	raw, err := st.ReadAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored collection %s: %w", collection, err)
	}
	if len(raw) == 0 {
		return nil, &NoTableError{Collection: collection}
	}
	nodes, err := store.Decode[topology.NodeRecord](raw)
	if err != nil {
		return nil, err
	}
	return graph.Build(nodes, rules, risk, logger)
}

// EmptyCatalogError means the catalog listed no ids for a resource the table
// cannot exist without. The run aborts before the store is read or written.
type EmptyCatalogError struct {
	Resource string
}

func (e *EmptyCatalogError) Error() string {
	return fmt.Sprintf("catalog returned no %s; refusing to replace the stored table", e.Resource)
}

// NoTableError means the store holds no topology table yet.
type NoTableError struct {
	Collection string
}

func (e *NoTableError) Error() string {
	return fmt.Sprintf("collection %s is empty; run the universe command first", e.Collection)
}
