package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/navitron/internal/config"
	"github.com/xkilldash9x/navitron/internal/esi"
	"github.com/xkilldash9x/navitron/internal/graph"
	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/router"
	"github.com/xkilldash9x/navitron/internal/store"
)

// fakeCatalog serves a four-system universe:
// Jita <-> Perimeter <-> Amarr, Perimeter -> Pocket (excluded region),
// and a wormhole system without gates.
type fakeCatalog struct {
	mu        sync.Mutex
	failPath  string
	overrides map[string]string
	requests  atomic.Int32
}

func (c *fakeCatalog) fail(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failPath = path
}

func (c *fakeCatalog) serve(overrides map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides = overrides
}

var catalogDocs = map[string]string{
	"/universe/systems/":                `[30000142,30000144,30002187,30000900,31000005]`,
	"/universe/systems/30000142/":       `{"system_id":30000142,"name":"Jita","constellation_id":20000020,"security_status":0.9459,"security_class":"B","position":{"x":1,"y":2,"z":3},"stargates":[50001]}`,
	"/universe/systems/30000144/":       `{"system_id":30000144,"name":"Perimeter","constellation_id":20000020,"security_status":0.95,"position":{"x":4,"y":5,"z":6},"stargates":[50002,50003,50005]}`,
	"/universe/systems/30002187/":       `{"system_id":30002187,"name":"Amarr","constellation_id":20000322,"security_status":1.0,"position":{"x":7,"y":8,"z":9},"stargates":[50004]}`,
	"/universe/systems/30000900/":       `{"system_id":30000900,"name":"Pocket","constellation_id":20000900,"security_status":-0.4,"position":{"x":0,"y":0,"z":0},"stargates":[50006]}`,
	"/universe/systems/31000005/":       `{"system_id":31000005,"name":"Thera","constellation_id":21000324,"security_status":-1.0,"position":{"x":0,"y":0,"z":0}}`,
	"/universe/constellations/":         `[20000020,20000322,20000900]`,
	"/universe/constellations/20000020/": `{"constellation_id":20000020,"name":"Kimotoro","region_id":10000002}`,
	"/universe/constellations/20000322/": `{"constellation_id":20000322,"name":"Throne Worlds","region_id":10000043}`,
	"/universe/constellations/20000900/": `{"constellation_id":20000900,"name":"Pocket","region_id":10000900}`,
	"/universe/regions/":                `[10000002,10000043,10000900]`,
	"/universe/regions/10000002/":       `{"region_id":10000002,"name":"The Forge"}`,
	"/universe/regions/10000043/":       `{"region_id":10000043,"name":"Domain"}`,
	"/universe/regions/10000900/":       `{"region_id":10000900,"name":"UUA-F4"}`,
	"/universe/stargates/50001/":        `{"stargate_id":50001,"system_id":30000142,"destination":{"stargate_id":50002,"system_id":30000144}}`,
	"/universe/stargates/50002/":        `{"stargate_id":50002,"system_id":30000144,"destination":{"stargate_id":50001,"system_id":30000142}}`,
	"/universe/stargates/50003/":        `{"stargate_id":50003,"system_id":30000144,"destination":{"stargate_id":50004,"system_id":30002187}}`,
	"/universe/stargates/50004/":        `{"stargate_id":50004,"system_id":30002187,"destination":{"stargate_id":50003,"system_id":30000144}}`,
	"/universe/stargates/50005/":        `{"stargate_id":50005,"system_id":30000144,"destination":{"stargate_id":50006,"system_id":30000900}}`,
	"/universe/stargates/50006/":        `{"stargate_id":50006,"system_id":30000900,"destination":{"stargate_id":50005,"system_id":30000144}}`,
	"/status/":                          `{"players":23145,"server_version":"2450351","start_time":"2026-10-18T11:02:41Z"}`,
}

func (c *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.requests.Add(1)
	path := strings.TrimPrefix(r.URL.Path, "/latest")
	c.mu.Lock()
	failPath, overrides := c.failPath, c.overrides
	c.mu.Unlock()
	if failPath != "" && path == failPath {
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	body, ok := overrides[path]
	if !ok {
		body, ok = catalogDocs[path]
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

type harness struct {
	catalog *fakeCatalog
	store   *store.FileStore
	metrics *observability.Metrics
	opts    Options
	newPipe func(Options) *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{catalog: &fakeCatalog{}, metrics: observability.NewMetrics()}
	srv := httptest.NewServer(h.catalog)
	t.Cleanup(srv.Close)

	fs, err := store.NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	h.store = fs

	cfg := config.NewDefaultConfig()
	h.opts = Options{
		Paths:      cfg.Catalog().Paths,
		Collection: cfg.Store().Collection,
		Timeout:    10 * time.Second,
		Rules:      graph.DefaultExclusionRules(),
		Risk:       graph.ConstantRisk(1),
	}

	logger := zaptest.NewLogger(t)
	h.newPipe = func(opts Options) *Pipeline {
		client := esi.NewClient(srv.URL+"/latest", "navitron-test", srv.Client(), logger)
		policy := esi.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
		fetcher := esi.NewFetcher(client, esi.NewLimiter(0), policy, 4, esi.WithMetrics(h.metrics), esi.WithLogger(logger))
		return New(fetcher, h.store, opts, logger, h.metrics)
	}
	return h
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t.Run("first run rebuilds from an empty baseline", func(t *testing.T) {
		res, err := h.newPipe(h.opts).Run(ctx)
		require.NoError(t, err)

		assert.NotEmpty(t, res.RunID)
		assert.Len(t, res.Nodes, 5)
		require.Len(t, res.Report.Incomplete, 1)
		assert.Equal(t, int64(31000005), res.Report.Incomplete[0].ID)
		assert.Equal(t, "empty", res.Stale.Baseline.String())
		assert.True(t, res.Written)

		assert.Equal(t, 3, res.Graph.Len(), "wormhole and pocket-region systems are excluded")
		assert.Equal(t, 4, res.Graph.EdgeCount())

		stored, err := h.store.ReadAll(ctx, h.opts.Collection)
		require.NoError(t, err)
		assert.Len(t, stored, 5)

		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StoreRebuilds))
		assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.GraphNodes))
	})

	t.Run("unchanged universe skips the write", func(t *testing.T) {
		res, err := h.newPipe(h.opts).Run(ctx)
		require.NoError(t, err)
		assert.False(t, res.Stale.NeedsRebuild())
		assert.False(t, res.Written)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StoreRebuilds))

		require.NotNil(t, res.Graph, "the graph is built from the fresh table after the write decision")
		assert.Equal(t, 3, res.Graph.Len())
	})

	t.Run("force rewrites", func(t *testing.T) {
		opts := h.opts
		opts.Force = true
		res, err := h.newPipe(opts).Run(ctx)
		require.NoError(t, err)
		assert.True(t, res.Written)
	})

	t.Run("stored table routes Jita to Amarr", func(t *testing.T) {
		g, err := LoadGraph(ctx, h.store, h.opts.Collection, graph.DefaultExclusionRules(), graph.ConstantRisk(1), zaptest.NewLogger(t))
		require.NoError(t, err)

		route, err := router.New(g).ResolvePath("Jita", "Amarr")
		require.NoError(t, err)
		assert.Equal(t, []string{"Jita", "Perimeter", "Amarr"}, route)
	})
}

func TestPipelineDryRun(t *testing.T) {
	h := newHarness(t)
	opts := h.opts
	opts.DryRun = true

	res, err := h.newPipe(opts).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Written)

	stored, err := h.store.ReadAll(context.Background(), h.opts.Collection)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPipelineFatalAcquisition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.newPipe(h.opts).Run(ctx)
	require.NoError(t, err)
	before, err := h.store.ReadAll(ctx, h.opts.Collection)
	require.NoError(t, err)

	h.catalog.fail("/universe/stargates/50003/")
	opts := h.opts
	opts.Force = true
	_, err = h.newPipe(opts).Run(ctx)

	var fatal *esi.FatalAcquisitionError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, ResourceStargates, fatal.Resource)

	after, err := h.store.ReadAll(ctx, h.opts.Collection)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed acquisition must leave the store untouched")
}

func TestLoadGraphEmpty(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = LoadGraph(context.Background(), fs, "sde_universe", graph.DefaultExclusionRules(), nil, nil)
	var noTable *NoTableError
	require.ErrorAs(t, err, &noTable)
	assert.Contains(t, err.Error(), "run the universe command first")
}

func TestPipelineEmptySystemsList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.newPipe(h.opts).Run(ctx)
	require.NoError(t, err)
	before, err := h.store.ReadAll(ctx, h.opts.Collection)
	require.NoError(t, err)
	require.Len(t, before, 5)

	h.catalog.serve(map[string]string{"/universe/systems/": `[]`})
	opts := h.opts
	opts.Force = true
	res, err := h.newPipe(opts).Run(ctx)
	assert.Nil(t, res)

	var empty *EmptyCatalogError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, ResourceSystems, empty.Resource)

	after, err := h.store.ReadAll(ctx, h.opts.Collection)
	require.NoError(t, err)
	assert.Equal(t, before, after, "an empty catalog must not wipe the stored table")
}

func TestSnapshotStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fetcher := h.newPipe(h.opts).fetcher
	stamp := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	opts := StatusOptions{
		Path:       "/status/",
		Collection: "server_status",
		Version:    "1.0",
		Now:        func() time.Time { return stamp },
	}

	t.Run("snapshots accumulate", func(t *testing.T) {
		first, err := SnapshotStatus(ctx, fetcher, h.store, opts, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.True(t, first.Written)
		assert.Equal(t, 23145.0, first.Snapshot["players"])
		assert.Equal(t, first.RunID, first.Snapshot["run_id"])
		assert.Equal(t, "2026-10-18T12:00:00Z", first.Snapshot["cron_datetime"])
		assert.Equal(t, "1.0", first.Snapshot["navitron_version"])

		second, err := SnapshotStatus(ctx, fetcher, h.store, opts, nil)
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID, second.RunID)

		stored, err := h.store.ReadAll(ctx, "server_status")
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Contains(t, string(stored[0]), first.RunID)
		assert.Contains(t, string(stored[1]), second.RunID)
	})

	t.Run("dry run does not write", func(t *testing.T) {
		dry := opts
		dry.Collection = "status_dry"
		dry.DryRun = true
		res, err := SnapshotStatus(ctx, fetcher, h.store, dry, nil)
		require.NoError(t, err)
		assert.False(t, res.Written)

		stored, err := h.store.ReadAll(ctx, "status_dry")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("exhausted retries are fatal", func(t *testing.T) {
		h.catalog.fail("/status/")
		defer h.catalog.fail("")

		failed := opts
		failed.Collection = "status_failed"
		_, err := SnapshotStatus(ctx, fetcher, h.store, failed, nil)
		var fatal *esi.FatalAcquisitionError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, ResourceStatus, fatal.Resource)
		assert.Equal(t, 2, fatal.Attempts)

		stored, err := h.store.ReadAll(ctx, "status_failed")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("malformed status document", func(t *testing.T) {
		h.catalog.serve(map[string]string{"/status/": `[1,2,3]`})
		defer h.catalog.serve(nil)

		_, err := SnapshotStatus(ctx, fetcher, h.store, opts, nil)
		assert.ErrorContains(t, err, "failed to decode server status")
	})
}
