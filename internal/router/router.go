package router

import (
	"container/list"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/navitron/internal/graph"
)

// DefaultCacheSize bounds how many shortest-path trees a Router keeps.
const DefaultCacheSize = 256

// ResolvePath looks both names up in names and returns the path between them
// from a precomputed all-pairs index.
func ResolvePath(start, dest string, paths map[int]map[int]PathResult, names map[string]int) ([]string, error) {
	from, ok := names[start]
	if !ok {
		return nil, &NotFoundError{Name: start}
	}
	to, ok := names[dest]
	if !ok {
		return nil, &NotFoundError{Name: dest}
	}
	p, ok := paths[from][to]
	if !ok {
		return nil, &UnreachableError{From: start, To: dest}
	}

	byIndex := make(map[int]string, len(names))
	for name, i := range names {
		byIndex[i] = name
	}
	out := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = byIndex[n]
	}
	return out, nil
}

// Router computes paths on demand and caches one shortest-path tree per source.
// A Router is bound to a single Graph; build a new Router after every rebuild.
// It is safe for concurrent use.
type Router struct {
	g         *graph.Graph
	cutoff    *float64
	cacheSize int
	logger    *zap.Logger

	mu     sync.Mutex
	trees  map[int]*list.Element
	lru    *list.List
	flight singleflight.Group
}

// Option configures a Router.
type Option func(*Router)

// WithCutoff drops nodes whose shortest distance exceeds c.
func WithCutoff(c *float64) Option {
	return func(r *Router) { r.cutoff = c }
}

// WithCacheSize bounds the tree cache. Values below one disable eviction.
func WithCacheSize(n int) Option {
	return func(r *Router) { r.cacheSize = n }
}

// WithLogger sets the router's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l.Named("router")
		}
	}
}

// New creates a Router over g.
func New(g *graph.Graph, opts ...Option) *Router {
	r := &Router{
		g:         g,
		cacheSize: DefaultCacheSize,
		logger:    zap.NewNop(),
		trees:     make(map[int]*list.Element),
		lru:       list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the graph this Router answers for.
func (r *Router) Graph() *graph.Graph { return r.g }

// Path returns the shortest path between two node indices.
func (r *Router) Path(from, to int) (PathResult, error) {
	if from < 0 || from >= r.g.Len() {
		return PathResult{}, &NotFoundError{Name: strconv.Itoa(from)}
	}
	if to < 0 || to >= r.g.Len() {
		return PathResult{}, &NotFoundError{Name: strconv.Itoa(to)}
	}
	p, ok := r.tree(from).path(to)
	if !ok {
		return PathResult{}, &UnreachableError{From: r.g.Node(from).Name, To: r.g.Node(to).Name, Cutoff: r.cutoff}
	}
	return p, nil
}

// Resolve finds the shortest path between two systems by name.
func (r *Router) Resolve(start, dest string) (PathResult, error) {
	from, ok := r.g.Lookup(start)
	if !ok {
		return PathResult{}, &NotFoundError{Name: start}
	}
	to, ok := r.g.Lookup(dest)
	if !ok {
		return PathResult{}, &NotFoundError{Name: dest}
	}
	return r.Path(from, to)
}

// ResolvePath returns the system names along the shortest path from start to dest.
func (r *Router) ResolvePath(start, dest string) ([]string, error) {
	p, err := r.Resolve(start, dest)
	if err != nil {
		return nil, err
	}
	return p.Names(r.g), nil
}

// CachedSources reports how many trees are currently cached.
func (r *Router) CachedSources() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trees)
}

func (r *Router) tree(source int) *tree {
	r.mu.Lock()
	if el, ok := r.trees[source]; ok {
		r.lru.MoveToFront(el)
		r.mu.Unlock()
		return el.Value.(*tree)
	}
	r.mu.Unlock()

	v, _, _ := r.flight.Do(strconv.Itoa(source), func() (any, error) {
		t := shortestTree(r.g, source, r.cutoff)
		r.store(t)
		r.logger.Debug("Computed shortest-path tree",
			zap.Int("source", source),
			zap.Uint64("generation", r.g.Generation()),
		)
		return t, nil
	})
	return v.(*tree)
}

func (r *Router) store(t *tree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trees[t.source]; ok {
		return
	}
	r.trees[t.source] = r.lru.PushFront(t)
	for r.cacheSize > 0 && r.lru.Len() > r.cacheSize {
		oldest := r.lru.Back()
		r.lru.Remove(oldest)
		delete(r.trees, oldest.Value.(*tree).source)
	}
}
