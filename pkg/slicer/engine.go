package slicer

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/l3aro/cflow/internal/log"
	"github.com/l3aro/cflow/pkg/cache"
	"github.com/l3aro/cflow/pkg/partition"
	"github.com/l3aro/cflow/pkg/pdg"
)

// Request is one slice request against a source file.
type Request struct {
	Source    string    `json:"source"`
	Range     Range     `json:"range"`
	Variable  string    `json:"variable"`
	Line      int       `json:"line"`
	Direction Direction `json:"direction,omitempty"`
}

// Response is the classification computed for a Request.
type Response struct {
	Variable   string        `json:"variable"`
	Line       int           `json:"line"`
	Direction  Direction     `json:"direction"`
	Function   string        `json:"function,omitempty"`
	Classes    map[int]Class `json:"classes"`
	Relevant   []int         `json:"relevant"`
	Dimmed     []int         `json:"dimmed"`
	Unresolved []string      `json:"unresolved,omitempty"`
	Cached     bool          `json:"cached"`
	Duration   time.Duration `json:"duration"`
}

// BatchResult pairs a Response with the error of its Request.
type BatchResult struct {
	Response *Response
	Err      error
}

// Engine computes slices, optionally reusing analysed graphs from a cache.
// It is safe for concurrent use.
type Engine struct {
	cache   cache.Cache[*pdg.PDGInfo]
	logger  log.Logger
	opts    partition.Options
	workers int

	// builds collapses concurrent analyses of the same cache key.
	builds singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the graph cache. Cached graphs are never mutated.
func WithCache(c cache.Cache[*pdg.PDGInfo]) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPartitionOptions sets how structural lines are classified.
func WithPartitionOptions(opts partition.Options) Option {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithWorkers bounds the goroutines used by ComputeAll.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  log.Discard(),
		opts:    partition.DefaultOptions(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the dependence graph of the function range of source,
// reading it from the cache when possible. The second result reports a
// cache hit.
func (e *Engine) Graph(ctx context.Context, source string, r Range) (*pdg.PDGInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	text, err := r.Cut(source)
	if err != nil {
		return nil, false, err
	}

	var key string
	if e.cache != nil {
		key = cache.Key(text, r.Start)
		if g, ok := e.cache.Get(key); ok {
			e.logger.Debug("graph cache hit", "start", r.Start, "end", r.End)
			return g, true, nil
		}
	}

	if e.cache == nil {
		g, err := analyzeRange(source, r)
		if err != nil {
			e.logger.Debug("analysis failed", "start", r.Start, "error", err)
			return nil, false, err
		}
		return g, false, nil
	}

	v, err, shared := e.builds.Do(key, func() (interface{}, error) {
		g, err := analyzeRange(source, r)
		if err != nil {
			return nil, err
		}
		e.cache.Set(key, g)
		return g, nil
	})
	if err != nil {
		e.logger.Debug("analysis failed", "start", r.Start, "error", err)
		return nil, false, err
	}
	if shared {
		e.logger.Debug("joined concurrent analysis", "start", r.Start)
	}
	return v.(*pdg.PDGInfo), false, nil
}

// Compute runs one slice request.
func (e *Engine) Compute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	g, cached, err := e.Graph(ctx, req.Source, req.Range)
	if err != nil {
		return nil, err
	}

	dir, err := pdg.ParseDirection(string(req.Direction))
	if err != nil {
		return nil, err
	}
	classes, err := classify(g, req.Variable, req.Line, dir, e.opts)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Variable:   req.Variable,
		Line:       req.Line,
		Direction:  dir,
		Function:   g.FunctionName,
		Classes:    classes,
		Relevant:   partition.Lines(classes, Relevant),
		Dimmed:     partition.Lines(classes, Dimmed),
		Unresolved: unresolvedNames(g),
		Cached:     cached,
		Duration:   time.Since(start),
	}
	e.logger.Debug("slice computed",
		"variable", req.Variable,
		"line", req.Line,
		"direction", dir,
		"relevant", len(resp.Relevant),
		"cached", cached,
	)
	return resp, nil
}

// ComputeAll runs requests concurrently on at most the configured number of
// workers. Results are returned in request order. Requests that have not
// started when ctx is cancelled fail with the context's error.
func (e *Engine) ComputeAll(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	p := pool.New().WithMaxGoroutines(e.workers)
	for i, req := range reqs {
		i, req := i, req
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			resp, err := e.Compute(ctx, req)
			results[i] = BatchResult{Response: resp, Err: err}
		})
	}
	p.Wait()
	return results
}

func unresolvedNames(g *pdg.PDGInfo) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ref := range g.Unresolved {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			names = append(names, ref.Name)
		}
	}
	sort.Strings(names)
	return names
}
