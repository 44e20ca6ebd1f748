package client

import (
	"context"
	"runtime"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/log"
	"github.com/l3aro/cflow/pkg/cache"
	"github.com/l3aro/cflow/pkg/partition"
	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/slicer"
)

// Executor performs direct execution when daemon is unavailable. Graphs
// are cached in memory for the lifetime of the Executor only.
type Executor struct {
	engine    *slicer.Engine
	direction string
}

// NewExecutor creates a fallback executor configured like the daemon.
func NewExecutor(cfg *config.Config, logger log.Logger) *Executor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.Discard()
	}

	opts := []slicer.Option{
		slicer.WithLogger(logger),
		slicer.WithWorkers(cfg.Workers),
		slicer.WithPartitionOptions(partition.Options{KeepFrame: cfg.KeepFrame}),
	}
	if cfg.CacheEnabled() {
		// Batches slice on several goroutines, so spread the cache lock.
		shards := runtime.GOMAXPROCS(0)
		perShard := (cfg.CacheSize + shards - 1) / shards
		opts = append(opts, slicer.WithCache(cache.NewShardedCache(shards, cache.Options[*pdg.PDGInfo]{
			MaxSize: perShard,
		})))
	}

	return &Executor{
		engine:    slicer.NewEngine(opts...),
		direction: cfg.Direction,
	}
}

func (e *Executor) request(ctx context.Context, p daemon.SliceParams) (slicer.Request, error) {
	res, err := p.Target.Resolve(ctx)
	if err != nil {
		return slicer.Request{}, err
	}
	return p.Request(res, e.direction)
}

// Slice classifies the lines of one function around a focus.
func (e *Executor) Slice(ctx context.Context, params daemon.SliceParams) (*slicer.Response, error) {
	req, err := e.request(ctx, params)
	if err != nil {
		return nil, err
	}
	return e.engine.Compute(ctx, req)
}

// Batch runs several slice requests concurrently.
func (e *Executor) Batch(ctx context.Context, params daemon.BatchParams) ([]daemon.BatchItem, error) {
	return daemon.RunBatch(ctx, e.engine, params.Requests, e.request), nil
}

// Graph returns the statements and dependence edges of one function.
func (e *Executor) Graph(ctx context.Context, params daemon.GraphParams) (*daemon.GraphResult, error) {
	res, err := params.Target.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	g, cached, err := e.engine.Graph(ctx, res.Source, res.Range)
	if err != nil {
		return nil, err
	}
	return daemon.NewGraphResult(g, res.Range, cached), nil
}
