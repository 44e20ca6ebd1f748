package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/internal/log"
	"github.com/l3aro/cflow/pkg/slicer"
)

const defaultDaemonCacheTTL = 5 * time.Second

// ErrDaemonNotAvailable is returned for daemon-only operations when no
// daemon answers.
var ErrDaemonNotAvailable = errors.New("daemon not available")

// Router routes commands to the daemon or executes them directly.
type Router struct {
	client     *Client
	executor   *Executor
	logger     log.Logger
	useDaemon  bool
	autoDetect bool

	mu           sync.Mutex
	cachedResult *bool
	cacheTime    time.Time
	cacheTTL     time.Duration
	detect       func() bool
}

// RouterOption is a router option
type RouterOption func(*Router)

// WithDaemon forces using the daemon
func WithDaemon() RouterOption {
	return func(r *Router) {
		r.useDaemon = true
		r.autoDetect = false
	}
}

// WithoutDaemon forces direct execution (no daemon)
func WithoutDaemon() RouterOption {
	return func(r *Router) {
		r.useDaemon = false
		r.autoDetect = false
	}
}

// WithAutoDetect enables automatic daemon detection
func WithAutoDetect() RouterOption {
	return func(r *Router) {
		r.autoDetect = true
	}
}

// WithClient sets the daemon client.
func WithClient(c *Client) RouterOption {
	return func(r *Router) {
		r.client = c
	}
}

// WithExecutor sets the executor used when the daemon is not used.
func WithExecutor(e *Executor) RouterOption {
	return func(r *Router) {
		r.executor = e
	}
}

// WithRouterLogger sets the logger that reports fallbacks.
func WithRouterLogger(l log.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// NewRouter creates a new command router
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		logger:     log.Discard(),
		autoDetect: true,
		cacheTTL:   defaultDaemonCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = New()
	}
	if r.executor == nil {
		r.executor = NewExecutor(nil, r.logger)
	}
	if r.detect == nil {
		r.detect = r.client.IsRunning
	}
	return r
}

// ShouldUseDaemon returns true if we should use the daemon
func (r *Router) ShouldUseDaemon() bool {
	if !r.autoDetect {
		return r.useDaemon
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedResult != nil && time.Since(r.cacheTime) < r.cacheTTL {
		return *r.cachedResult
	}

	result := r.detect()
	r.cachedResult = &result
	r.cacheTime = time.Now()
	return result
}

// fallback reports whether err means the daemon could not be reached, as
// opposed to the daemon rejecting the request. Only auto-detected routing
// falls back; a forced daemon surfaces the error.
func (r *Router) fallback(err error) bool {
	if err == nil || !r.autoDetect || errors.Is(err, daemon.ErrDaemon) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	r.logger.Warn("daemon unreachable, executing directly", "error", err)

	r.mu.Lock()
	down := false
	r.cachedResult = &down
	r.cacheTime = time.Now()
	r.mu.Unlock()
	return true
}

// Slice classifies the lines of one function around a focus.
func (r *Router) Slice(ctx context.Context, params daemon.SliceParams) (*slicer.Response, error) {
	if r.ShouldUseDaemon() {
		resp, err := r.client.Slice(ctx, params)
		if !r.fallback(err) {
			return resp, err
		}
	}
	return r.executor.Slice(ctx, params)
}

// Batch runs several slice requests.
func (r *Router) Batch(ctx context.Context, params daemon.BatchParams) ([]daemon.BatchItem, error) {
	if r.ShouldUseDaemon() {
		items, err := r.client.Batch(ctx, params)
		if !r.fallback(err) {
			return items, err
		}
	}
	return r.executor.Batch(ctx, params)
}

// Graph returns the statements and dependence edges of one function.
func (r *Router) Graph(ctx context.Context, params daemon.GraphParams) (*daemon.GraphResult, error) {
	if r.ShouldUseDaemon() {
		g, err := r.client.Graph(ctx, params)
		if !r.fallback(err) {
			return g, err
		}
	}
	return r.executor.Graph(ctx, params)
}

// GetStatus gets daemon status
func (r *Router) GetStatus(ctx context.Context) (*daemon.StatusInfo, error) {
	if r.ShouldUseDaemon() {
		return r.client.GetStatus(ctx)
	}
	return nil, ErrDaemonNotAvailable
}

// IsDaemonAvailable checks if daemon is running and available
func (r *Router) IsDaemonAvailable() bool {
	return r.client.IsRunning()
}

// GetDaemonInfo gets detailed daemon information
func (r *Router) GetDaemonInfo() (*DaemonInfo, error) {
	return r.client.DetectDaemon()
}
