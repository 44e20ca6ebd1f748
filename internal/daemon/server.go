package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/log"
	"github.com/l3aro/cflow/pkg/cache"
	"github.com/l3aro/cflow/pkg/dirty"
	"github.com/l3aro/cflow/pkg/locate"
	"github.com/l3aro/cflow/pkg/partition"
	"github.com/l3aro/cflow/pkg/pdg"
	"github.com/l3aro/cflow/pkg/slicer"
)

// readTimeout bounds how long an idle connection is kept open.
const readTimeout = 30 * time.Second

// Server answers slice requests over a Unix socket, or TCP on Windows.
// Analysed graphs are shared between connections through one cache.
type Server struct {
	cfg     *config.Config
	engine  *slicer.Engine
	graphs  *cache.StatsCache[*pdg.PDGInfo]
	tracker *dirty.Tracker
	logger  log.Logger
	version string
	started time.Time

	requests atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithVersion sets the version reported by the status command.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(l log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithTracker sets the document tracker used to evict stale graphs.
func WithTracker(t *dirty.Tracker) ServerOption {
	return func(s *Server) {
		s.tracker = t
	}
}

// NewServer creates a server for cfg. The graph cache is disabled when
// cfg.CacheSize is zero.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  log.Discard(),
		version: "dev",
		started: time.Now(),
		active:  make(map[net.Conn]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = dirty.New(dirty.WithCacheDir(filepath.Dir(cfg.CachePath)))
	}

	engineOpts := []slicer.Option{
		slicer.WithLogger(s.logger),
		slicer.WithWorkers(cfg.Workers),
		slicer.WithPartitionOptions(partition.Options{KeepFrame: cfg.KeepFrame}),
	}
	if cfg.CacheEnabled() {
		s.graphs = cache.NewStatsCache(cache.Options[*pdg.PDGInfo]{
			MaxSize: cfg.CacheSize,
			SizeOf:  graphSize,
		})
		engineOpts = append(engineOpts, slicer.WithCache(s.graphs))
	}
	s.engine = slicer.NewEngine(engineOpts...)
	return s
}

// graphSize is a rough byte estimate of an analysed graph.
func graphSize(g *pdg.PDGInfo) int {
	if g == nil || g.Body == nil {
		return 0
	}
	return 128*len(g.Body.Statements) + 48*len(g.Edges)
}

// LoadState restores the persisted graph cache and document tracker.
func (s *Server) LoadState() error {
	if s.graphs != nil {
		if err := cache.LoadFromFile[*pdg.PDGInfo](s.graphs, s.cfg.CachePath); err != nil {
			return fmt.Errorf("loading graph cache: %w", err)
		}
	}
	if err := s.tracker.Load(); err != nil {
		return fmt.Errorf("loading document tracker: %w", err)
	}
	return nil
}

// SaveState persists the graph cache and document tracker.
func (s *Server) SaveState() error {
	if s.graphs != nil {
		if err := cache.PersistToFile[*pdg.PDGInfo](s.graphs, s.cfg.CachePath); err != nil {
			return fmt.Errorf("saving graph cache: %w", err)
		}
	}
	if err := s.tracker.Save(); err != nil {
		return fmt.Errorf("saving document tracker: %w", err)
	}
	return nil
}

// Endpoint returns the address the server listens on.
func (s *Server) Endpoint() Endpoint {
	return EndpointFor(s.cfg.SocketPath, s.cfg.TCPPort)
}

// Listen opens the server's socket, replacing a stale Unix socket file.
func (s *Server) Listen() (net.Listener, error) {
	ep := s.Endpoint()
	if ep.Network == "unix" {
		if err := os.Remove(ep.Address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing existing socket: %w", err)
		}
	}

	l, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", ep, err)
	}

	if ep.Network == "unix" {
		if err := os.Chmod(ep.Address, 0700); err != nil {
			l.Close()
			return nil, fmt.Errorf("setting socket permissions: %w", err)
		}
	}
	s.logger.Info("listening", "endpoint", ep.String())
	return l, nil
}

// ListenAndServe listens on the configured endpoint and serves until a
// stop command or SIGINT/SIGTERM arrives.
func (s *Server) ListenAndServe() error {
	l, err := s.Listen()
	if err != nil {
		return err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			s.logger.Info("shutting down", "signal", sig.String())
			s.Stop()
		case <-s.ctx.Done():
		}
	}()

	return s.Serve(l)
}

// Serve accepts connections on l until the server is stopped. Each
// connection is served in its own goroutine.
func (s *Server) Serve(l net.Listener) error {
	go func() {
		<-s.ctx.Done()
		l.Close()
		s.closeActive()
	}()

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if tempDelay == 0 {
				tempDelay = time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Warn("accept failed", "error", err, "retry_in", tempDelay)
			select {
			case <-time.After(tempDelay):
				continue
			case <-s.ctx.Done():
				s.wg.Wait()
				return nil
			}
		}
		tempDelay = 0

		if !s.track(conn) {
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

// track registers an open connection. It returns false once the server
// is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.active[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
}

// closeActive unblocks connections waiting for their next command.
func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.active {
		conn.Close()
	}
}

// Stop makes Serve return. It is safe to call more than once.
func (s *Server) Stop() {
	s.cancel()
}

// Done is closed once the server has been stopped.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var cmd Command
		if err := decoder.Decode(&cmd); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
				return
			}
			// The stream cannot be resynchronised after a malformed value.
			encoder.Encode(Response{
				Error: fmt.Sprintf("decode error: %v", err),
				Code:  CodeInvalidRequest,
			})
			return
		}
		conn.SetReadDeadline(time.Time{})

		resp := s.Handle(s.ctx, cmd)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Warn("encode failed", "id", cmd.ID, "error", err)
			return
		}
		if cmd.Type == CmdStop {
			s.Stop()
			return
		}
	}
}

// Handle executes one command and builds its response.
func (s *Server) Handle(ctx context.Context, cmd Command) Response {
	s.requests.Add(1)
	start := time.Now()

	var (
		result interface{}
		err    error
	)
	switch cmd.Type {
	case CmdSlice:
		result, err = s.handleSlice(ctx, cmd.Params)
	case CmdBatch:
		result, err = s.handleBatch(ctx, cmd.Params)
	case CmdGraph:
		result, err = s.handleGraph(ctx, cmd.Params)
	case CmdStatus:
		result = s.status()
	case CmdStop:
		result = map[string]string{"status": "stopping"}
	default:
		err = fmt.Errorf("%w: unknown command type %q", ErrInvalidRequest, cmd.Type)
	}

	resp := Response{ID: cmd.ID, Type: cmd.Type}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = ErrorCode(err)
		s.logger.Debug("command failed", "type", cmd.Type, "id", cmd.ID, "code", resp.Code, "error", err)
		return resp
	}

	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = fmt.Sprintf("encoding result: %v", err)
		resp.Code = CodeInternal
		return resp
	}
	resp.Result = data
	s.logger.Debug("command served", "type", cmd.Type, "id", cmd.ID, "duration", time.Since(start))
	return resp
}

// ErrInvalidRequest is returned for malformed commands and parameters.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorCode maps an error to the code reported to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, slicer.ErrParse):
		return CodeParseError
	case errors.Is(err, slicer.ErrFocusNotFound):
		return CodeFocusNotFound
	case errors.Is(err, locate.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, slicer.ErrInvalidRange),
		errors.Is(err, slicer.ErrInvalidTarget),
		errors.Is(err, slicer.ErrInvalidDirection):
		return CodeInvalidRequest
	}
	return CodeInternal
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// resolve loads a target and, for file targets, records its content so a
// stale graph of an earlier version is evicted.
func (s *Server) resolve(ctx context.Context, t slicer.Target) (*slicer.Resolved, error) {
	res, err := t.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if res.Path == "" {
		return res, nil
	}

	text, err := res.Range.Cut(res.Source)
	if err != nil {
		return nil, err
	}
	change := s.tracker.Observe(res.Path, res.Range.Start, cache.Key(text, res.Range.Start))
	if change.Stale != "" && s.graphs != nil {
		s.graphs.Delete(change.Stale)
		s.logger.Debug("evicted stale graph", "path", res.Path, "start", res.Range.Start)
	}
	return res, nil
}

func (s *Server) request(ctx context.Context, p SliceParams) (slicer.Request, error) {
	res, err := s.resolve(ctx, p.Target)
	if err != nil {
		return slicer.Request{}, err
	}
	return p.Request(res, s.cfg.Direction)
}

func (s *Server) handleSlice(ctx context.Context, raw json.RawMessage) (*slicer.Response, error) {
	var p SliceParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	req, err := s.request(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.engine.Compute(ctx, req)
}

func (s *Server) handleBatch(ctx context.Context, raw json.RawMessage) ([]BatchItem, error) {
	var p BatchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return RunBatch(ctx, s.engine, p.Requests, s.request), nil
}

func (s *Server) handleGraph(ctx context.Context, raw json.RawMessage) (*GraphResult, error) {
	var p GraphParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	res, err := s.resolve(ctx, p.Target)
	if err != nil {
		return nil, err
	}
	g, cached, err := s.engine.Graph(ctx, res.Source, res.Range)
	if err != nil {
		return nil, err
	}
	return NewGraphResult(g, res.Range, cached), nil
}

// NewGraphResult describes g, analysed from range r.
func NewGraphResult(g *pdg.PDGInfo, r slicer.Range, cached bool) *GraphResult {
	result := &GraphResult{
		Function: g.FunctionName,
		Range:    r,
		Edges:    g.Edges,
		Cached:   cached,
	}
	if g.Body != nil {
		result.Statements = g.Body.Statements
	}
	seen := make(map[string]bool)
	for _, ref := range g.Unresolved {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			result.Unresolved = append(result.Unresolved, ref.Name)
		}
	}
	sort.Strings(result.Unresolved)
	return result
}

func (s *Server) status() StatusInfo {
	info := StatusInfo{
		Status:    "running",
		Version:   s.version,
		PID:       os.Getpid(),
		StartedAt: s.started,
		Requests:  s.requests.Load(),
		Documents: s.tracker.TotalCount(),
	}
	if s.graphs != nil {
		st := s.graphs.Stats()
		info.Cache = CacheStats{
			Enabled: true,
			Entries: st.Length,
			Bytes:   st.CurrentBytes,
			Hits:    st.HitCount,
			Misses:  st.MissCount,
			HitRate: s.graphs.HitRate(),
		}
	}
	return info
}
