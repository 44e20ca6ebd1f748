package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/internal/config"
	"github.com/l3aro/cflow/internal/daemon"
	"github.com/l3aro/cflow/pkg/slicer"
)

func unreachableClient() *Client {
	return New(WithSocketPath("/nonexistent/cflow.sock"), WithTimeout(200*time.Millisecond))
}

func TestNewRouterWithDefaults(t *testing.T) {
	router := NewRouter()

	assert.NotNil(t, router.client)
	assert.NotNil(t, router.executor)
	assert.False(t, router.useDaemon)
	assert.True(t, router.autoDetect)
}

func TestRouterOptions(t *testing.T) {
	tests := []struct {
		name       string
		opts       []RouterOption
		useDaemon  bool
		autoDetect bool
	}{
		{"with daemon", []RouterOption{WithDaemon()}, true, false},
		{"without daemon", []RouterOption{WithoutDaemon()}, false, false},
		{"auto detect", []RouterOption{WithAutoDetect()}, false, true},
		{"daemon overrides auto detect", []RouterOption{WithAutoDetect(), WithDaemon()}, true, false},
		{"auto detect after without daemon", []RouterOption{WithoutDaemon(), WithAutoDetect()}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(tt.opts...)
			assert.Equal(t, tt.useDaemon, router.useDaemon)
			assert.Equal(t, tt.autoDetect, router.autoDetect)
		})
	}
}

func TestShouldUseDaemonCachesDetection(t *testing.T) {
	router := NewRouter(WithClient(unreachableClient()))
	calls := 0
	router.detect = func() bool {
		calls++
		return true
	}

	assert.True(t, router.ShouldUseDaemon())
	assert.True(t, router.ShouldUseDaemon())
	assert.Equal(t, 1, calls)

	router.cacheTime = time.Now().Add(-2 * defaultDaemonCacheTTL)
	router.ShouldUseDaemon()
	assert.Equal(t, 2, calls)
}

func TestShouldUseDaemonNoPIDFile(t *testing.T) {
	t.Setenv("CFLOW_DAEMON_DIR", t.TempDir())

	router := NewRouter(WithClient(unreachableClient()))
	assert.False(t, router.ShouldUseDaemon())
	assert.False(t, router.IsDaemonAvailable())

	_, err := router.GetDaemonInfo()
	assert.Error(t, err)

	_, err = router.GetStatus(context.Background())
	assert.ErrorIs(t, err, ErrDaemonNotAvailable)
}

func TestRouterExecutesDirectly(t *testing.T) {
	router := NewRouter(WithoutDaemon(), WithClient(unreachableClient()))
	ctx := context.Background()

	resp, err := router.Slice(ctx, daemon.SliceParams{Target: loopTarget(5), Variable: "sum", Direction: "backward"})
	require.NoError(t, err)
	assert.Contains(t, resp.Relevant, 4)
	assert.False(t, resp.Cached)

	graph, err := router.Graph(ctx, daemon.GraphParams{Target: loopTarget(0)})
	require.NoError(t, err)
	assert.True(t, graph.Cached, "executor keeps graphs in memory")

	items, err := router.Batch(ctx, daemon.BatchParams{Requests: []daemon.SliceParams{
		{Target: loopTarget(5), Variable: "sum"},
		{Target: loopTarget(5), Variable: "nope"},
	}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Result)
	assert.Equal(t, daemon.CodeFocusNotFound, items[1].Code)
}

func TestRouterFallsBackWhenDaemonUnreachable(t *testing.T) {
	router := NewRouter(WithClient(unreachableClient()))
	router.detect = func() bool { return true }

	resp, err := router.Slice(context.Background(), daemon.SliceParams{Target: loopTarget(5), Variable: "sum"})
	require.NoError(t, err)
	assert.Equal(t, slicer.Both, resp.Direction)

	assert.False(t, router.ShouldUseDaemon(), "failed round trip marks the daemon as down")
}

func TestRouterForcedDaemonReportsErrors(t *testing.T) {
	router := NewRouter(WithDaemon(), WithClient(unreachableClient()))

	_, err := router.Slice(context.Background(), daemon.SliceParams{Target: loopTarget(5), Variable: "sum"})
	assert.Error(t, err)
}

func TestRouterDoesNotFallBackOnDaemonErrors(t *testing.T) {
	c, _ := startServer(t)
	router := NewRouter(WithClient(c))
	router.detect = func() bool { return true }

	_, err := router.Slice(context.Background(), daemon.SliceParams{Target: loopTarget(3), Variable: "sum"})
	assert.ErrorIs(t, err, daemon.ErrDaemon)
	assert.ErrorIs(t, err, slicer.ErrFocusNotFound)
}

func TestExecutorUsesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Direction = "forward"
	cfg.KeepFrame = false
	cfg.CacheSize = 0

	e := NewExecutor(cfg, nil)
	resp, err := e.Slice(context.Background(), daemon.SliceParams{Target: loopTarget(2), Variable: "sum"})
	require.NoError(t, err)

	assert.Equal(t, slicer.Forward, resp.Direction)
	assert.NotContains(t, resp.Relevant, 1, "frame lines follow the slice")
	assert.Contains(t, resp.Relevant, 7)
}

func TestExecutorLocatesFunctionInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sum.c")
	require.NoError(t, os.WriteFile(path, []byte("#include <stdio.h>\n\n"+loopSource), 0644))

	e := NewExecutor(nil, nil)
	resp, err := e.Slice(context.Background(), daemon.SliceParams{
		Target:    slicer.Target{Path: path, Line: 7},
		Variable:  "sum",
		Direction: "backward",
	})
	require.NoError(t, err)

	assert.Equal(t, "sum_to", resp.Function)
	assert.Contains(t, resp.Relevant, 6)
	assert.Contains(t, resp.Dimmed, 5)
	assert.NotContains(t, resp.Classes, 1, "lines outside the function are not classified")
}
