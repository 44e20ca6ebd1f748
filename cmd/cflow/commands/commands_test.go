package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/cflow/pkg/slicer"
)

const sumSource = `#include <stdio.h>

int sum_to(int n) {
    int sum = 0;
    int unused = 7;
    for (int i = 0; i < n; i++) {
        sum += i;
    }
    return sum;
}
`

func flagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("backward", false, "")
	cmd.Flags().Bool("forward", false, "")
	cmd.Flags().Bool("both", false, "")
	cmd.Flags().String("function", "", "")
	cmd.Flags().Int("start", 0, "")
	cmd.Flags().Int("end", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestDirectionFlag(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{nil, "", false},
		{[]string{"--backward"}, "backward", false},
		{[]string{"--forward"}, "forward", false},
		{[]string{"--both"}, "both", false},
		{[]string{"--backward", "--forward"}, "", true},
	}
	for _, tt := range tests {
		got, err := directionFlag(flagCommand(t, tt.args...))
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestTargetFlags(t *testing.T) {
	target, err := targetFlags(flagCommand(t, "--function", "sum_to"), "/src/a.c", 7)
	require.NoError(t, err)
	assert.Equal(t, slicer.Target{Path: "/src/a.c", Function: "sum_to", Line: 7}, target)

	target, err = targetFlags(flagCommand(t, "--start", "3", "--end", "10"), "/src/a.c", 7)
	require.NoError(t, err)
	assert.Equal(t, slicer.Range{Start: 3, End: 10}, target.Range)

	_, err = targetFlags(flagCommand(t, "--start", "5"), "/src/a.c", 7)
	assert.Error(t, err)
}

func TestClassifiedRange(t *testing.T) {
	resp := &slicer.Response{Classes: map[int]slicer.Class{
		5: slicer.Relevant,
		3: slicer.Dimmed,
		9: slicer.Relevant,
	}}
	assert.Equal(t, slicer.Range{Start: 3, End: 9}, classifiedRange(resp))
}

func TestSliceCommandWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("CFLOW_CACHE_SIZE", "0")
	path := filepath.Join(dir, "sum.c")
	require.NoError(t, os.WriteFile(path, []byte(sumSource), 0644))

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"slice", path, "--line", "7", "--var", "sum", "--backward", "--json", "--no-daemon"})
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
	})

	require.NoError(t, RootCmd.Execute())

	var resp slicer.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "sum_to", resp.Function)
	assert.Equal(t, slicer.Backward, resp.Direction)
	assert.Contains(t, resp.Relevant, 4)
	assert.Contains(t, resp.Relevant, 6)
	assert.Contains(t, resp.Dimmed, 5)
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
