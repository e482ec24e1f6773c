package main

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/pool"
	"cdnrouter/internal/router"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRouteCommand_LocalPool(t *testing.T) {
	out, err := runCommand(t, "route",
		"--log-level", "error",
		"--nodes", "edge-1=10.0.0.1:80,edge-2=10.0.0.2:80,edge-3=10.0.0.3:80",
		"--dispersion", `{"dispersion": {"limit": 2, "shuffled": "true"}}`,
		"some-string")
	require.NoError(t, err)

	found := 0
	for _, id := range []string{"edge-1", "edge-2", "edge-3"} {
		if strings.Contains(out, id) {
			found++
		}
	}
	assert.Equal(t, 2, found, "expected two candidates in output:\n%s", out)

	again, err := runCommand(t, "route",
		"--log-level", "error",
		"--nodes", "edge-1=10.0.0.1:80,edge-2=10.0.0.2:80,edge-3=10.0.0.3:80",
		"some-string")
	require.NoError(t, err)
	primary := primaryFor(again, "some-string")
	require.NotEmpty(t, primary)
	assert.Equal(t, primary, primaryFor(out, "some-string"), "shuffling must not change the primary")
}

// primaryFor returns the node column of the first table row for key.
func primaryFor(table, key string) string {
	for _, line := range strings.Split(table, "\n") {
		if strings.Contains(line, key) {
			cells := strings.Split(line, "|")
			if len(cells) > 3 {
				return strings.TrimSpace(cells[3])
			}
		}
	}
	return ""
}

func TestRouteCommand_EmptyPool(t *testing.T) {
	_, err := runCommand(t, "route", "--log-level", "error", "some-string")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no nodes")
}

func TestRouteCommand_InvalidNodes(t *testing.T) {
	_, err := runCommand(t, "route", "--log-level", "error", "--nodes", "edge-1=10.0.0.1:80@-3", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdnrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: 127.0.0.1:7000
hash_function: xxhash
nodes:
  - {id: edge-1, addr: 10.0.0.1:80, weight: 10}
`), 0o644))

	v := viper.New()
	v.Set("config", path)
	v.Set("listen-addr", "127.0.0.1:7001")
	v.Set("dispersion-limit", 3)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7001", cfg.ListenAddr)
	assert.Equal(t, "xxhash", cfg.HashFunction)
	assert.Equal(t, 3, cfg.Dispersion.Limit)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, float64(10), cfg.Nodes[0].Weight)
}

// rowFor returns the table line for key and node.
func rowFor(table, key, node string) string {
	for _, line := range strings.Split(table, "\n") {
		if strings.Contains(line, key) && strings.Contains(line, node) {
			return line
		}
	}
	return ""
}

func TestRouteCommand_ConnectFailsOver(t *testing.T) {
	live, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = live.Close() })

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := closed.Addr().String()
	require.NoError(t, closed.Close())

	out, err := runCommand(t, "route",
		"--log-level", "error",
		"--nodes", "edge-1="+deadAddr+",edge-2="+live.Addr().String(),
		"--dispersion", `{"limit": 2}`,
		"--connect",
		"some-string", "other-string")
	require.NoError(t, err)

	for _, key := range []string{"some-string", "other-string"} {
		assert.Contains(t, rowFor(out, key, "edge-2"), "yes", "reachable node should serve %s:\n%s", key, out)
		assert.NotContains(t, rowFor(out, key, "edge-1"), "yes", "unreachable node must not serve %s:\n%s", key, out)
	}
}

func startRouter(t *testing.T) (*pool.Pool, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p := pool.New(nil, logger)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := router.New(lis.Addr().String(), router.NewServer(p, dispersion.Default(), nil, logger), logger)
	go func() {
		_ = r.Serve(lis)
	}()
	t.Cleanup(r.Stop)
	return p, lis.Addr().String()
}

func TestNodeCommands_Remote(t *testing.T) {
	p, addr := startRouter(t)

	out, err := runCommand(t, "add-node", "--log-level", "error", "--remote", addr, "edge-1", "10.0.0.1:80")
	require.NoError(t, err)
	assert.Contains(t, out, "pool version 1")
	m, err := p.SelectOne("some-string")
	require.NoError(t, err)
	assert.Equal(t, pool.Member{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 100}, m)

	_, err = runCommand(t, "add-node", "--log-level", "error", "--remote", addr, "edge-2", "10.0.0.2:80", "50")
	require.NoError(t, err)

	out, err = runCommand(t, "route", "--log-level", "error", "--remote", addr, "--dispersion", `{"limit": 5}`, "some-string")
	require.NoError(t, err)
	assert.NotEmpty(t, rowFor(out, "some-string", "edge-1"))
	assert.NotEmpty(t, rowFor(out, "some-string", "edge-2"))

	_, err = runCommand(t, "set-weight", "--log-level", "error", "--remote", addr, "edge-2", "1e12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidArgument")

	out, err = runCommand(t, "remove-node", "--log-level", "error", "--remote", addr, "edge-1")
	require.NoError(t, err)
	assert.Contains(t, out, "edge-1 removed")
	assert.Len(t, p.Members(), 1)

	_, err = runCommand(t, "remove-node", "--log-level", "error", "--remote", addr, "edge-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotFound")
}
