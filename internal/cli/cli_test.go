package cli

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/config"
	"github.com/qianshe/snowflake/internal/lease"
	"github.com/qianshe/snowflake/internal/logging"
	"github.com/qianshe/snowflake/internal/nodeid"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func defaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	return cfg
}

func TestGenerate(t *testing.T) {
	out, err := execute(t, "generate", "--count", "3", "--worker", "7", "--datacenter", "2")
	require.NoError(t, err)

	ids := lines(out)
	require.Len(t, ids, 3)
	var prev snowflake.ID
	for _, s := range ids {
		id, err := snowflake.ParseString(s)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		assert.EqualValues(t, 7, id.Worker())
		assert.EqualValues(t, 2, id.Datacenter())
		prev = id
	}
}

func TestGenerateFormat(t *testing.T) {
	out, err := execute(t, "gen", "-n", "2", "-f", "hex")
	require.NoError(t, err)
	for _, s := range lines(out) {
		_, err := snowflake.ParseHex(s)
		assert.NoError(t, err, s)
	}
}

func TestGenerateJSON(t *testing.T) {
	out, err := execute(t, "generate", "--json", "--count", "2", "--worker", "1", "--datacenter", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 2`)
	assert.Contains(t, out, `"datacenter_id": 3`)
	assert.Contains(t, out, `"worker": 1`)
}

func TestGenerateSafe(t *testing.T) {
	out, err := execute(t, "generate", "--safe", "--count", "2")
	require.NoError(t, err)
	assert.Len(t, lines(out), 2)
}

func TestGenerateErrors(t *testing.T) {
	_, err := execute(t, "generate", "--format", "octal")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "generate", "--count", "0")
	assert.Error(t, err)

	_, err = execute(t, "generate", "--worker", "32")
	assert.True(t, snowflake.IsConfigError(err), "got %v", err)
}

func TestParse(t *testing.T) {
	for _, in := range []string{"516034560", "yVea4", "0x1ec21000"} {
		out, err := execute(t, "parse", in)
		require.NoError(t, err, in)
		assert.Contains(t, out, "Snowflake ID: 516034560", in)
		assert.Contains(t, out, "(123 ms since epoch)", in)
		assert.Contains(t, out, "Datacenter: 1", in)
		assert.Contains(t, out, "Worker:     1", in)
		assert.Contains(t, out, "Sequence:   0", in)
	}

	_, err := execute(t, "parse", "!!")
	assert.ErrorContains(t, err, "unable to parse")

	_, err = execute(t, "parse")
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"516034560", "base62"}, "yVea4"},
		{[]string{"yVea4", "decimal"}, "516034560"},
		{[]string{"516034560", "hex"}, "1ec21000"},
		{[]string{"516034560", "dec"}, "516034560"},
	}
	for _, tt := range tests {
		out, err := execute(t, append([]string{"encode"}, tt.args...)...)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, strings.TrimSpace(out), tt.args)
	}

	_, err := execute(t, "encode", "516034560", "base32")
	assert.ErrorContains(t, err, "unknown format")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "516034560")
	require.NoError(t, err)
	assert.Contains(t, out, "VALID: 516034560")

	out, err = execute(t, "validate", "0")
	assert.Error(t, err)
	assert.Contains(t, out, "INVALID")

	// timestamp field of zero
	out, err = execute(t, "validate", "4095")
	assert.Error(t, err)
	assert.Contains(t, out, "not after the epoch")
}

func TestFallback(t *testing.T) {
	before := time.Now().UnixMilli()
	out, err := execute(t, "fallback", "--count", "3")
	require.NoError(t, err)

	for _, s := range lines(out) {
		id, err := snowflake.ParseString(s)
		require.NoError(t, err)
		millis, random := snowflake.FallbackComponents(int64(id))
		assert.GreaterOrEqual(t, millis, before)
		assert.Less(t, random, int64(snowflake.FallbackSpread))
	}
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", "--duration", "20ms", "--batch", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Single ID generation")
	assert.Contains(t, out, "base62:")
}

func TestNodesHashed(t *testing.T) {
	t.Setenv("POD_NAME", "api-7")

	out, err := execute(t, "nodes")
	require.NoError(t, err)
	assert.Equal(t, nodeid.FromName("api-7", nodeid.SourcePodName).String(), strings.TrimSpace(out))
}

func TestNodesLeased(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(lease.DefaultPrefix+":33", "a"))
	require.NoError(t, mr.Set(lease.DefaultPrefix+":5", "b"))

	out, err := execute(t, "nodes", "--redis", mr.Addr())
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 3)
	assert.Equal(t, "2 of 1024 slots leased", got[0])
	assert.Contains(t, got[1], "slot    5")
	assert.Contains(t, got[2], "datacenter=1 worker=1")
}

func TestResolveNodeExplicit(t *testing.T) {
	cfg := defaults(t)
	cfg.WorkerID, cfg.DatacenterID = 9, 4

	node, leaser, err := resolveNode(context.Background(), cfg, nil, nodeid.Resolver{}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, leaser)
	assert.Equal(t, nodeid.SourceConfig, node.Source)
	assert.EqualValues(t, 9, node.WorkerID)
	assert.EqualValues(t, 4, node.DatacenterID)
}

func TestResolveNodeHashed(t *testing.T) {
	resolver := nodeid.Resolver{
		Lookup:   func(string) (string, bool) { return "", false },
		Hostname: func() (string, error) { return "db-host", nil },
	}
	node, leaser, err := resolveNode(context.Background(), defaults(t), nil, resolver, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, leaser)
	assert.Equal(t, nodeid.FromName("db-host", nodeid.SourceOS), node)
}

func TestResolveNodeLeased(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	resolver := nodeid.Resolver{
		Lookup:   func(string) (string, bool) { return "", false },
		Hostname: func() (string, error) { return "db-host", nil },
	}
	preferred := nodeid.Slot("db-host")

	node, leaser, err := resolveNode(context.Background(), defaults(t), client, resolver, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, leaser)
	assert.Equal(t, nodeid.SourceLease, node.Source)
	assert.Equal(t, preferred, node.Slot)
	assert.True(t, mr.Exists(lease.DefaultPrefix+":"+strconv.FormatInt(preferred, 10)))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitHealthy(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunServeReleasesLease(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := defaults(t)
	cfg.RedisAddr = mr.Addr()
	cfg.HTTPAddr = freeAddr(t)
	cfg.DBPath = ":memory:"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, logging.Discard()) }()

	waitHealthy(t, cfg.HTTPAddr)
	assert.Len(t, mr.Keys(), 1)

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, mr.Keys())
}

func TestRunServeStopsWhenLeaseLost(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := defaults(t)
	cfg.RedisAddr = mr.Addr()
	cfg.HTTPAddr = freeAddr(t)
	cfg.DBPath = "-"
	cfg.LeaseTTL = 300 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- runServe(context.Background(), cfg, logging.Discard()) }()

	waitHealthy(t, cfg.HTTPAddr)
	mr.FlushAll()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, lease.ErrLost), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after losing its lease")
	}
}
