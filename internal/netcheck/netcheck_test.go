package netcheck_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/netcheck"
)

func TestDialOracle_ReachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	oracle, err := netcheck.NewDialOracle(srv.URL, time.Second)
	require.NoError(t, err)

	assert.True(t, oracle.Online(context.Background()))
}

func TestDialOracle_ClosedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	oracle, err := netcheck.NewDialOracle("http://"+addr, 200*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, oracle.Online(context.Background()))
}

func TestNewDialOracle_RejectsURLWithoutHost(t *testing.T) {
	_, err := netcheck.NewDialOracle("not a url", 0)
	assert.Error(t, err)
}

func TestStaticAndFunc(t *testing.T) {
	ctx := context.Background()
	assert.True(t, netcheck.Static(true).Online(ctx))
	assert.False(t, netcheck.Static(false).Online(ctx))

	calls := 0
	var oracle netcheck.Oracle = netcheck.OracleFunc(func(context.Context) bool {
		calls++
		return true
	})
	assert.True(t, oracle.Online(ctx))
	assert.Equal(t, 1, calls)
}
