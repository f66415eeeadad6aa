package discovery

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmcore/pmcore/internal/option"
)

// listenLoopback opens a listener on loopback and returns its port,
// accepting (and discarding) connections until closed.
func listenLoopback(t *testing.T) (port int, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, func() { ln.Close() }
}

func TestSubnetSweepFindsLoopbackListener(t *testing.T) {
	port, closeFn := listenLoopback(t)
	defer closeFn()

	ctrl := &Control{MaxThreads: 4, Timeout: 200 * time.Millisecond}
	found, err := SubnetSweep(context.Background(), ctrl, "127.0.0.1/32", []int{port}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, port, found[0].Port)
}

func TestSubnetSweepRejectsMalformedCIDR(t *testing.T) {
	ctrl := &Control{MaxThreads: 1}
	_, err := SubnetSweep(context.Background(), ctrl, "not-a-cidr", []int{1}, nil)
	require.Error(t, err)
}

func TestSubnetSweepHonorsInterruptFlag(t *testing.T) {
	port, closeFn := listenLoopback(t)
	defer closeFn()

	var interrupted atomic.Bool
	interrupted.Store(true)
	ctrl := &Control{MaxThreads: 4, Timeout: 200 * time.Millisecond, Interrupted: &interrupted}

	found, err := SubnetSweep(context.Background(), ctrl, "127.0.0.1/32", []int{port}, nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCompileFilterRejectingEverythingYieldsEmptyResult(t *testing.T) {
	port, closeFn := listenLoopback(t)
	defer closeFn()

	program, err := option.CompileCandidateFilter(`false`)
	require.NoError(t, err)

	ctrl := &Control{MaxThreads: 4, Timeout: 200 * time.Millisecond, Filter: program}
	found, err := SubnetSweep(context.Background(), ctrl, "127.0.0.1/32", []int{port}, nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCompileFilterAllowsMatchingFamily(t *testing.T) {
	program, err := option.CompileCandidateFilter(`family == "inet4"`)
	require.NoError(t, err)
	ok, err := passesFilter(program, "127.0.0.1", 44321)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = passesFilter(program, "::1", 44321)
	require.NoError(t, err)
	require.False(t, ok)
}
