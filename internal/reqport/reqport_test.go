package reqport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAllInetLoopback(t *testing.T) {
	m := NewManager(nil)
	ports, err := m.OpenAll(context.Background(), PortSpec{Address: "loopback", Family: FamilyInet4, Port: 0})
	require.NoError(t, err)
	require.Len(t, ports, 1)
	require.Equal(t, "tcp4", ports[0].Network)

	conn, err := net.Dial("tcp", ports[0].Listener.Addr().String())
	require.NoError(t, err)
	conn.Close()

	m.Shutdown()
	_, err = ports[0].Listener.Accept()
	require.Error(t, err)
}

func TestOpenAllLocalSocketChmodAndUnlink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pmcore.socket")

	m := NewManager(nil)
	ports, err := m.OpenAll(context.Background(), PortSpec{Family: FamilyLocal, Path: path})
	require.NoError(t, err)
	require.Len(t, ports, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o666), info.Mode().Perm())

	m.Shutdown()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRegisterTracksHighWatermark(t *testing.T) {
	m := NewManager(nil)
	_, err := m.OpenAll(context.Background(), PortSpec{Address: "loopback", Family: FamilyInet4, Port: 0})
	require.NoError(t, err)
	_, err = m.OpenAll(context.Background(), PortSpec{Address: "loopback", Family: FamilyInet4, Port: 0})
	require.NoError(t, err)

	require.Equal(t, 1, m.MaxFD())
	require.Len(t, m.Ports(), 2)
	m.Shutdown()
}
