package pdu

import (
	"net"
	"testing"
	"time"

	"github.com/pmcore/pmcore/pkg/pmerr"
	"github.com/stretchr/testify/require"
)

func TestXmitGetRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	body := []byte("hello-pdu-body")
	done := make(chan error, 1)
	go func() {
		done <- Xmit(client, TypeText, 42, body)
	}()

	buf, hdr, err := Get(server, Options{Mode: LimitSizeOn})
	require.NoError(t, err)
	require.NoError(t, <-done)
	defer buf.Unpin()

	require.Equal(t, int32(TypeText), hdr.Type)
	require.Equal(t, uint32(42), hdr.From)
	require.Equal(t, body, buf.Data)
}

func TestGetRejectsOversizeFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		// Hand-craft an oversized declared length (spec S6: len=70000).
		hdrBuf := make([]byte, 12)
		hdrBuf[0], hdrBuf[1], hdrBuf[2], hdrBuf[3] = 0, 1, 17, 112 // 70000 big-endian
		client.Write(hdrBuf)
	}()

	_, _, err := Get(server, Options{Mode: LimitSizeOn, Limit: DefaultSizeLimit})
	require.ErrorIs(t, err, pmerr.ErrTooBig)
}

func TestGetTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	_, _, err := Get(server, Options{Timeout: 30 * time.Millisecond})
	require.ErrorIs(t, err, pmerr.ErrTimeout)
}

func TestGetCleanClose(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	client.Close()

	buf, _, err := Get(server, Options{})
	require.NoError(t, err)
	require.Nil(t, buf)
}
