package handshake

import (
	"net"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/require"

	"github.com/pmcore/pmcore/pkg/pdu"
)

func TestRunPlainAuth(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := Config{
		Mechanisms: []Mechanism{&PlainMechanism{Accounts: map[string][]byte{"alice": hash}}},
	}

	resultCh := make(chan *Session, 1)
	errCh := make(chan error, 1)
	go func() {
		sess, err := Run(serverConn, cfg)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- sess
	}()

	body := pdu.EncodeUserAuth(pdu.UserAuth{Method: uint32(FlagAuth)})
	require.NoError(t, pdu.Xmit(clientConn, pdu.TypeUserAuth, 0, body))

	buf, hdr, err := pdu.Get(clientConn, pdu.Options{})
	require.NoError(t, err)
	require.Equal(t, int32(pdu.TypeAuthAttr), hdr.Type)
	attr, err := pdu.DecodeAuthAttr(buf.Data)
	buf.Unpin()
	require.NoError(t, err)
	require.Equal(t, "PLAIN", string(attr.Value))

	initial := append([]byte("\x00alice\x00"), []byte("secret")...)
	choiceValue := append([]byte("PLAIN\x00"), initial...)
	choiceBody, err := pdu.EncodeAuthAttr(pdu.AuthAttr{Attr: attrMechChoice, Value: choiceValue})
	require.NoError(t, err)
	require.NoError(t, pdu.Xmit(clientConn, pdu.TypeAuthAttr, 0, choiceBody))

	select {
	case sess := <-resultCh:
		require.Equal(t, "alice", sess.Creds.Name)
	case err := <-errCh:
		t.Fatalf("handshake failed: %v", err)
	}
}

func TestRunRejectsUnknownFlagBits(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := Run(serverConn, Config{})
		errCh <- err
	}()

	body := pdu.EncodeUserAuth(pdu.UserAuth{Method: 1 << 30})
	require.NoError(t, pdu.Xmit(clientConn, pdu.TypeUserAuth, 0, body))
	require.Error(t, <-errCh)
}
