package pdu

import (
	"bytes"
	"testing"

	"github.com/pmcore/pmcore/pkg/pmerr"
	"github.com/stretchr/testify/require"
)

func TestUserAuthRoundTrip(t *testing.T) {
	a := UserAuth{Method: 2}
	body := EncodeUserAuth(a)
	got, err := DecodeUserAuth(body)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestAuthAttrRoundTrip(t *testing.T) {
	a := AuthAttr{Attr: 1, Value: []byte("secret-token")}
	body, err := EncodeAuthAttr(a)
	require.NoError(t, err)

	got, err := DecodeAuthAttr(body)
	require.NoError(t, err)
	require.Equal(t, a.Attr, got.Attr)
	require.True(t, bytes.Equal(a.Value, got.Value))
}

func TestAuthAttrRejectsOversizeValue(t *testing.T) {
	a := AuthAttr{Attr: 1, Value: make([]byte, LimitAuthPDU+1)}
	_, err := EncodeAuthAttr(a)
	require.ErrorIs(t, err, pmerr.ErrTooBig)
}

func TestDecodeAuthAttrRejectsOversizeDeclaredLength(t *testing.T) {
	buf := make([]byte, 8)
	buf[3] = 1              // attr = 1
	buf[4] = 0xff           // declared value len far exceeds limit
	buf[5] = 0xff
	buf[6] = 0xff
	buf[7] = 0xff
	_, err := DecodeAuthAttr(buf)
	require.ErrorIs(t, err, pmerr.ErrTooBig)
}
