package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// UserAuth is the legacy USER_AUTH PDU payload: a single opaque method
// code, predating the AUTH_ATTR exchange.
type UserAuth struct {
	Method uint32
}

func EncodeUserAuth(a UserAuth) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf[0:4], a.Method)
	return buf
}

func DecodeUserAuth(body []byte) (UserAuth, error) {
	if len(body) < 4 {
		return UserAuth{}, fmt.Errorf("user_auth body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	return UserAuth{Method: binary.BigEndian.Uint32(body[0:4])}, nil
}

// AuthAttr is one SASL-style attribute/value pair exchanged during the
// secure handshake (internal/handshake). Its opaque Value is bounded by
// LimitAuthPDU, same as the original p_auth.c guard against a hostile
// peer inflating the handshake.
type AuthAttr struct {
	Attr  uint32
	Value []byte
}

func EncodeAuthAttr(a AuthAttr) ([]byte, error) {
	if len(a.Value) > LimitAuthPDU {
		return nil, fmt.Errorf("auth_attr value %d bytes exceeds %d limit: %w", len(a.Value), LimitAuthPDU, pmerr.ErrTooBig)
	}
	buf := make([]byte, 8+padLen(len(a.Value)))
	binary.BigEndian.PutUint32(buf[0:4], a.Attr)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(a.Value)))
	copy(buf[8:8+len(a.Value)], a.Value)
	return buf, nil
}

func DecodeAuthAttr(body []byte) (AuthAttr, error) {
	if len(body) < 8 {
		return AuthAttr{}, fmt.Errorf("auth_attr body too short (%d): %w", len(body), pmerr.ErrProtocol)
	}
	attr := binary.BigEndian.Uint32(body[0:4])
	valLen := binary.BigEndian.Uint32(body[4:8])
	if valLen > LimitAuthPDU {
		return AuthAttr{}, fmt.Errorf("auth_attr declares %d byte value, exceeds %d limit: %w", valLen, LimitAuthPDU, pmerr.ErrTooBig)
	}
	need := 8 + padLen(int(valLen))
	if need > len(body) {
		return AuthAttr{}, fmt.Errorf("auth_attr value truncated: %w", pmerr.ErrProtocol)
	}
	value := make([]byte, valLen)
	copy(value, body[8:8+valLen])
	return AuthAttr{Attr: attr, Value: value}, nil
}
