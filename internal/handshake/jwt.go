package handshake

// jwt.go is the JWT AUTH mechanism: the peer's initial response is a
// bearer token, verified with golang-jwt/jwt/v5, grounded on the
// teacher's internal/auth/jwt.go.

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// JWTMechanism verifies a compact JWT presented as the initial
// response and trusts its "sub" claim as the principal name.
type JWTMechanism struct {
	Keyfunc jwt.Keyfunc
}

func (m *JWTMechanism) Name() string { return "JWT" }

func (m *JWTMechanism) Start(initial []byte) (Step, error) {
	claims, err := parseAndVerify(string(initial), m.Keyfunc)
	if err != nil {
		return Step{}, fmt.Errorf("%w: jwt: %v", pmerr.ErrProtocol, err)
	}
	name, _ := claims["sub"].(string)
	if name == "" {
		return Step{}, fmt.Errorf("%w: jwt: missing sub claim", pmerr.ErrProtocol)
	}
	return Step{Done: true, Creds: Creds{Name: name}}, nil
}

func (m *JWTMechanism) Continue([]byte) (Step, error) {
	return Step{}, fmt.Errorf("%w: JWT does not support continuation", pmerr.ErrProtocol)
}
