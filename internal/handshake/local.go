package handshake

// local.go is the PLAIN AUTH mechanism: a credential file of
// bcrypt-hashed secrets keyed by username, grounded on the teacher's
// internal/auth/local.go flat bcrypt-hash account store.

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// PlainMechanism implements SASL-PLAIN-shaped authentication: a single
// initial response of NUL-separated authzid/authcid/password, checked
// against a bcrypt hash.
type PlainMechanism struct {
	// Accounts maps username to its bcrypt hash.
	Accounts map[string][]byte
}

func (m *PlainMechanism) Name() string { return "PLAIN" }

func (m *PlainMechanism) Start(initial []byte) (Step, error) {
	parts := bytes.SplitN(initial, []byte{0}, 3)
	if len(parts) != 3 {
		return Step{}, fmt.Errorf("%w: malformed PLAIN initial response", pmerr.ErrProtocol)
	}
	user := string(parts[1])
	pass := parts[2]

	hash, ok := m.Accounts[user]
	if !ok {
		return Step{}, fmt.Errorf("%w: authentication failed", pmerr.ErrProtocol)
	}
	if err := bcrypt.CompareHashAndPassword(hash, pass); err != nil {
		return Step{}, fmt.Errorf("%w: authentication failed", pmerr.ErrProtocol)
	}
	return Step{Done: true, Creds: Creds{Name: user}}, nil
}

func (m *PlainMechanism) Continue([]byte) (Step, error) {
	return Step{}, fmt.Errorf("%w: PLAIN does not support continuation", pmerr.ErrProtocol)
}
