package handshake

// ldap.go is the LDAP AUTH mechanism: a simple bind against a
// directory server, grounded on the teacher's internal/auth/ldap.go.

import (
	"bytes"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// LDAPMechanism binds the supplied credentials against a directory
// server to authenticate the peer.
type LDAPMechanism struct {
	URL string
	// BindDN is a printf template with a single %s for the username,
	// e.g. "uid=%s,ou=people,dc=example,dc=com".
	BindDN string
}

func (m *LDAPMechanism) Name() string { return "LDAP" }

func (m *LDAPMechanism) Start(initial []byte) (Step, error) {
	parts := bytes.SplitN(initial, []byte{0}, 3)
	if len(parts) != 3 {
		return Step{}, fmt.Errorf("%w: malformed LDAP initial response", pmerr.ErrProtocol)
	}
	user := string(parts[1])
	pass := string(parts[2])

	conn, err := ldap.DialURL(m.URL)
	if err != nil {
		return Step{}, fmt.Errorf("%w: ldap dial %s: %v", pmerr.ErrResource, m.URL, err)
	}
	defer conn.Close()

	dn := fmt.Sprintf(m.BindDN, user)
	if err := conn.Bind(dn, pass); err != nil {
		return Step{}, fmt.Errorf("%w: ldap bind %s: %v", pmerr.ErrProtocol, dn, err)
	}
	return Step{Done: true, Creds: Creds{Name: user}}, nil
}

func (m *LDAPMechanism) Continue([]byte) (Step, error) {
	return Step{}, fmt.Errorf("%w: LDAP does not support continuation", pmerr.ErrProtocol)
}
