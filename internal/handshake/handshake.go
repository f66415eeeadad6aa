// Package handshake implements component G: the per-connection secure
// handshake state machine run between accept and the first
// application-level PDU. Grounded on
// original_source/src/libpcp/src/secureserver.c for the flag/state
// sequencing (__pmSecureServerHandshake, __pmAuthServerNegotiation).
package handshake

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// State names the handshake's position in its state machine.
type State int

const (
	StateAwaitFlags State = iota
	StateMaybeUpgrade
	StateCredsRequired
	StateAuth
	StateAdmitted
)

// Flag mirrors the feature advertisement bitmap (spec §6), negotiated
// on the first PDU of a connection. The original packs these into the
// credentials exchange; here they ride in the USER_AUTH PDU's opaque
// Method word, the one field component C already defines for exactly
// this kind of pre-auth scalar.
type Flag uint32

const (
	FlagSecure Flag = 1 << iota
	FlagSecureAck
	FlagCompress
	FlagAuth
	FlagCredsReqd
	FlagContainer
	FlagCertReqd
)

const knownFlags = FlagSecure | FlagSecureAck | FlagCompress | FlagAuth | FlagCredsReqd | FlagContainer | FlagCertReqd

// Mechanism is one pluggable AUTH mechanism (PLAIN/LDAP/JWT). Start
// consumes the peer's chosen-mechanism initial response; Continue
// consumes a subsequent challenge-response round. None of the three
// mechanisms this package ships need more than Start, but the
// interface leaves room for one that does.
type Mechanism interface {
	Name() string
	Start(initial []byte) (Step, error)
	Continue(response []byte) (Step, error)
}

// Step is one Mechanism round's outcome.
type Step struct {
	Done      bool
	Challenge []byte // sent to the peer when !Done
	Creds     Creds
}

// Config configures one Run.
type Config struct {
	// TLSConfig is required if a peer may set FlagSecure.
	TLSConfig *tls.Config
	// Mechanisms are offered to the peer, in order, by name.
	Mechanisms []Mechanism
}

// Session is the admitted connection handed back to the application
// PDU loop.
type Session struct {
	Conn  net.Conn
	Creds Creds
}

// Run drives conn through AwaitFlags -> MaybeUpgrade -> CredsRequired
// -> Auth -> Admitted. An unknown flag bit or an unsupported COMPRESS
// request are rejected as IPC/NotSupported errors without admitting
// the connection.
func Run(conn net.Conn, cfg Config) (*Session, error) {
	flags, err := awaitFlags(conn)
	if err != nil {
		return nil, err
	}

	conn, err = maybeUpgrade(conn, flags, cfg.TLSConfig)
	if err != nil {
		return nil, err
	}

	creds, admitted := credsRequired(conn, flags)
	if admitted {
		return &Session{Conn: conn, Creds: creds}, nil
	}
	if flags&FlagCredsReqd != 0 {
		flags |= FlagAuth // force authentication (secureserver.c)
	}
	if flags&FlagAuth != 0 {
		creds, err = runAuth(conn, cfg.Mechanisms)
		if err != nil {
			return nil, err
		}
	}

	return &Session{Conn: conn, Creds: creds}, nil
}

// awaitFlags reads the connection's first frame and decodes its flag
// word, rejecting any bit the handshake does not recognise.
func awaitFlags(conn net.Conn) (Flag, error) {
	buf, hdr, err := pdu.Get(conn, pdu.Options{})
	if err != nil {
		return 0, err
	}
	defer buf.Unpin()
	if hdr.Type != int32(pdu.TypeUserAuth) {
		return 0, fmt.Errorf("%w: expected flags pdu, got %s", pmerr.ErrIPC, pdu.Type(hdr.Type))
	}
	ua, err := pdu.DecodeUserAuth(buf.Data)
	if err != nil {
		return 0, err
	}
	flags := Flag(ua.Method)
	if flags&^knownFlags != 0 {
		return 0, fmt.Errorf("%w: unknown handshake flag bits %#x", pmerr.ErrIPC, flags&^knownFlags)
	}
	if flags&FlagCompress != 0 {
		return 0, fmt.Errorf("%w: COMPRESS is not supported", pmerr.ErrNotSupported)
	}
	return flags, nil
}

// maybeUpgrade performs a stdlib crypto/tls server handshake when
// FlagSecure is set. Cipher selection policy is out of scope (spec
// Non-goal); only the mechanism itself is carried, via the standard
// library the way every TLS-using example in the corpus does it.
func maybeUpgrade(conn net.Conn, flags Flag, cfg *tls.Config) (net.Conn, error) {
	if flags&FlagSecure == 0 {
		return conn, nil
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: SECURE requested but no TLS config available", pmerr.ErrNotSupported)
	}
	tlsConn := tls.Server(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("%w: tls handshake: %v", pmerr.ErrIPC, err)
	}
	return tlsConn, nil
}

// credsRequired admits the connection immediately when CREDS_REQD is
// set and the peer's credentials are already known out-of-band (a
// local-filesystem socket); otherwise it returns admitted=false, and
// Run then forces AUTH when CREDS_REQD was set.
func credsRequired(conn net.Conn, flags Flag) (Creds, bool) {
	if flags&FlagCredsReqd == 0 {
		return Creds{}, false
	}
	if c, ok := localCreds(conn); ok {
		return c, true
	}
	return Creds{}, false
}

// AUTH attribute codes carried in AuthAttr.Attr during the mechanism
// negotiation; local to this package, never serialised elsewhere.
const (
	attrMechList = iota + 1
	attrMechChoice
	attrChallenge
	attrResponse
)

// maxAuthRounds bounds the challenge/response loop so a misbehaving
// peer cannot hold a handshake open indefinitely (spec §4.G "until OK
// or CONTINUE exhausted").
const maxAuthRounds = 16

func runAuth(conn net.Conn, mechanisms []Mechanism) (Creds, error) {
	if len(mechanisms) == 0 {
		return Creds{}, fmt.Errorf("%w: AUTH requested but no mechanisms configured", pmerr.ErrNotSupported)
	}

	var names []byte
	for i, m := range mechanisms {
		if i > 0 {
			names = append(names, ',')
		}
		names = append(names, []byte(m.Name())...)
	}
	if err := sendAuthAttr(conn, attrMechList, names); err != nil {
		return Creds{}, err
	}

	choice, err := recvAuthAttr(conn, attrMechChoice)
	if err != nil {
		return Creds{}, err
	}
	sep := bytes.IndexByte(choice, 0)
	if sep < 0 {
		return Creds{}, fmt.Errorf("%w: malformed mechanism choice", pmerr.ErrProtocol)
	}
	chosenName := string(choice[:sep])
	initial := choice[sep+1:]

	var mech Mechanism
	for _, m := range mechanisms {
		if m.Name() == chosenName {
			mech = m
			break
		}
	}
	if mech == nil {
		return Creds{}, fmt.Errorf("%w: unsupported mechanism %q", pmerr.ErrProtocol, chosenName)
	}

	step, err := mech.Start(initial)
	if err != nil {
		return Creds{}, err
	}
	for rounds := 0; !step.Done; rounds++ {
		if rounds >= maxAuthRounds {
			return Creds{}, fmt.Errorf("%w: auth exchange exceeded %d rounds", pmerr.ErrProtocol, maxAuthRounds)
		}
		if err := sendAuthAttr(conn, attrChallenge, step.Challenge); err != nil {
			return Creds{}, err
		}
		resp, err := recvAuthAttr(conn, attrResponse)
		if err != nil {
			return Creds{}, err
		}
		step, err = mech.Continue(resp)
		if err != nil {
			return Creds{}, err
		}
	}
	return step.Creds, nil
}

func sendAuthAttr(conn net.Conn, attr uint32, value []byte) error {
	body, err := pdu.EncodeAuthAttr(pdu.AuthAttr{Attr: attr, Value: value})
	if err != nil {
		return err
	}
	return pdu.Xmit(conn, pdu.TypeAuthAttr, 0, body)
}

func recvAuthAttr(conn net.Conn, wantAttr uint32) ([]byte, error) {
	buf, hdr, err := pdu.Get(conn, pdu.Options{})
	if err != nil {
		return nil, err
	}
	defer buf.Unpin()
	if hdr.Type != int32(pdu.TypeAuthAttr) {
		return nil, fmt.Errorf("%w: expected auth_attr, got %s", pmerr.ErrIPC, pdu.Type(hdr.Type))
	}
	a, err := pdu.DecodeAuthAttr(buf.Data)
	if err != nil {
		return nil, err
	}
	if a.Attr != wantAttr {
		return nil, fmt.Errorf("%w: expected auth_attr %d, got %d", pmerr.ErrProtocol, wantAttr, a.Attr)
	}
	return append([]byte(nil), a.Value...), nil
}
