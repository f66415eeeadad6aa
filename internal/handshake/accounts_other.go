//go:build !linux

package handshake

import "net"

// localCreds has no portable peer-credential syscall outside Linux's
// SO_PEERCRED; CredsRequired always falls through to AUTH here.
func localCreds(conn net.Conn) (Creds, bool) {
	return Creds{}, false
}
