//go:build linux

package handshake

import (
	"net"
	"syscall"
)

// localCreds extracts SO_PEERCRED from a Unix-domain socket connection,
// satisfying CredsRequired without a round trip (spec §4.G).
func localCreds(conn net.Conn) (Creds, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Creds{}, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return Creds{}, false
	}

	var cred *syscall.Ucred
	var sockErr error
	ctlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = syscall.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, syscall.SO_PEERCRED)
	})
	if ctlErr != nil || sockErr != nil || cred == nil {
		return Creds{}, false
	}
	return Creds{UID: int(cred.Uid), GID: int(cred.Gid), PID: int(cred.Pid)}, true
}
