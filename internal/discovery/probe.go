package discovery

import (
	"context"
	"net"
	"strconv"
	"time"
)

// probeTCP attempts a single bounded-timeout TCP connect, mirroring
// subnetprobe.c's non-blocking connect + __pmSelectWrite(timeout).
func probeTCP(ctx context.Context, address string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
