package discovery

import (
	"context"
	"fmt"
	"net"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// SubnetSweep probes every host address in cidr on every port in
// ports, returning one Candidate per (address, port) that answered.
// Grounded on subnetprobe.c's probeForServices / attemptConnections.
func SubnetSweep(ctx context.Context, ctrl *Control, cidr string, ports []int, onFound func(Candidate)) ([]Candidate, error) {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pmerr.ErrProtocol, err)
	}
	ones, bits := network.Mask.Size()
	maxBits := 32
	if ip.To4() == nil {
		maxBits = 128
	}
	if ones > maxBits || bits != maxBits {
		return nil, fmt.Errorf("%w: invalid subnet mask for address family", pmerr.ErrProtocol)
	}

	addrs := subnetAddresses(network)
	idx := 0
	source := func() (string, []int, bool) {
		if idx >= len(addrs) {
			return "", nil, false
		}
		addr := addrs[idx]
		idx++
		return addr, ports, true
	}

	var found []Candidate
	collect := func(c Candidate) {
		found = append(found, c)
		if onFound != nil {
			onFound(c)
		}
	}
	runPool(ctx, ctrl, source, collect)
	return found, nil
}

// subnetAddresses enumerates every host address in network, excluding
// the network and broadcast addresses for IPv4 /<31 subnets.
func subnetAddresses(network *net.IPNet) []string {
	var out []string
	ip := cloneIP(network.IP)
	for network.Contains(ip) {
		out = append(out, ip.String())
		ip = incIP(ip)
		if ip == nil {
			break
		}
	}
	ones, bits := network.Mask.Size()
	if bits == 32 && ones <= 30 && len(out) > 2 {
		out = out[1 : len(out)-1]
	}
	return out
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func incIP(ip net.IP) net.IP {
	out := cloneIP(ip)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out
		}
	}
	return nil // overflow
}
