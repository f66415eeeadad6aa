// Package reqport implements component F: opening and owning the
// daemon's request-listening sockets (inet4/inet6/local), grounded on
// original_source/src/libpcp/src/auxserver.c's OpenRequestSocket (the
// bind-retry/SO_REUSEADDR+SO_KEEPALIVE/unix-socket chmod sequence).
package reqport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pmcore/pmcore/pkg/log"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// Family selects which socket family a PortSpec resolves to.
type Family int

const (
	// FamilyAuto resolves "", "any" or "loopback" addresses to both
	// inet4 and inet6 attempts, per spec §4.F.
	FamilyAuto Family = iota
	FamilyInet4
	FamilyInet6
	FamilyLocal
)

// PortSpec is one (address, port) pair to bind, or a local-socket path
// when Family is FamilyLocal.
type PortSpec struct {
	Address string // "", "any", "loopback", or an explicit host
	Port    int
	Path    string // local-socket path, only used when Family == FamilyLocal
	Family  Family
	Backlog int
}

// Bind-retry tolerates a lingering socket from a predecessor process
// (spec §4.F / §5, testable property 10): up to 4 attempts, 250ms apart.
const (
	bindRetries       = 4
	bindRetryInterval = 250 * time.Millisecond
)

// Port is one opened, listening socket plus its registration metadata.
type Port struct {
	Listener net.Listener
	Network  string // "tcp4", "tcp6", or "unix"
	Address  string
	FD       int // ordinal registration handle, see register's doc comment

	adHandle any
}

// Advertiser is the opaque service-discovery publishing mechanism the
// spec leaves unspecified (Avahi, systemd service records, or any
// other). A nil Advertiser makes advertisement a no-op.
type Advertiser interface {
	Advertise(network, address string, port int) (handle any, err error)
	Unadvertise(handle any) error
}

// Manager owns every opened Port for one daemon instance, tracking the
// fd-set high-watermark the original keeps alongside them.
type Manager struct {
	mu         sync.Mutex
	ports      []*Port
	maxFD      int
	advertiser Advertiser
}

func NewManager(advertiser Advertiser) *Manager {
	return &Manager{advertiser: advertiser}
}

// OpenAll binds spec, expanding FamilyAuto into both an inet4 and an
// inet6 attempt. At least one family must succeed — a failure on a
// single family within an auto pair is tolerated and logged, but a pair
// where no family opens is a hard error.
func (m *Manager) OpenAll(ctx context.Context, spec PortSpec) ([]*Port, error) {
	if spec.Family == FamilyLocal {
		p, err := m.openLocal(spec)
		if err != nil {
			return nil, err
		}
		return []*Port{p}, nil
	}

	families := []Family{spec.Family}
	if spec.Family == FamilyAuto {
		families = []Family{FamilyInet4, FamilyInet6}
	}

	var opened []*Port
	var lastErr error
	for _, fam := range families {
		p, err := m.openInet(ctx, spec, fam)
		if err != nil {
			lastErr = err
			log.Warnf("reqport: %s:%d family %d: %v", spec.Address, spec.Port, fam, err)
			continue
		}
		opened = append(opened, p)
	}
	if len(opened) == 0 {
		return nil, fmt.Errorf("reqport: no family opened for %s:%d: %w", spec.Address, spec.Port, lastErr)
	}

	if m.advertiser != nil {
		for _, p := range opened {
			h, err := m.advertiser.Advertise(p.Network, p.Address, spec.Port)
			if err != nil {
				log.Warnf("reqport: advertise %s %s:%d: %v", p.Network, p.Address, spec.Port, err)
				continue
			}
			p.adHandle = h
		}
	}
	return opened, nil
}

func (m *Manager) openInet(ctx context.Context, spec PortSpec, fam Family) (*Port, error) {
	network := "tcp4"
	addr := spec.Address
	if fam == FamilyInet6 {
		network = "tcp6"
	}
	switch addr {
	case "", "any":
		if fam == FamilyInet6 {
			addr = "::"
		} else {
			addr = "0.0.0.0"
		}
	case "loopback":
		if fam == FamilyInet6 {
			addr = "::1"
		} else {
			addr = "127.0.0.1"
		}
	}

	lc := net.ListenConfig{Control: setReuseAddrKeepAlive}
	var ln net.Listener
	var err error
	for attempt := 0; attempt < bindRetries; attempt++ {
		ln, err = lc.Listen(ctx, network, fmt.Sprintf("%s:%d", addr, spec.Port))
		if err == nil {
			break
		}
		log.Debugf("reqport: bind %s %s:%d attempt %d: %v", network, addr, spec.Port, attempt+1, err)
		time.Sleep(bindRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s %s:%d: %v", pmerr.ErrResource, network, addr, spec.Port, err)
	}

	p := &Port{Listener: ln, Network: network, Address: addr}
	m.register(p)
	return p, nil
}

// openLocal binds a unix-domain socket at spec.Path, clearing a stale
// socket left by a prior process first, then grants rw access to all
// after bind — some kernels otherwise refuse the connect (auxserver.c).
func (m *Manager) openLocal(spec PortSpec) (*Port, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("reqport: local socket requires a path: %w", pmerr.ErrResource)
	}
	_ = os.Remove(spec.Path)

	var ln net.Listener
	var err error
	for attempt := 0; attempt < bindRetries; attempt++ {
		ln, err = net.Listen("unix", spec.Path)
		if err == nil {
			break
		}
		log.Debugf("reqport: bind unix %s attempt %d: %v", spec.Path, attempt+1, err)
		time.Sleep(bindRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bind unix %s: %v", pmerr.ErrResource, spec.Path, err)
	}

	if err := os.Chmod(spec.Path, 0o666); err != nil {
		ln.Close()
		os.Remove(spec.Path)
		return nil, fmt.Errorf("%w: chmod %s: %v", pmerr.ErrResource, spec.Path, err)
	}

	p := &Port{Listener: ln, Network: "unix", Address: spec.Path}
	m.register(p)
	return p, nil
}

func setReuseAddrKeepAlive(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if e := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); e != nil {
			sockErr = e
			return
		}
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// register assigns p an ordinal fd-set handle and updates the
// high-watermark. Go's net.Listener does not expose its real file
// descriptor without duplicating it, and duplicating one per port
// purely for bookkeeping would leak a descriptor nothing ever closes;
// an ordinal stands in for the original's fd_set slot.
func (m *Manager) register(p *Port) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.FD = len(m.ports)
	m.ports = append(m.ports, p)
	if p.FD > m.maxFD {
		m.maxFD = p.FD
	}
}

// MaxFD returns the current fd-set high-watermark.
func (m *Manager) MaxFD() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFD
}

// Ports returns every currently open port.
func (m *Manager) Ports() []*Port {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Port, len(m.ports))
	copy(out, m.ports)
	return out
}

// Shutdown revokes every advertisement, closes every port, and unlinks
// any local-socket path still present.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ports := m.ports
	m.ports = nil
	m.mu.Unlock()

	for _, p := range ports {
		if m.advertiser != nil && p.adHandle != nil {
			if err := m.advertiser.Unadvertise(p.adHandle); err != nil {
				log.Warnf("reqport: unadvertise %s %s: %v", p.Network, p.Address, err)
			}
		}
		p.Listener.Close()
		if p.Network == "unix" {
			os.Remove(p.Address)
		}
	}
}
