// Package discovery implements component H: active service discovery
// by subnet sweep and by shell probe, sharing one worker pool and a
// central control struct. Grounded on
// original_source/src/libpcp/src/subnetprobe.c and shellprobe.c.
package discovery

import (
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr/vm"
	"golang.org/x/time/rate"
)

// Candidate is one discovered (address, port) pair.
type Candidate struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Control is the central struct every discovery strategy shares: an
// interruption flag, a global deadline, a resolve-addresses flag, and
// a worker-count bound (spec §4.H).
type Control struct {
	// Interrupted is polled between every (address, port) attempt.
	Interrupted *atomic.Bool
	// Deadline, if non-zero, is checked the same way.
	Deadline time.Time
	// ResolveAddrs controls whether shell-probe hostnames are resolved
	// before probing (name resolution needs a larger thread stack in
	// the original; Go goroutines grow their own stack, so this flag
	// only gates whether resolution happens at all).
	ResolveAddrs bool
	// MaxThreads bounds worker count; the lesser of this and the
	// platform's fd-set capacity minus one in the original — here
	// simply the caller's own bound, since Go has no fd_set ceiling.
	MaxThreads int
	// Timeout is the per-connect-attempt timeout; default 20ms.
	Timeout time.Duration
	// Limiter optionally throttles connect attempts so a
	// misconfigured sweep cannot flood a subnet.
	Limiter *rate.Limiter
	// Filter, if set, is a compiled candidate-allowlist expression
	// evaluated before every connect attempt.
	Filter *vm.Program
}

func (c *Control) interrupted() bool {
	if c.Interrupted == nil {
		return false
	}
	return c.Interrupted.Load()
}

func (c *Control) expired() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}
