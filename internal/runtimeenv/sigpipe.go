package runtimeenv

import (
	"os/signal"
	"sync"
	"syscall"
)

var (
	sigpipeOnce     sync.Once
	userHandledPipe bool
	userHandledMu   sync.Mutex
)

// UserHandlesSIGPIPE records that the embedding application has already
// taken responsibility for SIGPIPE (e.g. via its own signal.Notify). Call
// it before EnsureSIGPIPEIgnored to stop pmcore from installing its own
// ignore-handler and stepping on the caller's.
func UserHandlesSIGPIPE() {
	userHandledMu.Lock()
	userHandledPipe = true
	userHandledMu.Unlock()
}

// EnsureSIGPIPEIgnored installs a process-wide ignore handler for SIGPIPE
// exactly once, unless the embedding application already claimed SIGPIPE
// via UserHandlesSIGPIPE. Spec §4.B: called before every PDU send so that
// a write to a peer that has gone away surfaces as an EPIPE error return
// instead of terminating the process.
func EnsureSIGPIPEIgnored() {
	sigpipeOnce.Do(func() {
		userHandledMu.Lock()
		handled := userHandledPipe
		userHandledMu.Unlock()
		if !handled {
			signal.Ignore(syscall.SIGPIPE)
		}
	})
}
