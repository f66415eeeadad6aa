package discovery

import (
	"context"
	"sync"
	"time"
)

// candidateSource yields the next (address, ports) unit of work under
// a shared lock; ok is false once exhausted. Grounded on
// subnetprobe.c's connectionContext, where one thread-shared cursor
// walks the subnet's address range under addrLock.
type candidateSource func() (address string, ports []int, ok bool)

// runPool drives candidateSource with a bounded worker pool, applying
// ctrl's rate limiter and filter before every connect attempt and
// invoking emit once for every (address, port) that answers. emit is
// invoked under a shared lock (urlLock in the original), so callers
// may safely append to a plain slice inside it without their own
// synchronization.
func runPool(ctx context.Context, ctrl *Control, source candidateSource, emit func(Candidate)) {
	workers := ctrl.MaxThreads
	if workers < 1 {
		workers = 1
	}
	timeout := ctrl.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Millisecond
	}

	var addrLock, urlLock sync.Mutex
	var wg sync.WaitGroup

	next := func() (string, []int, bool) {
		addrLock.Lock()
		defer addrLock.Unlock()
		return source()
	}
	report := func(c Candidate) {
		urlLock.Lock()
		defer urlLock.Unlock()
		emit(c)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctrl.interrupted() || ctrl.expired() {
					return
				}
				addr, ports, ok := next()
				if !ok {
					return
				}
				for _, port := range ports {
					if ctrl.interrupted() || ctrl.expired() {
						return
					}
					if ctrl.Limiter != nil {
						if err := ctrl.Limiter.Wait(ctx); err != nil {
							return
						}
					}
					pass, err := passesFilter(ctrl.Filter, addr, port)
					if err != nil || !pass {
						continue
					}
					if probeTCP(ctx, addr, port, timeout) {
						report(Candidate{Address: addr, Port: port})
					}
				}
			}
		}()
	}
	wg.Wait()
}
