package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pmcore/pmcore/pkg/pmerr"
)

// ShellProbe runs every executable script in scriptDir, treating each
// line of its stdout as a candidate hostname, then probes every
// returned host on every port. Grounded on shellprobe.c's
// directory-of-scripts convention ($bindir/discover/*).
func ShellProbe(ctx context.Context, ctrl *Control, scriptDir string, ports []int, onFound func(Candidate)) ([]Candidate, error) {
	hosts, err := runProbeScripts(ctx, scriptDir)
	if err != nil {
		return nil, err
	}
	if ctrl.ResolveAddrs {
		hosts = resolveHosts(hosts)
	}

	idx := 0
	source := func() (string, []int, bool) {
		if idx >= len(hosts) {
			return "", nil, false
		}
		h := hosts[idx]
		idx++
		return h, ports, true
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

// runProbeScripts executes every regular, executable file in dir and
// collects its stdout lines as candidate hosts.
func runProbeScripts(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading probe script directory %s: %v", pmerr.ErrResource, dir, err)
	}

	var hosts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		out, err := exec.CommandContext(ctx, path).Output()
		if err != nil {
			continue // a single misbehaving script does not abort the sweep
		}
		scanner := bufio.NewScanner(bytes.NewReader(out))
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) > 0 {
				hosts = append(hosts, string(line))
			}
		}
	}
	return hosts, nil
}

// resolveHosts deduplicates hostnames by resolving each to its first
// address, keeping the original hostname if resolution fails.
func resolveHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	var out []string
	for _, h := range hosts {
		key := h
		if addrs, err := net.LookupHost(h); err == nil && len(addrs) > 0 {
			key = addrs[0]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}
