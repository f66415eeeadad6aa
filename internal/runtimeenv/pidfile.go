package runtimeenv

import (
	"fmt"
	"os"
)

// PIDFile manages the $runDir/<service>.pid file a daemon writes at
// startup and removes at exit (spec §6).
type PIDFile struct {
	path string
}

// WritePIDFile creates path containing the current process's PID.
func WritePIDFile(path string) (*PIDFile, error) {
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("writing pid file %s: %w", path, err)
	}
	return &PIDFile{path: path}, nil
}

// Remove deletes the pid file. Safe to call on a nil *PIDFile.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file %s: %w", p.path, err)
	}
	return nil
}
