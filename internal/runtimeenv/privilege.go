package runtimeenv

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// DropPrivileges switches the process's group and user once a
// privileged setup step (binding a low port, chmod'ing a socket) has
// completed, mirroring the teacher's runtimeEnv.DropPrivileges. The Go
// runtime applies the underlying setuid/setgid syscall to every OS
// thread, not just the calling one.
func DropPrivileges(username, group string) error {
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return fmt.Errorf("looking up group %s: %w", group, err)
		}
		gid, err := strconv.Atoi(g.Gid)
		if err != nil {
			return fmt.Errorf("parsing gid for group %s: %w", group, err)
		}
		if err := syscall.Setgid(gid); err != nil {
			return fmt.Errorf("setgid(%d): %w", gid, err)
		}
	}
	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			return fmt.Errorf("looking up user %s: %w", username, err)
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return fmt.Errorf("parsing uid for user %s: %w", username, err)
		}
		if err := syscall.Setuid(uid); err != nil {
			return fmt.Errorf("setuid(%d): %w", uid, err)
		}
	}
	return nil
}
