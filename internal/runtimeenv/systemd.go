package runtimeenv

import (
	"fmt"
	"os"
	"os/exec"
)

// SystemdNotify tells systemd the daemon's readiness state via
// systemd-notify(1), a no-op when the process was not started under
// systemd (no NOTIFY_SOCKET). Errors are deliberately ignored: there
// is no useful recovery from a failed notification.
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}
	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}
	_ = exec.Command("systemd-notify", args...).Run()
}
