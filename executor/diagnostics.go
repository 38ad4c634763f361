package executor

import (
	"os"
	"strings"
)

// sandboxHint inspects /proc for the usual reasons a bwrap invocation
// refuses to create its sandbox (unprivileged user namespaces disabled at
// the kernel level) and returns actionable remediation text, or "" if
// nothing looks wrong.
//
// Adapted from internal/build/userns.go's usernsError, which diagnoses the
// same failure mode for distri's own "unshare --user" invocations; the
// checks (kernel.unprivileged_userns_clone, user.max_user_namespaces, and
// whether we're inside Docker) carry over unchanged since they test
// kernel/container properties that are identical regardless of which
// sandboxing binary is being shelled out to.
func sandboxHint() string {
	var runningInDocker bool
	if b, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		runningInDocker = strings.Contains(string(b), "docker")
	}

	var fixes []string
	if b, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if strings.TrimSpace(string(b)) != "1" {
			fixes = append(fixes, "sysctl -w kernel.unprivileged_userns_clone=1")
		}
	}
	if b, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if strings.TrimSpace(string(b)) == "0" {
			fixes = append(fixes, "sysctl -w user.max_user_namespaces=1000")
		}
	}

	if len(fixes) == 0 {
		return ""
	}

	suggestion := strings.Join(fixes, "\n")
	if runningInDocker {
		return "on the Docker host (not in the container), try:\n" + suggestion
	}
	return "try:\n" + suggestion
}
